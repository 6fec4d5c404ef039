// Package output renders dbdoctor's terminal surface: section headings,
// narrative blocks, warnings, tabular summaries and the operator prompt.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-wordwrap"
)

const textWidth = 80

var (
	heading = lipgloss.NewStyle().Bold(true)
	faint   = lipgloss.NewStyle().Faint(true)
	warn    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	good    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// Terminal is the presentation surface. Input and output are injectable, so
// the interactive decision loop can be driven by scripted input in tests.
type Terminal struct {
	out     io.Writer
	in      *bufio.Reader
	color   bool
	spinner *spinner.Spinner
}

// NewTerminal builds a Terminal on stdin/stdout. Styling and the scan spinner
// are enabled only when stdout is a real TTY.
func NewTerminal() *Terminal {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	t := &Terminal{
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
		color: tty,
	}
	if tty {
		t.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	}
	return t
}

// NewTestTerminal builds an uncolored Terminal over the given reader/writer.
func NewTestTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{out: out, in: bufio.NewReader(in)}
}

func (t *Terminal) render(style lipgloss.Style, s string) string {
	if !t.color {
		return s
	}
	return style.Render(s)
}

// Section prints a bold section heading.
func (t *Terminal) Section(title string) {
	fmt.Fprintf(t.out, "\n%s\n", t.render(heading, title))
}

// Textblock prints free text wrapped to the terminal width.
func (t *Terminal) Textblock(text string) {
	fmt.Fprintln(t.out, wordwrap.WrapString(strings.TrimSpace(text), textWidth))
}

// Infof prints a plain formatted line.
func (t *Terminal) Infof(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

// Warning prints a highlighted warning line.
func (t *Terminal) Warning(format string, args ...any) {
	fmt.Fprintf(t.out, "%s\n", t.render(warn, fmt.Sprintf(format, args...)))
}

// Success prints a highlighted success line.
func (t *Terminal) Success(format string, args ...any) {
	fmt.Fprintf(t.out, "%s\n", t.render(good, fmt.Sprintf(format, args...)))
}

// Table prints a grid with a header row, columns sized to their widest cell.
func (t *Terminal) Table(header []string, rows [][]string) {
	all := append([][]string{header}, rows...)
	widths := make([]int, len(header))
	for _, row := range all {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// The last column is not padded, so lines carry no trailing whitespace.
	format := ""
	for i, width := range widths {
		if i == len(widths)-1 {
			format += "%s"
		} else {
			format += "%-" + fmt.Sprintf("%d", width) + "s  "
		}
	}
	format += "\n"

	fmt.Fprint(t.out, t.render(faint, fmt.Sprintf(format, toInterface(header)...)))
	for _, row := range rows {
		fmt.Fprintf(t.out, format, toInterface(row)...)
	}
}

// Prompt asks for a single line of input, returning def on empty input. An
// exhausted input stream surfaces as an error; callers treat it as an abort.
func (t *Terminal) Prompt(label, def string) (string, error) {
	fmt.Fprintf(t.out, "%s [%s]: ", label, def)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// StartScan shows a spinner while detection queries run. A no-op off-TTY.
func (t *Terminal) StartScan(message string) {
	if t.spinner == nil {
		return
	}
	t.spinner.Suffix = " " + message
	t.spinner.Start()
}

// StopScan stops the scan spinner if one is running.
func (t *Terminal) StopScan() {
	if t.spinner == nil {
		return
	}
	t.spinner.Stop()
}

func toInterface(strs []string) []any {
	intf := make([]any, len(strs))
	for i, s := range strs {
		intf[i] = s
	}
	return intf
}
