package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/sbuerk/dbdoctor/internal/output"
	"github.com/sbuerk/dbdoctor/pkg/schema"
)

// Runner executes one check to its terminal status, implementing the shared
// detect -> summarize -> decide -> repair -> re-verify protocol.
type Runner struct {
	term *output.Terminal
}

func NewRunner(term *output.Terminal) *Runner {
	return &Runner{term: term}
}

// Run is the check entry point. It prints the narrative, scans, and either
// repairs immediately (execute mode) or hands control to the operator
// decision loop. Storage errors are returned as-is and end the session.
func (r *Runner) Run(ctx context.Context, check Check, mode Mode) (Result, error) {
	r.term.Section(check.Title())
	r.term.Textblock(check.Describe())

	findings, err := r.detect(ctx, check)
	if err != nil {
		return ResultAborted, err
	}
	if findings.Empty() {
		r.term.Success("No inconsistencies found.")
		return ResultOK, nil
	}
	r.renderSummary(findings)

	if mode == ModeExecute {
		return r.runExecute(ctx, check, findings)
	}
	return r.runLoop(ctx, check, findings)
}

// runExecute performs a single repair-and-reverify pass. Repairing once and
// rescanning once is the conservative reading of unattended mode: a repair
// that uncovers further strays leaves them for the next invocation instead of
// looping unsupervised.
func (r *Runner) runExecute(ctx context.Context, check Check, findings *FindingSet) (Result, error) {
	outcome, err := check.Repair(ctx, findings)
	if err != nil {
		return ResultAborted, err
	}
	r.renderOutcome(outcome)

	verify, err := r.detect(ctx, check)
	if err != nil {
		return ResultAborted, err
	}
	if verify.Empty() {
		r.term.Success("All inconsistencies resolved.")
		return ResultOK, nil
	}
	r.term.Warning("%s record(s) remain after repair; re-run to pick them up.", humanize.Comma(int64(verify.Len())))
	r.renderSummary(verify)
	return ResultOK, nil
}

// loopState enumerates the decision loop's finite-state machine. The loop is
// deliberately unbounded: only a terminal state leaves it.
type loopState int

const (
	statePrompting loopState = iota
	stateReviewingPages
	stateReviewingDetails
	stateRepairing
	stateRescanning
	stateDoneOK
	stateDoneAborted
)

const promptLabel = "Fix these records? (y)es (a)bort (r)escan (p)age overview (d)etails (?)help"

// runLoop drives the operator decision loop. Commands are case-sensitive
// single letters; anything unrecognized (including plain enter) prints the
// help text and prompts again.
func (r *Runner) runLoop(ctx context.Context, check Check, findings *FindingSet) (Result, error) {
	state := statePrompting
	for {
		switch state {
		case statePrompting:
			command, err := r.term.Prompt(promptLabel, "?")
			if err != nil {
				// Input stream gone; treat like an operator abort.
				log.Debugf("prompt input closed: %v", err)
				state = stateDoneAborted
				break
			}
			switch command {
			case "y":
				state = stateRepairing
			case "a":
				state = stateDoneAborted
			case "r":
				state = stateRescanning
			case "p":
				state = stateReviewingPages
			case "d":
				state = stateReviewingDetails
			default:
				r.renderHelp()
			}

		case stateReviewingPages:
			r.renderPages(findings)
			state = statePrompting

		case stateReviewingDetails:
			r.renderDetails(findings)
			state = statePrompting

		case stateRepairing:
			outcome, err := check.Repair(ctx, findings)
			if err != nil {
				return ResultAborted, err
			}
			r.renderOutcome(outcome)
			state = stateRescanning

		case stateRescanning:
			fresh, err := r.detect(ctx, check)
			if err != nil {
				return ResultAborted, err
			}
			findings = fresh
			if findings.Empty() {
				state = stateDoneOK
				break
			}
			r.renderSummary(findings)
			state = statePrompting

		case stateDoneOK:
			r.term.Success("All inconsistencies resolved.")
			return ResultOK, nil

		case stateDoneAborted:
			r.term.Warning("Aborted. No further repairs attempted for this check.")
			return ResultAborted, nil
		}
	}
}

func (r *Runner) detect(ctx context.Context, check Check) (*FindingSet, error) {
	r.term.StartScan("scanning " + check.Identifier())
	findings, err := check.Detect(ctx)
	r.term.StopScan()
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", check.Identifier(), err)
	}
	return findings, nil
}

func (r *Runner) renderHelp() {
	r.term.Textblock(`
y  repair the records listed above, then rescan
a  abort this check, leaving all records untouched
r  rescan without repairing
p  show affected records grouped by owning page
d  show full record details
?  show this help`)
}

func (r *Runner) renderSummary(findings *FindingSet) {
	rows := make([][]string, 0, len(findings.Tables()))
	for _, table := range findings.Tables() {
		rows = append(rows, []string{table, humanize.Comma(int64(len(findings.Records(table))))})
	}
	r.term.Table([]string{"TABLE", "RECORDS"}, rows)
}

func (r *Runner) renderPages(findings *FindingSet) {
	type group struct {
		page  int64
		table string
		count int
	}
	var groups []group
	for _, table := range findings.Tables() {
		perPage := map[int64]int{}
		for _, rec := range findings.Records(table) {
			perPage[rec.PageID]++
		}
		for page, count := range perPage {
			groups = append(groups, group{page: page, table: table, count: count})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].page != groups[j].page {
			return groups[i].page < groups[j].page
		}
		return groups[i].table < groups[j].table
	})

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			fmt.Sprintf("%d", g.page), g.table, humanize.Comma(int64(g.count)),
		})
	}
	r.term.Table([]string{"PAGE", "TABLE", "RECORDS"}, rows)
}

func (r *Runner) renderDetails(findings *FindingSet) {
	for _, table := range findings.Tables() {
		for _, rec := range findings.Records(table) {
			r.term.Infof("%s:%d (page %d)", table, rec.UID, rec.PageID)

			columns := make([]string, 0, len(rec.Fields))
			for column := range rec.Fields {
				if column == schema.UIDField || column == schema.PageIDField {
					continue
				}
				columns = append(columns, column)
			}
			sort.Strings(columns)

			rows := make([][]string, 0, len(columns))
			for _, column := range columns {
				rows = append(rows, []string{column, rec.Fields.Render(column)})
			}
			r.term.Table([]string{"FIELD", "VALUE"}, rows)
		}
	}
}

func (r *Runner) renderOutcome(outcome Outcome) {
	var rows [][]string
	tables := map[string]struct{}{}
	for table := range outcome.Deleted {
		tables[table] = struct{}{}
	}
	for table := range outcome.Updated {
		tables[table] = struct{}{}
	}
	names := make([]string, 0, len(tables))
	for table := range tables {
		names = append(names, table)
	}
	sort.Strings(names)
	for _, table := range names {
		rows = append(rows, []string{
			table,
			humanize.Comma(outcome.Deleted[table]),
			humanize.Comma(outcome.Updated[table]),
		})
	}
	r.term.Table([]string{"TABLE", "DELETED", "UPDATED"}, rows)
}
