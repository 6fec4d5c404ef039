package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sbuerk/dbdoctor/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered consistency checks",
	Long: `List every registered check with its identifier and what it looks for.
Identifiers are stable and can be passed to "check --resume".`,
	Run: func(cmd *cobra.Command, _ []string) {
		term := output.NewTerminal()
		// The checks need no live connection to describe themselves.
		suite := newSuite(term, nil, nil)

		rows := make([][]string, 0, len(suite.Checks()))
		for _, check := range suite.Checks() {
			rows = append(rows, []string{check.Identifier(), check.Title()})
		}
		term.Table([]string{"IDENTIFIER", "CHECK"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
