package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sbuerk/dbdoctor/internal/output"
	"github.com/sbuerk/dbdoctor/pkg/health"
	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all consistency checks against the configured database",
	Long: `Run the registered consistency checks in order. Each check scans for one
class of inconsistency, shows a summary of the affected records and asks
before repairing anything. With --execute, repairs run unattended.

An aborted check never stops the session; the remaining checks still run.
Use --resume with a check identifier (see "dbdoctor list") to continue a
session from that check onward.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("execute", false, "Repair findings without asking")
	checkCmd.Flags().String("resume", "", "Skip checks preceding this identifier")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	dbCfg := databaseConfig()
	if dbCfg.DSN == "" {
		return fmt.Errorf("no database configured: set --dsn or db.dsn in the config file")
	}

	catalog, err := schema.Load(viper.GetString("catalog.path"))
	if err != nil {
		return fmt.Errorf("loading schema catalog: %w", err)
	}

	conn, err := storage.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close()

	mode := health.ModeInteractive
	if execute, _ := cmd.Flags().GetBool("execute"); execute {
		mode = health.ModeExecute
	}
	resume, _ := cmd.Flags().GetString("resume")

	term := output.NewTerminal()
	suite := newSuite(term, conn, catalog)

	results, err := suite.Run(ctx, mode, resume)
	if err != nil {
		return err
	}
	renderResults(term, results)
	if results.Aborted() {
		return fmt.Errorf("session finished with aborted checks")
	}
	return nil
}

// databaseConfig reads the database settings key by key. The keys are bound
// to flags and env vars individually, and viper only resolves bindings for
// exact keys: decoding the whole "db" subtree would bypass them.
func databaseConfig() storage.Config {
	return storage.Config{
		Driver: viper.GetString("db.driver"),
		DSN:    viper.GetString("db.dsn"),
	}
}

// newSuite registers the checks in their canonical order. The order matters:
// page-level cleanups run last so the earlier checks see the records they are
// scoped to.
func newSuite(term *output.Terminal, conn *storage.Conn, catalog *schema.Catalog) *health.Suite {
	return health.NewSuite(term,
		health.NewWorkspaceOrphans(conn, catalog, ""),
		health.NewDanglingTranslationSources(conn, catalog),
		health.NewDanglingFileReferences(conn, "", ""),
		health.NewRecordsOnMissingPages(conn, catalog,
			health.DefaultWorkspaceTable, health.DefaultFileReferenceTable),
	)
}

func renderResults(term *output.Terminal, results health.Results) {
	term.Section("Session summary")
	rows := make([][]string, 0, len(results))
	for _, status := range results {
		note := ""
		if status.Err != nil {
			note = status.Err.Error()
		}
		rows = append(rows, []string{status.Identifier, status.Result.String(), note})
	}
	term.Table([]string{"CHECK", "RESULT", "NOTE"}, rows)
}
