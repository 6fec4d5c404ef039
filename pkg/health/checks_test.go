package health_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sbuerk/dbdoctor/internal/output"
	"github.com/sbuerk/dbdoctor/internal/testdb"
	"github.com/sbuerk/dbdoctor/pkg/health"
	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog, err := schema.NewCatalog([]schema.Table{
		{
			Name:              "pages",
			SoftDelete:        "deleted",
			Timestamp:         "tstamp",
			Creator:           "cruser_id",
			Type:              "doktype",
			Label:             "title",
			LabelAlt:          "subtitle, nav_title",
			Language:          "sys_language_uid",
			TranslationParent: "l10n_parent",
			Workspace:         "t3ver_wsid",
			VersioningWS:      true,
		},
		{
			Name:              "tt_content",
			SoftDelete:        "deleted",
			Timestamp:         "tstamp",
			Creator:           "cruser_id",
			Type:              "CType",
			Label:             "header",
			Language:          "sys_language_uid",
			TranslationParent: "l18n_parent",
			Workspace:         "t3ver_wsid",
			VersioningWS:      true,
		},
		{
			Name:       "sys_workspace",
			SoftDelete: "deleted",
			Label:      "title",
		},
		{
			Name:       "sys_file_reference",
			SoftDelete: "deleted",
			Timestamp:  "tstamp",
		},
	})
	require.NoError(t, err)
	return catalog
}

func newTestConn(t *testing.T) (*storage.Conn, *sqlx.DB) {
	t.Helper()
	db := testdb.CreateTestDB(t)
	conn, err := storage.New(db, storage.DialectSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, db
}

func countRows(t *testing.T, db *sqlx.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestWorkspaceOrphans(t *testing.T) {
	conn, db := newTestConn(t)
	check := health.NewWorkspaceOrphans(conn, testCatalog(t), "")

	db.MustExec(`INSERT INTO sys_workspace (uid, title) VALUES (1, 'staging')`)
	// Soft-deleted registry rows still exist physically and keep their
	// overlays valid.
	db.MustExec(`INSERT INTO sys_workspace (uid, title, deleted) VALUES (2, 'gone', 1)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (10, 1, 'live', 0)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (11, 1, 'staged', 1)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (12, 1, 'soft-kept', 2)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (13, 1, 'orphan', 7)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid, deleted) VALUES (14, 1, 'deleted orphan', 7, 1)`)
	db.MustExec(`INSERT INTO pages (uid, pid, title, t3ver_wsid) VALUES (20, 1, 'orphan page', 9)`)

	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.Equal(t, 3, findings.Len())
	require.Equal(t, []int64{13, 14}, findings.UIDs("tt_content"))
	require.Equal(t, []int64{20}, findings.UIDs("pages"))

	outcome, err := check.Repair(t.Context(), findings)
	require.NoError(t, err)
	require.Equal(t, int64(2), outcome.Deleted["tt_content"])
	require.Equal(t, int64(1), outcome.Deleted["pages"])

	// Detection after repair is empty, and untouched rows survive.
	verify, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.True(t, verify.Empty())
	require.Equal(t, int64(3), countRows(t, db, "tt_content"))
}

func TestWorkspaceOrphansMissingRegistryOrphansEverything(t *testing.T) {
	conn, db := newTestConn(t)
	db.MustExec(`DROP TABLE sys_workspace`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, t3ver_wsid) VALUES (1, 1, 0)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, t3ver_wsid) VALUES (2, 1, 4)`)

	check := health.NewWorkspaceOrphans(conn, testCatalog(t), "")
	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{2}, findings.UIDs("tt_content"))
}

func TestDanglingTranslationSources(t *testing.T) {
	conn, db := newTestConn(t)
	check := health.NewDanglingTranslationSources(conn, testCatalog(t))

	db.MustExec(`INSERT INTO tt_content (uid, pid, sys_language_uid, l18n_parent) VALUES (1, 1, 0, 0)`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, sys_language_uid, l18n_parent) VALUES (2, 1, 2, 1)`)
	// Default language but pointing at a translation source.
	db.MustExec(`INSERT INTO tt_content (uid, pid, sys_language_uid, l18n_parent) VALUES (3, 1, 0, 1)`)
	// "All languages" marker with a stale pointer.
	db.MustExec(`INSERT INTO tt_content (uid, pid, sys_language_uid, l18n_parent) VALUES (4, 1, -1, 9)`)
	db.MustExec(`INSERT INTO pages (uid, pid, sys_language_uid, l10n_parent) VALUES (5, 1, 0, 3)`)

	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{5}, findings.UIDs("pages"))
	require.Equal(t, []int64{3, 4}, findings.UIDs("tt_content"))

	outcome, err := check.Repair(t.Context(), findings)
	require.NoError(t, err)
	require.Equal(t, int64(2), outcome.Updated["tt_content"])
	require.Equal(t, int64(1), outcome.Updated["pages"])
	require.Empty(t, outcome.Deleted)

	// The repair resets pointers and keeps the records.
	require.Equal(t, int64(4), countRows(t, db, "tt_content"))
	var parent int64
	require.NoError(t, db.Get(&parent, "SELECT l18n_parent FROM tt_content WHERE uid = 3"))
	require.Zero(t, parent)
	// The real translation is untouched.
	require.NoError(t, db.Get(&parent, "SELECT l18n_parent FROM tt_content WHERE uid = 2"))
	require.Equal(t, int64(1), parent)

	verify, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.True(t, verify.Empty())
}

func TestDanglingTranslationSourcesRequiresConfiguredRoles(t *testing.T) {
	conn, _ := newTestConn(t)
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "tt_content", Language: "sys_language_uid", TranslationParent: "l18n_parent"},
		{Name: "pages", Language: "sys_language_uid", TranslationParent: ""},
	})
	require.NoError(t, err)

	// pages is not language aware without both roles, so it is simply not
	// scanned rather than failing the check.
	check := health.NewDanglingTranslationSources(conn, catalog)
	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.True(t, findings.Empty())
}

func TestDanglingFileReferences(t *testing.T) {
	conn, db := newTestConn(t)
	check := health.NewDanglingFileReferences(conn, "", "")

	db.MustExec(`INSERT INTO pages (uid, pid, title) VALUES (1, 0, 'home')`)
	db.MustExec(`INSERT INTO pages (uid, pid, title, deleted) VALUES (2, 1, 'trashed', 1)`)
	db.MustExec(`INSERT INTO sys_file_reference (uid, pid, tablenames) VALUES (10, 1, 'tt_content')`)
	// Soft-deleted page still exists physically, so the reference stands.
	db.MustExec(`INSERT INTO sys_file_reference (uid, pid, tablenames) VALUES (11, 2, 'tt_content')`)
	db.MustExec(`INSERT INTO sys_file_reference (uid, pid, tablenames) VALUES (12, 0, 'tt_content')`)
	db.MustExec(`INSERT INTO sys_file_reference (uid, pid, tablenames) VALUES (13, 99, 'tt_content')`)

	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{13}, findings.UIDs("sys_file_reference"))

	_, err = check.Repair(t.Context(), findings)
	require.NoError(t, err)
	require.Equal(t, int64(3), countRows(t, db, "sys_file_reference"))
}

func TestDanglingFileReferencesWithoutTable(t *testing.T) {
	conn, db := newTestConn(t)
	db.MustExec(`DROP TABLE sys_file_reference`)

	check := health.NewDanglingFileReferences(conn, "", "")
	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.True(t, findings.Empty())
}

func TestRecordsOnMissingPages(t *testing.T) {
	conn, db := newTestConn(t)
	check := health.NewRecordsOnMissingPages(conn, testCatalog(t),
		health.DefaultWorkspaceTable, health.DefaultFileReferenceTable)

	db.MustExec(`INSERT INTO pages (uid, pid, title) VALUES (1, 0, 'home')`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header) VALUES (10, 1, 'ok')`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header) VALUES (11, 0, 'root level')`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header) VALUES (12, 42, 'stranded')`)
	// Skipped tables are not scanned even with a dangling pid.
	db.MustExec(`INSERT INTO sys_workspace (uid, pid, title) VALUES (20, 42, 'ws')`)
	db.MustExec(`INSERT INTO sys_file_reference (uid, pid) VALUES (30, 42)`)

	findings, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"tt_content"}, findings.Tables())
	require.Equal(t, []int64{12}, findings.UIDs("tt_content"))

	_, err = check.Repair(t.Context(), findings)
	require.NoError(t, err)

	verify, err := check.Detect(t.Context())
	require.NoError(t, err)
	require.True(t, verify.Empty())
	require.Equal(t, int64(1), countRows(t, db, "sys_workspace"))
	require.Equal(t, int64(1), countRows(t, db, "sys_file_reference"))
}

// End-to-end scenario: a single execute-mode session removes the orphaned
// overlay, and a second session over the same store reports a clean bill.
func TestExecuteSessionIsIdempotent(t *testing.T) {
	conn, db := newTestConn(t)
	catalog := testCatalog(t)

	db.MustExec(`INSERT INTO sys_workspace (uid, title) VALUES (1, 'staging')`)
	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (10, 0, 'orphan', 7)`)

	run := func(input string) (health.Result, string) {
		var out bytes.Buffer
		runner := health.NewRunner(output.NewTestTerminal(strings.NewReader(input), &out))
		check := health.NewWorkspaceOrphans(conn, catalog, "")
		result, err := runner.Run(t.Context(), check, health.ModeExecute)
		require.NoError(t, err)
		return result, out.String()
	}

	result, _ := run("")
	require.Equal(t, health.ResultOK, result)
	require.Equal(t, int64(0), countRows(t, db, "tt_content"))

	result, out := run("")
	require.Equal(t, health.ResultOK, result)
	require.Contains(t, out, "No inconsistencies found.")
}

// Interactive abort must leave the store byte-for-byte as it was.
func TestInteractiveAbortLeavesStoreUntouched(t *testing.T) {
	conn, db := newTestConn(t)
	catalog := testCatalog(t)

	db.MustExec(`INSERT INTO tt_content (uid, pid, header, t3ver_wsid) VALUES (10, 0, 'orphan', 7)`)

	var out bytes.Buffer
	runner := health.NewRunner(output.NewTestTerminal(strings.NewReader("p\nd\na\n"), &out))
	check := health.NewWorkspaceOrphans(conn, catalog, "")
	result, err := runner.Run(t.Context(), check, health.ModeInteractive)
	require.NoError(t, err)
	require.Equal(t, health.ResultAborted, result)
	require.Equal(t, int64(1), countRows(t, db, "tt_content"))
}
