package schema_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbuerk/dbdoctor/pkg/schema"
)

func TestFieldResolution(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "pages", SoftDelete: "deleted", Timestamp: "tstamp", Language: "sys_language_uid"},
	})
	require.NoError(t, err)

	name, ok := catalog.Field("pages", schema.RoleSoftDelete)
	require.True(t, ok)
	require.Equal(t, "deleted", name)

	_, ok = catalog.Field("pages", schema.RoleWorkspace)
	require.False(t, ok)

	_, ok = catalog.Field("no_such_table", schema.RoleSoftDelete)
	require.False(t, ok)
}

func TestRequireField(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "tt_content", Workspace: "t3ver_wsid"},
	})
	require.NoError(t, err)

	name, err := catalog.RequireField("tt_content", schema.RoleWorkspace)
	require.NoError(t, err)
	require.Equal(t, "t3ver_wsid", name)

	_, err = catalog.RequireField("tt_content", schema.RoleLanguage)
	var incomplete *schema.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	require.Equal(t, "tt_content", incomplete.Table)
	require.Equal(t, schema.RoleLanguage, incomplete.Role)
}

func TestLabelFields(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "plain"},
		{Name: "primary_only", Label: "title"},
		{Name: "alt_only", LabelAlt: "alt1, alt2, , "},
		{Name: "both", Label: "title", LabelAlt: "alt1, alt2"},
	})
	require.NoError(t, err)

	_, configured := catalog.LabelFields("plain")
	require.False(t, configured, "no label configured must be distinguishable from empty")

	fields, configured := catalog.LabelFields("primary_only")
	require.True(t, configured)
	require.Equal(t, []string{"title"}, fields)

	fields, configured = catalog.LabelFields("alt_only")
	require.True(t, configured)
	require.Equal(t, []string{"alt1", "alt2"}, fields)

	fields, configured = catalog.LabelFields("both")
	require.True(t, configured)
	require.Equal(t, []string{"title", "alt1", "alt2"}, fields)
}

func TestWorkspaceEnabledTablesOrderAndPredicate(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "pages", Workspace: "t3ver_wsid", VersioningWS: true},
		{Name: "sys_category", Workspace: "t3ver_wsid", VersioningWS: false},
		{Name: "tt_content", Workspace: "t3ver_wsid", VersioningWS: true},
		{Name: "be_users"},
	})
	require.NoError(t, err)

	var names []string
	for table := range catalog.WorkspaceEnabledTables() {
		names = append(names, table.Name)
	}
	require.Equal(t, []string{"pages", "tt_content"}, names)

	// Re-walking yields the same sequence.
	var again []string
	for table := range catalog.WorkspaceEnabledTables() {
		again = append(again, table.Name)
	}
	require.Equal(t, names, again)
}

func TestLanguageAwareTables(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "tt_content", Language: "sys_language_uid", TranslationParent: "l18n_parent"},
		{Name: "sys_file_reference", Language: "sys_language_uid"},
		{Name: "pages", Language: "sys_language_uid", TranslationParent: "l10n_parent"},
	})
	require.NoError(t, err)

	var names []string
	for table := range catalog.LanguageAwareTables() {
		names = append(names, table.Name)
	}
	require.Equal(t, []string{"tt_content", "pages"}, names)
}

func TestEnumerationIsLazy(t *testing.T) {
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "a", Workspace: "ws", VersioningWS: true},
		{Name: "b", Workspace: "ws", VersioningWS: true},
		{Name: "c", Workspace: "ws", VersioningWS: true},
	})
	require.NoError(t, err)

	var seen []string
	for table := range catalog.WorkspaceEnabledTables() {
		seen = append(seen, table.Name)
		if len(seen) == 2 {
			break
		}
	}
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := schema.NewCatalog([]schema.Table{
		{Name: "pages"},
		{Name: "pages"},
	})
	require.Error(t, err)
}

func TestParseCatalog(t *testing.T) {
	catalog, err := schema.Parse([]byte(`
tables:
  - name: pages
    softDelete: deleted
    label: title
    labelAlt: "subtitle, nav_title"
    workspace: t3ver_wsid
    versioningWS: 1
  - name: sys_workspace
    softDelete: deleted
  - name: tt_content
    softDelete: deleted
    language: sys_language_uid
    translationParent: l18n_parent
    workspace: t3ver_wsid
    versioningWS: 0
`))
	require.NoError(t, err)

	// versioningWS accepts 1/0 as well as true/false.
	var wsTables []string
	for table := range catalog.WorkspaceEnabledTables() {
		wsTables = append(wsTables, table.Name)
	}
	require.Equal(t, []string{"pages"}, wsTables)

	fields, configured := catalog.LabelFields("pages")
	require.True(t, configured)
	require.Equal(t, []string{"title", "subtitle", "nav_title"}, fields)

	names := slices.Collect(catalog.Tables())
	require.Len(t, names, 3)
}

func TestParseCatalogRejectsUnnamedTable(t *testing.T) {
	_, err := schema.Parse([]byte("tables:\n  - softDelete: deleted\n"))
	require.Error(t, err)
}
