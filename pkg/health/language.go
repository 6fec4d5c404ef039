package health

import (
	"context"

	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

// DanglingTranslationSources finds records of language-aware tables whose
// language id is below the minimum valid value while their translation-parent
// field still points at a source record. Such records are not translations,
// so the pointer is meaningless and confuses translation handling. Offered
// repair: reset the translation-parent field to 0; the record itself is kept.
type DanglingTranslationSources struct {
	conn    *storage.Conn
	catalog *schema.Catalog
}

func NewDanglingTranslationSources(conn *storage.Conn, catalog *schema.Catalog) *DanglingTranslationSources {
	return &DanglingTranslationSources{conn: conn, catalog: catalog}
}

func (c *DanglingTranslationSources) Identifier() string { return "dangling-translation-sources" }

func (c *DanglingTranslationSources) Title() string {
	return "Default-language records with a translation source"
}

func (c *DanglingTranslationSources) Describe() string {
	return `Records in the default language (or with the "all languages" marker) must
not point at a translation source. Records found here keep a nonzero
translation-parent value despite not being translations. Offered repair: set
the translation-parent field to 0. No record is deleted.`
}

func (c *DanglingTranslationSources) Detect(ctx context.Context) (*FindingSet, error) {
	findings := NewFindingSet()
	for table := range c.catalog.LanguageAwareTables() {
		languageField, err := c.catalog.RequireField(table.Name, schema.RoleLanguage)
		if err != nil {
			return nil, err
		}
		parentField, err := c.catalog.RequireField(table.Name, schema.RoleTranslationParent)
		if err != nil {
			return nil, err
		}
		conds := []storage.Cond{
			storage.Lt(languageField, 1),
			storage.Neq(parentField, 0),
		}
		if err := collectInto(ctx, c.conn, findings, table.Name, conds); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

func (c *DanglingTranslationSources) Repair(ctx context.Context, findings *FindingSet) (Outcome, error) {
	outcome := NewOutcome()
	for _, table := range findings.Tables() {
		parentField, err := c.catalog.RequireField(table, schema.RoleTranslationParent)
		if err != nil {
			return outcome, err
		}
		affected, err := c.conn.UpdateFieldByUID(ctx, table, parentField, 0, findings.UIDs(table))
		if err != nil {
			return outcome, err
		}
		outcome.Updated[table] += affected
	}
	return outcome, nil
}

var _ Check = (*DanglingTranslationSources)(nil)
