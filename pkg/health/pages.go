package health

import (
	"context"

	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

// RecordsOnMissingPages walks the whole catalog and finds records whose pid
// points at a page that does not physically exist. The pages table itself,
// the workspace registry and the file reference table are excluded: pages
// form the hierarchy being checked against, and file references have their
// own dedicated check. Offered repair: delete the stranded records.
type RecordsOnMissingPages struct {
	conn    *storage.Conn
	catalog *schema.Catalog
	skip    map[string]struct{}
}

func NewRecordsOnMissingPages(conn *storage.Conn, catalog *schema.Catalog, skipTables ...string) *RecordsOnMissingPages {
	skip := map[string]struct{}{
		DefaultPagesTable: {},
	}
	for _, table := range skipTables {
		skip[table] = struct{}{}
	}
	return &RecordsOnMissingPages{conn: conn, catalog: catalog, skip: skip}
}

func (c *RecordsOnMissingPages) Identifier() string { return "records-on-missing-pages" }

func (c *RecordsOnMissingPages) Title() string {
	return "Records on pages that do not exist"
}

func (c *RecordsOnMissingPages) Describe() string {
	return `Every record below the root lives on a page. Records whose page row has
been removed from the database are unreachable through any backend or
frontend rendering path. Offered repair: delete the stranded records.`
}

func (c *RecordsOnMissingPages) Detect(ctx context.Context) (*FindingSet, error) {
	findings := NewFindingSet()
	for table := range c.catalog.Tables() {
		if _, skip := c.skip[table.Name]; skip {
			continue
		}
		exists, err := c.conn.TableExists(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			log.Debugf("catalog table %s not present, skipping", table.Name)
			continue
		}
		conds := []storage.Cond{
			storage.Neq(schema.PageIDField, 0),
			storage.NotInTable(schema.PageIDField, DefaultPagesTable, schema.UIDField),
		}
		if err := collectInto(ctx, c.conn, findings, table.Name, conds); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

func (c *RecordsOnMissingPages) Repair(ctx context.Context, findings *FindingSet) (Outcome, error) {
	return deleteAll(ctx, c.conn, findings)
}

var _ Check = (*RecordsOnMissingPages)(nil)
