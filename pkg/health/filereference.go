package health

import (
	"context"

	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

// Conventional table names for the file reference check.
const (
	DefaultFileReferenceTable = "sys_file_reference"
	DefaultPagesTable         = "pages"
)

// DanglingFileReferences finds file reference records whose containing page
// no longer exists. References on root level (pid 0) are fine; everything
// else must resolve to a physical pages row, soft-deleted or not. Offered
// repair: delete the dangling references.
type DanglingFileReferences struct {
	conn       *storage.Conn
	table      string
	pagesTable string
}

func NewDanglingFileReferences(conn *storage.Conn, table, pagesTable string) *DanglingFileReferences {
	if table == "" {
		table = DefaultFileReferenceTable
	}
	if pagesTable == "" {
		pagesTable = DefaultPagesTable
	}
	return &DanglingFileReferences{conn: conn, table: table, pagesTable: pagesTable}
}

func (c *DanglingFileReferences) Identifier() string { return "dangling-file-references" }

func (c *DanglingFileReferences) Title() string {
	return "File references on missing pages"
}

func (c *DanglingFileReferences) Describe() string {
	return `File reference records attach files to content on a page. When the page
row itself has been removed from the database, the references can never be
displayed or edited again. Offered repair: delete the dangling file
reference records.`
}

func (c *DanglingFileReferences) Detect(ctx context.Context) (*FindingSet, error) {
	findings := NewFindingSet()
	exists, err := c.conn.TableExists(ctx, c.table)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Optional companion table; nothing to audit without it.
		log.Debugf("table %s not present, skipping", c.table)
		return findings, nil
	}

	conds := []storage.Cond{
		storage.Neq(schema.PageIDField, 0),
		storage.NotInTable(schema.PageIDField, c.pagesTable, schema.UIDField),
	}
	if err := collectInto(ctx, c.conn, findings, c.table, conds); err != nil {
		return nil, err
	}
	return findings, nil
}

func (c *DanglingFileReferences) Repair(ctx context.Context, findings *FindingSet) (Outcome, error) {
	return deleteAll(ctx, c.conn, findings)
}

var _ Check = (*DanglingFileReferences)(nil)
