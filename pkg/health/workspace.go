package health

import (
	"context"

	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

// DefaultWorkspaceTable is the conventional workspace registry table.
const DefaultWorkspaceTable = "sys_workspace"

// WorkspaceOrphans finds workspace overlay records whose workspace id points
// at nothing in the registry. The defining anomaly is structural, so the scan
// covers all physical rows: soft-deleted overlays are just as orphaned. A
// registry row counts as existing even when it is itself soft-deleted; only a
// physically missing workspace id makes an orphan. When the registry table
// does not exist at all, every overlay row is an orphan.
type WorkspaceOrphans struct {
	conn          *storage.Conn
	catalog       *schema.Catalog
	registryTable string
}

func NewWorkspaceOrphans(conn *storage.Conn, catalog *schema.Catalog, registryTable string) *WorkspaceOrphans {
	if registryTable == "" {
		registryTable = DefaultWorkspaceTable
	}
	return &WorkspaceOrphans{conn: conn, catalog: catalog, registryTable: registryTable}
}

func (c *WorkspaceOrphans) Identifier() string { return "workspace-orphans" }

func (c *WorkspaceOrphans) Title() string {
	return "Workspace overlay records without a workspace"
}

func (c *WorkspaceOrphans) Describe() string {
	return `Workspace-enabled tables carry overlay records tagged with the workspace
they belong to. When a workspace is removed from the registry, its overlay
records linger invisibly and can resurface after publishing operations.
Offered repair: delete the orphaned overlay records.`
}

func (c *WorkspaceOrphans) Detect(ctx context.Context) (*FindingSet, error) {
	registryExists, err := c.conn.TableExists(ctx, c.registryTable)
	if err != nil {
		return nil, err
	}

	findings := NewFindingSet()
	for table := range c.catalog.WorkspaceEnabledTables() {
		if table.Name == c.registryTable {
			continue
		}
		conds := []storage.Cond{storage.Gt(table.Workspace, 0)}
		if registryExists {
			conds = append(conds, storage.NotInTable(table.Workspace, c.registryTable, schema.UIDField))
		}
		if err := collectInto(ctx, c.conn, findings, table.Name, conds); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

func (c *WorkspaceOrphans) Repair(ctx context.Context, findings *FindingSet) (Outcome, error) {
	return deleteAll(ctx, c.conn, findings)
}

var _ Check = (*WorkspaceOrphans)(nil)
