package health

import (
	"context"

	"github.com/sbuerk/dbdoctor/pkg/schema"
	"github.com/sbuerk/dbdoctor/pkg/storage"
)

// collectInto scans one table for rows matching conds and adds them to the
// finding set. One check may collect from many tables; table order in the
// finding set follows collection order.
func collectInto(ctx context.Context, conn *storage.Conn, findings *FindingSet, table string, conds []storage.Cond) error {
	rows, err := conn.SelectRows(ctx, storage.Query{Table: table, Where: conds})
	if err != nil {
		return err
	}
	for _, row := range rows {
		findings.Add(Record{
			Table:  table,
			UID:    row.Int64(schema.UIDField),
			PageID: row.Int64(schema.PageIDField),
			Fields: row,
		})
	}
	return nil
}

// deleteAll removes every finding of every table, recording per-table counts.
func deleteAll(ctx context.Context, conn *storage.Conn, findings *FindingSet) (Outcome, error) {
	outcome := NewOutcome()
	for _, table := range findings.Tables() {
		affected, err := conn.DeleteByUID(ctx, table, findings.UIDs(table))
		if err != nil {
			return outcome, err
		}
		outcome.Deleted[table] += affected
	}
	return outcome, nil
}
