package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sbuerk/dbdoctor/pkg/schema"
)

// defaultBatchSize bounds one keyset-paginated fetch.
const defaultBatchSize = 1000

// maxKeySetSize bounds the number of placeholders in one IN expansion.
const maxKeySetSize = 500

// Cond is one declarative predicate of a read query. Conditions are built
// from catalog-resolved field names plus the fixed structural columns; row
// values always travel as placeholders.
type Cond struct {
	build func(c *Conn) (string, []any)
}

// Eq matches rows whose field equals v.
func Eq(field string, v any) Cond {
	return Cond{build: func(c *Conn) (string, []any) {
		return c.quote(field) + " = ?", []any{v}
	}}
}

// Neq matches rows whose field differs from v.
func Neq(field string, v any) Cond {
	return Cond{build: func(c *Conn) (string, []any) {
		return c.quote(field) + " <> ?", []any{v}
	}}
}

// Lt matches rows whose field is below v.
func Lt(field string, v any) Cond {
	return Cond{build: func(c *Conn) (string, []any) {
		return c.quote(field) + " < ?", []any{v}
	}}
}

// Gt matches rows whose field is above v.
func Gt(field string, v any) Cond {
	return Cond{build: func(c *Conn) (string, []any) {
		return c.quote(field) + " > ?", []any{v}
	}}
}

// NotInTable matches rows whose field has no counterpart in refTable.refField.
func NotInTable(field, refTable, refField string) Cond {
	return Cond{build: func(c *Conn) (string, []any) {
		return fmt.Sprintf("%s NOT IN (SELECT %s FROM %s)",
			c.quote(field), c.quote(refField), c.quote(refTable)), nil
	}}
}

// Query describes a filtered read. Results are always ordered by uid and
// fetched in batches; Columns empty means full row projection.
type Query struct {
	Table     string
	Columns   []string
	Where     []Cond
	BatchSize int
}

func (c *Conn) prepareStmt(ctx context.Context, query string) (*sqlx.Stmt, error) {
	if stmt, ok := c.preparedStmts.Get(query); ok {
		return stmt, nil
	}
	stmt, err := c.db.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	_ = c.preparedStmts.Add(query, stmt)
	return stmt, nil
}

// SelectRows runs a filtered read ordered by uid, streaming the table in
// keyset-paginated batches so one oversized table cannot pin the whole result
// set in a single round trip.
func (c *Conn) SelectRows(ctx context.Context, q Query) ([]Row, error) {
	projection := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, 0, len(q.Columns))
		for _, col := range q.Columns {
			quoted = append(quoted, c.quote(col))
		}
		projection = strings.Join(quoted, ", ")
	}

	batch := q.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	var (
		clauses []string
		args    []any
	)
	for _, cond := range q.Where {
		clause, condArgs := cond.build(c)
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}
	uid := c.quote(schema.UIDField)
	clauses = append(clauses, uid+" > ?")

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %d",
		projection, c.quote(q.Table), strings.Join(clauses, " AND "), uid, batch)

	stmt, err := c.prepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	var (
		result  []Row
		lastUID int64
	)
	for {
		rows, err := stmt.QueryxContext(ctx, append(append([]any{}, args...), lastUID)...)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", q.Table, err)
		}
		fetched := 0
		for rows.Next() {
			row := Row{}
			if err := rows.MapScan(row); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s row: %w", q.Table, err)
			}
			result = append(result, row)
			lastUID = row.Int64(schema.UIDField)
			fetched++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading %s rows: %w", q.Table, err)
		}
		rows.Close()
		if fetched < batch {
			return result, nil
		}
	}
}

// TableExists probes the live catalog for the named table. The result is not
// cached: a long session may outlive schema changes made elsewhere. Only a
// failing catalog query is an error, absence is not.
func (c *Conn) TableExists(ctx context.Context, table string) (bool, error) {
	var query string
	switch c.dialect {
	case DialectMySQL:
		query = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	default:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var name string
	err := c.db.QueryRowxContext(ctx, c.db.Rebind(query), table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing for table %s: %w", table, err)
	}
	return true, nil
}

// DeleteByUID hard-deletes the rows with the given primary keys. The key set
// is chunked so placeholder counts stay bounded.
func (c *Conn) DeleteByUID(ctx context.Context, table string, uids []int64) (int64, error) {
	var affected int64
	for chunk := range chunked(uids, maxKeySetSize) {
		query, args, err := sqlx.In(
			fmt.Sprintf("DELETE FROM %s WHERE %s IN (?)", c.quote(table), c.quote(schema.UIDField)), chunk)
		if err != nil {
			return affected, fmt.Errorf("expanding delete key set: %w", err)
		}
		res, err := c.db.ExecContext(ctx, c.db.Rebind(query), args...)
		if err != nil {
			return affected, fmt.Errorf("deleting from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, fmt.Errorf("counting deleted %s rows: %w", table, err)
		}
		affected += n
	}
	log.Debugf("deleted %d rows from %s", affected, table)
	return affected, nil
}

// UpdateFieldByUID sets one field to a fixed value on the rows with the given
// primary keys. This is the only corrective mutation besides deletion.
func (c *Conn) UpdateFieldByUID(ctx context.Context, table, field string, value any, uids []int64) (int64, error) {
	var affected int64
	for chunk := range chunked(uids, maxKeySetSize) {
		query, args, err := sqlx.In(
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IN (?)",
				c.quote(table), c.quote(field), c.quote(schema.UIDField)), value, chunk)
		if err != nil {
			return affected, fmt.Errorf("expanding update key set: %w", err)
		}
		res, err := c.db.ExecContext(ctx, c.db.Rebind(query), args...)
		if err != nil {
			return affected, fmt.Errorf("updating %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, fmt.Errorf("counting updated %s rows: %w", table, err)
		}
		affected += n
	}
	log.Debugf("updated %d rows in %s", affected, table)
	return affected, nil
}

func chunked(uids []int64, size int) func(yield func([]int64) bool) {
	return func(yield func([]int64) bool) {
		for start := 0; start < len(uids); start += size {
			end := min(start+size, len(uids))
			if !yield(uids[start:end]) {
				return
			}
		}
	}
}
