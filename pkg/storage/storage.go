// Package storage is the query execution adapter: a thin, dialect-aware
// surface over the relational store. It offers filtered reads streamed in
// primary-key order, primary-key-set deletes and updates, and a live table
// existence probe. Any failure here means the store cannot be trusted and is
// propagated to the caller unwrapped of intent: nothing in this package
// retries a failed statement.
package storage

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jmoiron/sqlx"
)

var log = logging.Logger("storage")

// Dialect selects identifier quoting and catalog probing strategies.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectMySQL
)

const defaultPreparedStmtCacheSize = 128

// Conn wraps a live database handle together with a prepared statement cache.
type Conn struct {
	db            *sqlx.DB
	dialect       Dialect
	preparedStmts *lru.Cache[string, *sqlx.Stmt]
}

// New creates a Conn over an open database handle.
func New(db *sqlx.DB, dialect Dialect) (*Conn, error) {
	cache, err := lru.NewWithEvict(defaultPreparedStmtCacheSize, func(key string, stmt *sqlx.Stmt) {
		stmt.Close()
	})
	if err != nil {
		return nil, err
	}
	return &Conn{db: db, dialect: dialect, preparedStmts: cache}, nil
}

func (c *Conn) Close() error {
	c.preparedStmts.Purge()
	return c.db.Close()
}

// Dialect returns the dialect the connection was opened with.
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// quote wraps an identifier in the dialect's quoting characters. Identifiers
// come from the schema catalog and fixed structural columns, never from row
// data, but quoting keeps reserved words usable as field names.
func (c *Conn) quote(ident string) string {
	if c.dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Row is one physical row captured at detection time, raw column name to
// scalar value.
type Row map[string]any

// Int64 reads a column as int64, tolerating the representations the drivers
// hand back for integer columns.
func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Render formats a column value for terminal output.
func (r Row) Render(column string) string {
	switch v := r[column].(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
