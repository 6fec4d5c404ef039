// Package testdb boots throwaway SQLite databases carrying the CMS fixture
// schema for tests.
package testdb

import (
	"embed"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CreateTestDB creates a temporary SQLite database for testing and applies
// the embedded fixture schema. Each test gets its own database file to avoid
// cross-test contention; the pool is capped at one connection so modernc
// SQLite doesn't deadlock waiting on internal locks.
func CreateTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	d := t.TempDir()
	dsn := fmt.Sprintf("file:%s/testdb_%d.db", d, time.Now().UnixNano())

	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err, "failed to open SQLite database")
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	t.Cleanup(func() {
		db.Close()
	})

	// Disable goose logging; goose doesn't provide a direct switch.
	// see: https://github.com/pressly/goose/issues/975
	log.Default().SetOutput(io.Discard)

	goose.SetBaseFS(migrationsFS)

	require.NoError(t, goose.SetDialect("sqlite3"), "failed to set goose dialect")

	require.NoError(t, goose.Up(db.DB, "migrations"), "failed to apply fixture schema")

	return db
}
