package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeout    = 60 * time.Second
	defaultMaxConnectWait = 15 * time.Second
)

// Config selects the database to audit.
type Config struct {
	Driver string
	DSN    string
}

// Open connects to the configured database and verifies it is reachable,
// retrying the initial ping with exponential backoff. A store that cannot be
// reached at startup fails the whole run.
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	var (
		dialect Dialect
		driver  string
		dsn     string
	)
	switch cfg.Driver {
	case "", "sqlite":
		dialect = DialectSQLite
		driver = "sqlite"
		dsn = sqliteDSN(cfg.DSN)
	case "mysql":
		dialect = DialectMySQL
		driver = "mysql"
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dialect == DialectSQLite {
		// modernc SQLite deadlocks on internal locks with a larger pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(defaultMaxConnectWait))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	log.Debugf("connected to %s database", driver)

	return New(db, dialect)
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, defaultBusyTimeout.Milliseconds())
}
