// Package sqlite implementa el adapter SQLite (modernc.org/sqlite, sin cgo).
// Pensado para desarrollo, tests y despliegues de un solo nodo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/store"
	sqlitemigrations "github.com/dropDatabas3/horizonauth/migrations/sqlite"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.Connection, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: dsn is required")
	}
	memory := strings.Contains(dsn, ":memory:")

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// :memory: vive por conexión; con una sola conexión todos ven la misma DB.
	if memory {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	sealer := cfg.Sealer
	if sealer == nil {
		sealer = store.Plaintext{}
	}
	return &sqliteConnection{db: db, sealer: sealer}, nil
}

// withPragmas agrega foreign_keys y busy_timeout al DSN.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

type sqliteConnection struct {
	db     *sql.DB
	sealer store.Sealer
}

func (c *sqliteConnection) Name() string                   { return "sqlite" }
func (c *sqliteConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqliteConnection) Close() error                   { return c.db.Close() }

func (c *sqliteConnection) Identities() repository.ExternalIdentityRepository {
	return &identityRepo{db: c.db, sealer: c.sealer}
}

func (c *sqliteConnection) LocalUsers() repository.LocalUserRepository {
	return &localUserRepo{db: c.db}
}

// Migrate aplica migrations/sqlite.
func (c *sqliteConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	m := store.NewMigrator(sqlitemigrations.FS, sqlitemigrations.Dir, store.DialectSQLite)
	return m.Run(ctx, dbExecutor{c.db})
}

type dbExecutor struct{ db *sql.DB }

func (e dbExecutor) Exec(ctx context.Context, q string, args ...any) error {
	_, err := e.db.ExecContext(ctx, q, args...)
	return err
}

func (e dbExecutor) QueryInts(ctx context.Context, q string) ([]int, error) {
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }
