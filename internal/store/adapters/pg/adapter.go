// Package pg implementa el adapter PostgreSQL sobre pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/store"
	pgmigrations "github.com/dropDatabas3/horizonauth/migrations/postgres"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.Connection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	// Configurar pool
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		poolCfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	// Verificar conexión
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	sealer := cfg.Sealer
	if sealer == nil {
		sealer = store.Plaintext{}
	}
	return &pgConnection{pool: pool, sealer: sealer}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool   *pgxpool.Pool
	sealer store.Sealer
}

func (c *pgConnection) Name() string                   { return "postgres" }
func (c *pgConnection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }
func (c *pgConnection) Close() error                   { c.pool.Close(); return nil }

func (c *pgConnection) Identities() repository.ExternalIdentityRepository {
	return &identityRepo{pool: c.pool, sealer: c.sealer}
}

func (c *pgConnection) LocalUsers() repository.LocalUserRepository {
	return &localUserRepo{pool: c.pool}
}

// Migrate aplica migrations/postgres.
func (c *pgConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	m := store.NewMigrator(pgmigrations.FS, pgmigrations.Dir, store.DialectPostgres)
	return m.Run(ctx, poolExecutor{c.pool})
}

// poolExecutor adapta pgxpool a store.Executor.
type poolExecutor struct{ pool *pgxpool.Pool }

func (e poolExecutor) Exec(ctx context.Context, q string, args ...any) error {
	_, err := e.pool.Exec(ctx, q, args...)
	return err
}

func (e poolExecutor) QueryInts(ctx context.Context, q string) ([]int, error) {
	rows, err := e.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// isUniqueViolation detecta SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
