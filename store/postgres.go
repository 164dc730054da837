package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool wraps a pgx connection pool for the hot transactional paths:
// version inserts, compile/eval/drift/regression run writes. Admin tables
// (Workspace, Ontology) go through GORM instead — see admin_gorm.go — since they
// are low-volume and benefit more from struct mapping than from raw SQL control.
type PostgresPool struct {
	pool *pgxpool.Pool
}

// NewPostgresPool opens a pooled connection and verifies connectivity.
func NewPostgresPool(ctx context.Context, dsn string) (*PostgresPool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresPool{pool: pool}, nil
}

// Close releases all pooled connections.
func (p *PostgresPool) Close() {
	p.pool.Close()
}

// Exec runs a statement that returns no rows.
func (p *PostgresPool) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

// Query runs a statement that returns rows. Callers must close the returned Rows.
func (p *PostgresPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// QueryRow runs a statement expected to return exactly one row.
func (p *PostgresPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// BeginTx starts a transaction, used by create_version to linearize version
// numbering. Drift-event writes do not use a transaction.
func (p *PostgresPool) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// Pool exposes the underlying pgxpool for callers that need batch operations.
func (p *PostgresPool) Pool() *pgxpool.Pool {
	return p.pool
}
