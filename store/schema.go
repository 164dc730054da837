package store

import (
	"context"
	"fmt"
)

// pgxSchema creates every table the raw pgx paths (VersionStore, RunStore, and
// async's StateStore, which borrows this same pool via Store.Postgres) write
// to directly. Workspace/Ontology/ArtifactBundleRecord/LifecycleEvent/
// DeployedView go through GORM's AutoMigrate in NewAdminStore instead — these
// six are the ones nothing else migrates, so a fresh deployment would
// otherwise fail its first insert. CREATE TABLE IF NOT EXISTS makes this safe
// to run on every startup, matching AutoMigrate's own idempotency.
const pgxSchema = `
CREATE TABLE IF NOT EXISTS ontology_versions (
	id text PRIMARY KEY,
	ontology_id text NOT NULL,
	version_number int NOT NULL,
	content_hash text NOT NULL,
	author text,
	notes text,
	created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ontology_versions_ontology ON ontology_versions (ontology_id);

CREATE TABLE IF NOT EXISTS compile_runs (
	id text PRIMARY KEY,
	version_id text NOT NULL,
	target text,
	options jsonb,
	status text NOT NULL,
	artifact_ref text,
	error_text text,
	started_at timestamptz NOT NULL,
	completed_at timestamptz
);
CREATE INDEX IF NOT EXISTS idx_compile_runs_version ON compile_runs (version_id);

CREATE TABLE IF NOT EXISTS eval_runs (
	id text PRIMARY KEY,
	version_id text NOT NULL,
	profile text,
	metrics jsonb,
	passed boolean NOT NULL,
	created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_eval_runs_version ON eval_runs (version_id);

CREATE TABLE IF NOT EXISTS drift_events (
	id text PRIMARY KEY,
	ontology_id text NOT NULL,
	event_type text NOT NULL,
	details jsonb,
	details_hash text,
	status text NOT NULL,
	created_at timestamptz NOT NULL,
	resolved_at timestamptz
);
CREATE INDEX IF NOT EXISTS idx_drift_events_dedup ON drift_events (ontology_id, event_type, status, details_hash);

CREATE TABLE IF NOT EXISTS regression_runs (
	id text PRIMARY KEY,
	version_id text NOT NULL,
	view_id text,
	question_count int NOT NULL,
	pass_count int NOT NULL,
	fail_count int NOT NULL,
	results jsonb,
	overall_pass boolean NOT NULL,
	total_latency_ms bigint,
	junit_ref text,
	created_at timestamptz NOT NULL,
	completed_at timestamptz
);
CREATE INDEX IF NOT EXISTS idx_regression_runs_version ON regression_runs (version_id);

CREATE TABLE IF NOT EXISTS async_tasks (
	id text PRIMARY KEY,
	kind text NOT NULL,
	workspace_id text,
	args jsonb,
	state text NOT NULL,
	result jsonb,
	error_code text,
	error_text text,
	retryable boolean DEFAULT false,
	cancel_requested boolean DEFAULT false,
	created_at timestamptz NOT NULL,
	started_at timestamptz,
	completed_at timestamptz
);
CREATE INDEX IF NOT EXISTS idx_async_tasks_kind_state ON async_tasks (kind, state);
`

// migratePgxSchema runs the pgx-owned schema against pg, idempotently.
func migratePgxSchema(ctx context.Context, pg *PostgresPool) error {
	if err := pg.Exec(ctx, pgxSchema); err != nil {
		return fmt.Errorf("migrate pgx schema: %w", err)
	}
	return nil
}
