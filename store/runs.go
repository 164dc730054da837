package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStore persists CompileRun, EvalRun, DriftEvent and RegressionRun rows.
// Terminal-status rows are never updated except for the DriftEvent
// OPEN→RESOLVED / OPEN→IGNORED transitions.
type RunStore struct {
	pg *PostgresPool
}

// NewRunStore wraps a PostgresPool as a RunStore.
func NewRunStore(pg *PostgresPool) *RunStore {
	return &RunStore{pg: pg}
}

// WriteCompileRun inserts a new CompileRun in PENDING status.
func (s *RunStore) WriteCompileRun(ctx context.Context, versionID, target string, options []byte) (*CompileRun, error) {
	run := &CompileRun{
		ID:        uuid.NewString(),
		VersionID: versionID,
		Target:    target,
		Options:   options,
		Status:    CompilePending,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pg.Pool().Exec(ctx, `INSERT INTO compile_runs (id, version_id, target, options, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, run.ID, run.VersionID, run.Target, run.Options, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("write compile run: %w", err)
	}
	return run, nil
}

// UpdateCompileRunStatus transitions a CompileRun's status, recording the
// artifact pointer or error text and, for terminal states, completed_at.
func (s *RunStore) UpdateCompileRunStatus(ctx context.Context, id string, status CompileStatus, artifactRef, errText string) error {
	var completedAt *time.Time
	if status == CompileSuccess || status == CompileFailed {
		t := time.Now().UTC()
		completedAt = &t
	}
	_, err := s.pg.Pool().Exec(ctx, `UPDATE compile_runs SET status = $2, artifact_ref = $3, error_text = $4, completed_at = $5
		WHERE id = $1`, id, status, artifactRef, errText, completedAt)
	if err != nil {
		return fmt.Errorf("update compile run %s: %w", id, err)
	}
	return nil
}

// WriteEvalRun inserts a completed EvalRun — evaluation is synchronous, so there
// is no PENDING/RUNNING phase to track separately.
func (s *RunStore) WriteEvalRun(ctx context.Context, versionID, profile string, metrics []byte, passed bool) (*EvalRun, error) {
	run := &EvalRun{
		ID:        uuid.NewString(),
		VersionID: versionID,
		Profile:   profile,
		Metrics:   metrics,
		Passed:    passed,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pg.Pool().Exec(ctx, `INSERT INTO eval_runs (id, version_id, profile, metrics, passed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, run.ID, run.VersionID, run.Profile, run.Metrics, run.Passed, run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("write eval run: %w", err)
	}
	return run, nil
}

// WriteDriftEvent inserts a new OPEN drift event unconditionally; it does not
// check for an open event with the same (ontology, event_type, details-hash) —
// dedup is the drift detector's responsibility via DriftEventExists, called
// before this.
// detailsHash is the caller's own fingerprint of details (see
// drift.detailsHash) and is stored verbatim in its own column rather than
// recomputed by Postgres, since jsonb reorders object keys on round-trip and a
// server-side md5(details::text) would never agree with the Go-side hash.
func (s *RunStore) WriteDriftEvent(ctx context.Context, ontologyID string, eventType DriftEventType, details []byte, detailsHash string) (*DriftEvent, error) {
	ev := &DriftEvent{
		ID:         uuid.NewString(),
		OntologyID: ontologyID,
		EventType:  eventType,
		Details:    details,
		Status:     DriftOpen,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pg.Pool().Exec(ctx, `INSERT INTO drift_events (id, ontology_id, event_type, details, details_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, ev.ID, ev.OntologyID, ev.EventType, ev.Details, detailsHash, ev.Status, ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("write drift event: %w", err)
	}
	return ev, nil
}

// DriftEventExists reports whether an OPEN event with the given
// (ontology, event_type, details-hash) is already recorded, for dedup. This is
// the authoritative fallback once the Redis dedup index has no entry or isn't
// configured at all.
func (s *RunStore) DriftEventExists(ctx context.Context, ontologyID string, eventType DriftEventType, detailsHash string) (bool, error) {
	var count int
	err := s.pg.Pool().QueryRow(ctx, `SELECT count(*) FROM drift_events
		WHERE ontology_id = $1 AND event_type = $2 AND status = 'OPEN' AND details_hash = $3`,
		ontologyID, eventType, detailsHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check drift event dedup: %w", err)
	}
	return count > 0, nil
}

// ResolveDriftEvent transitions an OPEN drift event to RESOLVED or IGNORED.
func (s *RunStore) ResolveDriftEvent(ctx context.Context, id string, status DriftStatus) error {
	if status != DriftResolved && status != DriftIgnored {
		return fmt.Errorf("invalid drift event terminal status %q", status)
	}
	now := time.Now().UTC()
	res, err := s.pg.Pool().Exec(ctx, `UPDATE drift_events SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'OPEN'`, id, status, now)
	if err != nil {
		return fmt.Errorf("resolve drift event %s: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("drift event %s is not open", id)
	}
	return nil
}

// WriteRegressionRun inserts a new RegressionRun; callers fill in results and
// pass/fail counts once every question has executed, so this records the full
// terminal row rather than a PENDING placeholder.
func (s *RunStore) WriteRegressionRun(ctx context.Context, run *RegressionRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()
	_, err := s.pg.Pool().Exec(ctx, `INSERT INTO regression_runs
		(id, version_id, view_id, question_count, pass_count, fail_count, results, overall_pass, total_latency_ms, junit_ref, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.VersionID, run.ViewID, run.QuestionCount, run.PassCount, run.FailCount,
		run.Results, run.OverallPass, run.TotalLatency, run.JUnitRef, run.CreatedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("write regression run: %w", err)
	}
	return nil
}
