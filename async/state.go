package async

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ontoforge.dev/store"
)

// StateStore persists Task rows in Postgres so status() survives a runner
// restart — the teacher's db/state_store.go keeps action execution state in the
// database rather than memory for the same reason; a worker crash must never
// strand a caller polling status() forever. Expects an `async_tasks` table with
// columns matching Task's fields (see store's schema notes for compile_runs and
// friends — this table is provisioned the same way, outside AutoMigrate).
type StateStore struct {
	pg *store.PostgresPool
}

// NewStateStore wraps a PostgresPool as a StateStore.
func NewStateStore(pg *store.PostgresPool) *StateStore {
	return &StateStore{pg: pg}
}

// CreateTask inserts a new PENDING task and returns it.
func (s *StateStore) CreateTask(ctx context.Context, kind Kind, workspaceID string, args any) (*Task, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal task args: %w", err)
	}
	t := &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		WorkspaceID: workspaceID,
		Args:        argsJSON,
		State:       Pending,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.pg.Exec(ctx, `INSERT INTO async_tasks (id, kind, workspace_id, args, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, t.ID, t.Kind, t.WorkspaceID, t.Args, t.State, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask fetches a task's current state by ID.
func (s *StateStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.pg.QueryRow(ctx, `SELECT id, kind, workspace_id, args, state, result, error_code, error_text,
		retryable, cancel_requested, created_at, started_at, completed_at FROM async_tasks WHERE id = $1`, id)
	return scanTask(row)
}

// MarkRunning transitions a PENDING task to RUNNING and stamps started_at.
// Returns pgx.ErrNoRows if the task was not found in PENDING state — a worker
// that lost a race (e.g. a cancel arrived between dequeue and pickup) should
// treat that as "nothing to do" rather than an error.
func (s *StateStore) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	tag, err := s.execTag(ctx, `UPDATE async_tasks SET state = $2, started_at = $3
		WHERE id = $1 AND state = $4`, id, Running, now, Pending)
	if err != nil {
		return fmt.Errorf("mark task %s running: %w", id, err)
	}
	if tag == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkSuccess transitions a RUNNING task to SUCCESS with its result payload.
func (s *StateStore) MarkSuccess(ctx context.Context, id string, result json.RawMessage) error {
	now := time.Now().UTC()
	return s.pg.Exec(ctx, `UPDATE async_tasks SET state = $2, result = $3, completed_at = $4 WHERE id = $1`,
		id, Success, result, now)
}

// MarkFailed transitions a RUNNING task to FAILED, recording the stable error
// code and message surfaced by the stage.
func (s *StateStore) MarkFailed(ctx context.Context, id, code, text string, retryable bool) error {
	now := time.Now().UTC()
	return s.pg.Exec(ctx, `UPDATE async_tasks SET state = $2, error_code = $3, error_text = $4, retryable = $5, completed_at = $6
		WHERE id = $1`, id, Failed, code, text, retryable, now)
}

// MarkCanceled transitions a task to CANCELED — called once a worker observes
// CancelRequested at a checkpoint and unwinds.
func (s *StateStore) MarkCanceled(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.pg.Exec(ctx, `UPDATE async_tasks SET state = $2, completed_at = $3 WHERE id = $1`, id, Canceled, now)
}

// RequestCancel sets the cooperative cancel flag on a task that hasn't reached
// a terminal state yet. Workers observe this at checkpoints, never mid-call.
func (s *StateStore) RequestCancel(ctx context.Context, id string) error {
	return s.pg.Exec(ctx, `UPDATE async_tasks SET cancel_requested = true
		WHERE id = $1 AND state IN ('PENDING', 'RUNNING')`, id)
}

// IsCancelRequested reports whether a task's cancel flag has been set.
func (s *StateStore) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var flag bool
	err := s.pg.QueryRow(ctx, `SELECT cancel_requested FROM async_tasks WHERE id = $1`, id).Scan(&flag)
	if err != nil {
		return false, fmt.Errorf("check cancel flag for %s: %w", id, err)
	}
	return flag, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.Kind, &t.WorkspaceID, &t.Args, &t.State, &t.Result, &t.ErrorCode, &t.ErrorText,
		&t.Retryable, &t.CancelRequested, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

func (s *StateStore) execTag(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := s.pg.Pool().Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
