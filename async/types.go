// Package async implements the C10 Async Runner: a worker pool that drains a
// Redis-backed task queue and executes long-running pipeline stages (compile,
// eval, deploy, drift check, regression) with Postgres-persisted status and
// cooperative cancellation, in the shape of the teacher's worker/pool.go split
// between a Queue, a JobProcessor, and a Pool that owns the dequeue loop.
package async

import (
	"encoding/json"
	"time"
)

// Kind names the pipeline stage a task runs, and doubles as its queue name —
// each kind gets its own Redis list and its own worker count.
type Kind string

const (
	KindCompile    Kind = "compile"
	KindEval       Kind = "eval"
	KindDeploy     Kind = "deploy"
	KindDrift      Kind = "drift"
	KindRegression Kind = "regression"
)

// State is a task's position in the PENDING -> RUNNING -> terminal lifecycle.
type State string

const (
	Pending  State = "PENDING"
	Running  State = "RUNNING"
	Success  State = "SUCCESS"
	Failed   State = "FAILED"
	Canceled State = "CANCELED"
)

// Task is the persisted record behind one submit() call. Args and Result are
// opaque JSON blobs so the runner stays decoupled from every stage's payload
// shape; only the registered JobProcessor for Task.Kind knows how to decode them.
type Task struct {
	ID              string          `json:"id"`
	Kind            Kind            `json:"kind"`
	WorkspaceID     string          `json:"workspace_id"`
	Args            json.RawMessage `json:"args"`
	State           State           `json:"state"`
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorCode       string          `json:"error_code,omitempty"`
	ErrorText       string          `json:"error_text,omitempty"`
	Retryable       bool            `json:"retryable,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether State is one a task never leaves.
func (s State) IsTerminal() bool {
	return s == Success || s == Failed || s == Canceled
}
