// Package warehouse implements the C7 Verifier/Deployer: a thin adapter over
// the cloud warehouse's semantic-view management surface, plus the deploy
// orchestration policy (export existing view for rollback capture, verify,
// deploy) and the retry rules around it.
package warehouse

import (
	"context"
	"time"
)

// VerifyResult is the outcome of a verify-only call.
type VerifyResult struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// DeployResult is the outcome of a create/replace call.
type DeployResult struct {
	OK     bool
	Errors []string
}

// ErrNotFound is returned by ExportExisting when the target view does not
// exist yet — a normal condition on first deploy, not a transport failure.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "semantic view not found" }

// CatalogColumn is one warehouse table column as reported by the catalog,
// coarsened to the type-equivalence classes the drift detector compares
// against: string, decimal, boolean, date.
type CatalogColumn struct {
	Name string
	Type string
}

// AskResult is the outcome of a natural-language question against a deployed
// view's analytics endpoint.
type AskResult struct {
	SQL       string
	Answer    string
	LatencyMS int64
}

// Adapter is the warehouse's semantic-view management surface. Implementations
// are stateless per call — connection pooling, if any, lives below the
// interface.
type Adapter interface {
	// Verify calls the verify-only path against database.schema without
	// creating anything.
	Verify(ctx context.Context, yaml, database, schema string) (*VerifyResult, error)

	// Deploy calls the create/replace path, creating or replacing the named
	// view. Never auto-retried by callers.
	Deploy(ctx context.Context, yaml, database, schema, viewName string) (*DeployResult, error)

	// ExportExisting returns the live YAML for a fully-qualified view, or
	// ErrNotFound if it doesn't exist.
	ExportExisting(ctx context.Context, viewFQN string) (string, error)

	// ListCatalog returns the column set (coarse-typed) for every table in
	// database.schema, keyed by table name then column name.
	ListCatalog(ctx context.Context, database, schema string) (map[string]map[string]CatalogColumn, error)

	// Ask invokes the warehouse's natural-language analytics endpoint against
	// a deployed view.
	Ask(ctx context.Context, viewFQN, question string) (*AskResult, error)
}

// RetryPolicy controls the exponential backoff applied to Verify,
// ExportExisting and ListCatalog on transport-level errors. Deploy is never retried by this
// package — a failed deploy surfaces immediately so it can be reported
// without risking a second partial write to the live view.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy is one call plus up to three retries, backing off 100ms,
// 400ms, then 1600ms before each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		Backoff:     []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond},
	}
}
