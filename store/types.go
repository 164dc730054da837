// Package store implements the C3 Version Store: the sole mutator of persisted
// records in the system. It splits storage across four backends by concern —
// Postgres for relational/transactional state, CouchDB for canonical document
// payloads, Neo4j for relationship-topology caching, and Redis for queues, locks
// and dedup — behind a single Store facade so every other component takes one
// handle and never talks to a driver directly.
package store

import "time"

// CompileStatus is the lifecycle of a CompileRun.
type CompileStatus string

const (
	CompilePending CompileStatus = "PENDING"
	CompileRunning CompileStatus = "RUNNING"
	CompileSuccess CompileStatus = "SUCCESS"
	CompileFailed  CompileStatus = "FAILED"
)

// DriftStatus is the lifecycle of a DriftEvent.
type DriftStatus string

const (
	DriftOpen     DriftStatus = "OPEN"
	DriftResolved DriftStatus = "RESOLVED"
	DriftIgnored  DriftStatus = "IGNORED"
)

// DriftEventType enumerates the kinds of divergence the drift detector reports.
type DriftEventType string

const (
	ColumnRenamed     DriftEventType = "COLUMN_RENAMED"
	ColumnAdded       DriftEventType = "COLUMN_ADDED"
	ColumnDropped     DriftEventType = "COLUMN_DROPPED"
	ColumnTypeChanged DriftEventType = "COLUMN_TYPE_CHANGED"
	TableMissing      DriftEventType = "TABLE_MISSING"
	YAMLDiverged      DriftEventType = "YAML_DIVERGED"
)

// Workspace is the tenant boundary. Created externally; the store never deletes one.
type Workspace struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Ontology is a named definition within a workspace. Soft-deletable via IsActive.
type Ontology struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	WorkspaceID string    `gorm:"index:idx_ontology_workspace_name,unique" json:"workspace_id"`
	Name        string    `gorm:"index:idx_ontology_workspace_name,unique" json:"name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Version is an immutable snapshot of an ontology's ODL payload. Once written,
// no field is ever mutated again. The canonical payload bytes themselves live in
// the document store, keyed by ContentHash — this row carries only metadata so
// Postgres stays small regardless of ontology size.
type Version struct {
	ID            string    `json:"id"`
	OntologyID    string    `json:"ontology_id"`
	VersionNumber int       `json:"version_number"`
	ContentHash   string    `json:"content_hash"`
	Author        string    `json:"author"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CompileRun is one attempt to compile a version to the target warehouse.
type CompileRun struct {
	ID          string        `json:"id"`
	VersionID   string        `json:"version_id"`
	Target      string        `json:"target"`
	Options     []byte        `json:"options,omitempty"`
	Status      CompileStatus `json:"status"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	ErrorText   string        `json:"error_text,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// EvalRun is one evaluation of a version against a threshold profile.
type EvalRun struct {
	ID        string    `json:"id"`
	VersionID string    `json:"version_id"`
	Profile   string    `json:"profile"`
	Metrics   []byte    `json:"metrics"`
	Passed    bool      `json:"passed"`
	CreatedAt time.Time `json:"created_at"`
}

// DriftEvent is an observed divergence between a declared ontology and the live
// warehouse schema.
type DriftEvent struct {
	ID         string         `json:"id"`
	OntologyID string         `json:"ontology_id"`
	EventType  DriftEventType `json:"event_type"`
	Details    []byte         `json:"details"`
	Status     DriftStatus    `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// ArtifactBundleRecord is the admin-table metadata row for a compiled bundle.
// The bundle's actual zip contents live in bundlestore (S3); this row indexes it.
type ArtifactBundleRecord struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	CompileRunID string    `gorm:"index" json:"compile_run_id"`
	ContentHash  string    `gorm:"index" json:"content_hash"`
	StorageKey   string    `json:"storage_key"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// LifecycleEvent is an append-only audit row for promotion/rollback actions
// taken against a version, independent of the stage-specific run tables.
type LifecycleEvent struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	VersionID string    `gorm:"index" json:"version_id"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DeployedView records that a version's compiled bundle has been successfully
// deployed to a live semantic view — the precondition the regression runner
// checks before running a question set against a view identifier. The drift
// detector's view probe does not read it; it compares against the YAML passed
// in the drift task.
type DeployedView struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	VersionID  string    `gorm:"index" json:"version_id"`
	OntologyID string    `gorm:"index" json:"ontology_id"`
	Database   string    `json:"database"`
	Schema     string    `json:"schema"`
	ViewName   string    `json:"view_name"`
	DeployedAt time.Time `json:"deployed_at"`
}

// ViewFQN returns the fully-qualified database.schema.view_name identifier.
func (d DeployedView) ViewFQN() string {
	return d.Database + "." + d.Schema + "." + d.ViewName
}

// RegressionRun is one Cortex regression pass against a deployed view.
type RegressionRun struct {
	ID            string     `json:"id"`
	VersionID     string     `json:"version_id"`
	ViewID        string     `json:"view_id"`
	QuestionCount int        `json:"question_count"`
	PassCount     int        `json:"pass_count"`
	FailCount     int        `json:"fail_count"`
	Results       []byte     `json:"results"`
	OverallPass   bool       `json:"overall_pass"`
	TotalLatency  int64      `json:"total_latency_ms"`
	JUnitRef      string     `json:"junit_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
