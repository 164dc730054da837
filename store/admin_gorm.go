package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AdminStore manages the low-volume, struct-shaped Workspace, Ontology,
// ArtifactBundleRecord, LifecycleEvent and DeployedView tables through GORM.
// Version, run and drift-event rows go through PostgresPool instead — they are
// the hot, high-volume paths where raw SQL pays for itself; these admin tables
// are neither, so GORM's mapping overhead is the better trade.
type AdminStore struct {
	db *gorm.DB
}

// NewAdminStore opens a GORM connection against the same Postgres instance as
// PostgresPool and migrates the admin tables.
func NewAdminStore(dsn string) (*AdminStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open admin store: %w", err)
	}
	if err := db.AutoMigrate(&Workspace{}, &Ontology{}, &ArtifactBundleRecord{}, &LifecycleEvent{}, &DeployedView{}); err != nil {
		return nil, fmt.Errorf("migrate admin store: %w", err)
	}
	return &AdminStore{db: db}, nil
}

// CreateWorkspace registers a workspace. Workspaces are created externally and
// never destroyed by the core — this exists so integration tests and CLI
// bootstrapping can seed one without reaching into the warehouse's own identity system.
func (s *AdminStore) CreateWorkspace(ctx context.Context, name string) (*Workspace, error) {
	ws := &Workspace{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(ws).Error; err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace fetches a workspace by ID.
func (s *AdminStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	if err := s.db.WithContext(ctx).First(&ws, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", id, err)
	}
	return &ws, nil
}

// CreateOntology registers a new ontology within a workspace. (workspace, name)
// is unique — a duplicate returns the driver's constraint violation wrapped
// with %w, so errors.As still reaches it.
func (s *AdminStore) CreateOntology(ctx context.Context, workspaceID, name string) (*Ontology, error) {
	o := &Ontology{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name, IsActive: true, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, fmt.Errorf("create ontology: %w", err)
	}
	return o, nil
}

// GetOntology fetches an ontology by ID, regardless of active status.
func (s *AdminStore) GetOntology(ctx context.Context, id string) (*Ontology, error) {
	var o Ontology
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get ontology %s: %w", id, err)
	}
	return &o, nil
}

// ListOntologies lists active ontologies in a workspace.
func (s *AdminStore) ListOntologies(ctx context.Context, workspaceID string) ([]Ontology, error) {
	var out []Ontology
	if err := s.db.WithContext(ctx).Where("workspace_id = ? AND is_active", workspaceID).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list ontologies: %w", err)
	}
	return out, nil
}

// Deactivate soft-deletes an ontology by flipping is_active; its versions and
// runs are left in place.
func (s *AdminStore) Deactivate(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Ontology{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate ontology %s: %w", id, res.Error)
	}
	return nil
}

// RecordArtifactBundle indexes a compiled bundle's storage location.
func (s *AdminStore) RecordArtifactBundle(ctx context.Context, compileRunID, contentHash, storageKey string, sizeBytes int64) (*ArtifactBundleRecord, error) {
	rec := &ArtifactBundleRecord{
		ID: uuid.NewString(), CompileRunID: compileRunID, ContentHash: contentHash,
		StorageKey: storageKey, SizeBytes: sizeBytes, CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("record artifact bundle: %w", err)
	}
	return rec, nil
}

// GetArtifactBundleByHash looks up a bundle record by its content hash.
func (s *AdminStore) GetArtifactBundleByHash(ctx context.Context, contentHash string) (*ArtifactBundleRecord, error) {
	var rec ArtifactBundleRecord
	if err := s.db.WithContext(ctx).First(&rec, "content_hash = ?", contentHash).Error; err != nil {
		return nil, fmt.Errorf("get artifact bundle %s: %w", contentHash, err)
	}
	return &rec, nil
}

// AppendLifecycleEvent records an audit entry against a version.
func (s *AdminStore) AppendLifecycleEvent(ctx context.Context, versionID, kind, actor, detail string) error {
	ev := &LifecycleEvent{ID: uuid.NewString(), VersionID: versionID, Kind: kind, Actor: actor, Detail: detail, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("append lifecycle event: %w", err)
	}
	return nil
}

// ListLifecycleEvents returns the audit trail for a version, oldest first.
func (s *AdminStore) ListLifecycleEvents(ctx context.Context, versionID string) ([]LifecycleEvent, error) {
	var out []LifecycleEvent
	if err := s.db.WithContext(ctx).Where("version_id = ?", versionID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list lifecycle events: %w", err)
	}
	return out, nil
}

// RecordDeployedView marks a version's view as live. A version redeployed to
// the same database/schema/view_name replaces the prior row for that triple
// so GetDeployedViewByFQN always returns the most recent deploy.
func (s *AdminStore) RecordDeployedView(ctx context.Context, versionID, ontologyID, database, schema, viewName string) (*DeployedView, error) {
	dv := &DeployedView{
		ID: uuid.NewString(), VersionID: versionID, OntologyID: ontologyID,
		Database: database, Schema: schema, ViewName: viewName, DeployedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("database = ? AND schema = ? AND view_name = ?", database, schema, viewName).Delete(&DeployedView{}).Error; err != nil {
			return err
		}
		return tx.Create(dv).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record deployed view: %w", err)
	}
	return dv, nil
}

// GetDeployedViewByFQN looks up the live deploy record for a fully-qualified
// view name. Returns gorm.ErrRecordNotFound (unwrapped via errors.Is) if the
// view has never been deployed — the signal regression.Run uses to refuse
// running against a view with no DeployedView record.
func (s *AdminStore) GetDeployedViewByFQN(ctx context.Context, database, schema, viewName string) (*DeployedView, error) {
	var dv DeployedView
	err := s.db.WithContext(ctx).Where("database = ? AND schema = ? AND view_name = ?", database, schema, viewName).First(&dv).Error
	if err != nil {
		return nil, fmt.Errorf("get deployed view %s.%s.%s: %w", database, schema, viewName, err)
	}
	return &dv, nil
}

// Close releases the underlying connection pool.
func (s *AdminStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
