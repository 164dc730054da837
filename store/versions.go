package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ontoforge.dev/ontoerrors"
	"ontoforge.dev/ontology"
)

// VersionStore is the C3 version-control surface: validate, normalize, hash,
// allocate a monotone version number, and insert — atomically, per ontology.
// Metadata lives in Postgres; the canonical payload bytes live in the document
// store, keyed by content hash.
type VersionStore struct {
	pg   *PostgresPool
	docs *DocumentStore
}

// NewVersionStore wraps a PostgresPool and DocumentStore as a VersionStore.
func NewVersionStore(pg *PostgresPool, docs *DocumentStore) *VersionStore {
	return &VersionStore{pg: pg, docs: docs}
}

// CreateVersion validates payload through the Validator, normalizes it, computes
// its content hash, and inserts a metadata row under the next monotone
// version_number for ontologyID. The ontology row is locked for the duration of
// the transaction so concurrent writers serialize on numbering; uniqueness of
// version_number is guaranteed even though gaps may appear after a failed
// insert. The canonical payload itself is written to the document store before
// the metadata row commits, so a committed version's payload is always present.
//
// If a version with the same content hash already exists for this ontology, the
// insert is rejected with DUPLICATE_CONTENT — a version is only meaningful if its
// content actually differs from what's already recorded.
func (s *VersionStore) CreateVersion(ctx context.Context, ontologyID string, payload []byte, author, notes string) (*Version, error) {
	doc, err := ontology.ParseDocument(payload)
	if err != nil {
		return nil, err
	}
	ir, err := ontology.BuildIR(doc)
	if err != nil {
		return nil, err
	}
	normalized := ontology.Normalize(ir)
	canonical, err := ontology.Serialize(normalized)
	if err != nil {
		return nil, fmt.Errorf("serialize normalized ir: %w", err)
	}
	hash := ontology.ContentHash(canonical)

	tx, err := s.pg.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create_version tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// SELECT ... FOR UPDATE on a sentinel row serializes concurrent writers for
	// this ontology without locking the versions table itself.
	if _, err := tx.Exec(ctx, `SELECT id FROM ontologies WHERE id = $1 FOR UPDATE`, ontologyID); err != nil {
		return nil, fmt.Errorf("lock ontology %s: %w", ontologyID, err)
	}

	var existingCount int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM ontology_versions WHERE ontology_id = $1 AND content_hash = $2`,
		ontologyID, hash).Scan(&existingCount); err != nil {
		return nil, fmt.Errorf("check duplicate content: %w", err)
	}
	if existingCount > 0 {
		return nil, ontoerrors.DuplicateContentErr(ontologyID, hash)
	}

	var nextVersion int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version_number), 0) + 1 FROM ontology_versions WHERE ontology_id = $1`,
		ontologyID).Scan(&nextVersion); err != nil {
		return nil, fmt.Errorf("allocate version number: %w", err)
	}

	if err := s.docs.PutODLPayload(ctx, hash, canonical); err != nil {
		return nil, fmt.Errorf("store canonical payload: %w", err)
	}

	v := &Version{
		ID:            uuid.NewString(),
		OntologyID:    ontologyID,
		VersionNumber: nextVersion,
		ContentHash:   hash,
		Author:        author,
		Notes:         notes,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = tx.Exec(ctx, `INSERT INTO ontology_versions (id, ontology_id, version_number, content_hash, author, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.OntologyID, v.VersionNumber, v.ContentHash, v.Author, v.Notes, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create_version tx: %w", err)
	}
	return v, nil
}

// GetVersion fetches a single version's metadata by ID. Use GetPayload to fetch
// its canonical ODL bytes from the document store.
func (s *VersionStore) GetVersion(ctx context.Context, id string) (*Version, error) {
	row := s.pg.QueryRow(ctx, `SELECT id, ontology_id, version_number, content_hash, author, notes, created_at
		FROM ontology_versions WHERE id = $1`, id)
	return scanVersion(row)
}

// GetPayload fetches a version's canonical ODL payload from the document store.
func (s *VersionStore) GetPayload(ctx context.Context, v *Version) ([]byte, error) {
	return s.docs.GetODLPayload(ctx, v.ContentHash)
}

// ListVersions lists every version of an ontology, most recently created first.
func (s *VersionStore) ListVersions(ctx context.Context, ontologyID string) ([]Version, error) {
	rows, err := s.pg.Query(ctx, `SELECT id, ontology_id, version_number, content_hash, author, notes, created_at
		FROM ontology_versions WHERE ontology_id = $1 ORDER BY created_at DESC`, ontologyID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// GetLatest returns the most recently created version of an ontology.
func (s *VersionStore) GetLatest(ctx context.Context, ontologyID string) (*Version, error) {
	row := s.pg.QueryRow(ctx, `SELECT id, ontology_id, version_number, content_hash, author, notes, created_at
		FROM ontology_versions WHERE ontology_id = $1 ORDER BY version_number DESC LIMIT 1`, ontologyID)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ontology %s has no versions", ontologyID)
	}
	return v, err
}

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.OntologyID, &v.VersionNumber, &v.ContentHash, &v.Author, &v.Notes, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func scanVersionRows(rows pgx.Rows) (*Version, error) {
	var v Version
	if err := rows.Scan(&v.ID, &v.OntologyID, &v.VersionNumber, &v.ContentHash, &v.Author, &v.Notes, &v.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan version row: %w", err)
	}
	return &v, nil
}
