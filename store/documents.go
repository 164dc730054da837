package store

import (
	"context"
	"fmt"
	"strings"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// DocumentStore persists the large, content-addressed blobs that don't belong in
// relational rows: the raw ODL JSON payload and the compiled semantic_model.yaml
// text for each version, both keyed by content hash so a payload is written once
// and every version sharing that hash refers to the same document.
type DocumentStore struct {
	client *kivik.Client
	odl    *kivik.DB
	models *kivik.DB
}

const (
	odlDocsDB    = "ontoforge_odl_payloads"
	modelDocsDB  = "ontoforge_semantic_models"
)

// NewDocumentStore connects to CouchDB and ensures both document databases exist.
func NewDocumentStore(ctx context.Context, url, user, password string) (*DocumentStore, error) {
	connectionURL := url
	if user != "" && password != "" && !strings.Contains(connectionURL, "@") {
		if scheme, rest, ok := strings.Cut(connectionURL, "://"); ok {
			connectionURL = fmt.Sprintf("%s://%s:%s@%s", scheme, user, password, rest)
		}
	}

	client, err := kivik.New("couch", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("create couchdb client: %w", err)
	}

	odl, err := openOrCreateDB(ctx, client, odlDocsDB)
	if err != nil {
		return nil, err
	}
	models, err := openOrCreateDB(ctx, client, modelDocsDB)
	if err != nil {
		return nil, err
	}

	return &DocumentStore{client: client, odl: odl, models: models}, nil
}

func openOrCreateDB(ctx context.Context, client *kivik.Client, name string) (*kivik.DB, error) {
	db := client.DB(name)
	if err := db.Err(); err != nil {
		if err := client.CreateDB(ctx, name); err != nil {
			return nil, fmt.Errorf("create database %s: %w", name, err)
		}
		db = client.DB(name)
	}
	return db, nil
}

// PutODLPayload stores the canonical ODL payload under its content hash.
// Idempotent: re-putting the same hash with identical content is a no-op.
func (s *DocumentStore) PutODLPayload(ctx context.Context, hash string, payload []byte) error {
	return putContentAddressed(ctx, s.odl, hash, payload)
}

// GetODLPayload fetches the canonical ODL payload for a content hash.
func (s *DocumentStore) GetODLPayload(ctx context.Context, hash string) ([]byte, error) {
	return getContentAddressed(ctx, s.odl, hash)
}

// PutSemanticModel stores the compiled semantic_model.yaml text under its content hash.
func (s *DocumentStore) PutSemanticModel(ctx context.Context, hash string, yamlText []byte) error {
	return putContentAddressed(ctx, s.models, hash, yamlText)
}

// GetSemanticModel fetches the compiled semantic_model.yaml text for a content hash.
func (s *DocumentStore) GetSemanticModel(ctx context.Context, hash string) ([]byte, error) {
	return getContentAddressed(ctx, s.models, hash)
}

type contentDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	Content string `json:"content"`
}

func putContentAddressed(ctx context.Context, db *kivik.DB, hash string, content []byte) error {
	var existing contentDoc
	err := db.Get(ctx, hash).ScanDoc(&existing)
	if err == nil {
		// Same hash implies same content by construction; skip the rewrite.
		return nil
	}

	doc := contentDoc{ID: hash, Content: string(content)}
	if _, err := db.Put(ctx, hash, doc); err != nil {
		return fmt.Errorf("put document %s: %w", hash, err)
	}
	return nil
}

func getContentAddressed(ctx context.Context, db *kivik.DB, hash string) ([]byte, error) {
	var doc contentDoc
	if err := db.Get(ctx, hash).ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("get document %s: %w", hash, err)
	}
	return []byte(doc.Content), nil
}

// Close releases the CouchDB client's connections.
func (s *DocumentStore) Close() {
	_ = s.client.Close(context.Background())
}
