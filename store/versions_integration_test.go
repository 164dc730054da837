//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ontoforge",
			"POSTGRES_PASSWORD": "ontoforge",
			"POSTGRES_DB":       "ontoforge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://ontoforge:ontoforge@%s:%s/ontoforge?sslmode=disable", host, port.Port())
	return dsn, func() { _ = container.Terminate(ctx) }
}

func setupCouchDBContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "couchdb:3.3",
		ExposedPorts: []string{"5984/tcp"},
		Env:          map[string]string{"COUCHDB_USER": "admin", "COUCHDB_PASSWORD": "testpass"},
		WaitingFor:   wait.ForHTTP("/_up").WithPort("5984/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5984")
	require.NoError(t, err)

	url := fmt.Sprintf("http://%s:%s", host, port.Port())
	return url, func() { _ = container.Terminate(ctx) }
}

const schemaSQL = `
CREATE TABLE workspaces (id text PRIMARY KEY, name text, created_at timestamptz);
CREATE TABLE ontologies (id text PRIMARY KEY, workspace_id text, name text, is_active boolean DEFAULT true, created_at timestamptz);
CREATE TABLE ontology_versions (
	id text PRIMARY KEY, ontology_id text, version_number int, content_hash text,
	author text, notes text, created_at timestamptz
);
`

func retailPayload() []byte {
	return []byte(`{
		"version": "1.0",
		"name": "retail",
		"objects": [{"name": "Customer", "identifiers": ["id"], "properties": [{"name": "id", "type": "string"}]}]
	}`)
}

func TestCreateVersion_MonotoneNumbering(t *testing.T) {
	pgDSN, pgCleanup := setupPostgresContainer(t)
	defer pgCleanup()
	couchURL, couchCleanup := setupCouchDBContainer(t)
	defer couchCleanup()

	ctx := context.Background()
	pg, err := NewPostgresPool(ctx, pgDSN)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Exec(ctx, schemaSQL))

	docs, err := NewDocumentStore(ctx, couchURL, "admin", "testpass")
	require.NoError(t, err)

	require.NoError(t, pg.Exec(ctx, `INSERT INTO ontologies (id, workspace_id, name) VALUES ('ont-1', 'ws-1', 'retail')`))

	vs := NewVersionStore(pg, docs)

	v1, err := vs.CreateVersion(ctx, "ont-1", retailPayload(), "alice", "first cut")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	secondPayload := []byte(`{
		"version": "1.0",
		"name": "retail",
		"objects": [
			{"name": "Customer", "identifiers": ["id"], "properties": [{"name": "id", "type": "string"}]},
			{"name": "Order", "identifiers": ["id"], "properties": [{"name": "id", "type": "string"}]}
		]
	}`)
	v2, err := vs.CreateVersion(ctx, "ont-1", secondPayload, "alice", "add Order object")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	payload, err := vs.GetPayload(ctx, v1)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Customer")
}

func TestCreateVersion_DuplicateContentRejected(t *testing.T) {
	pgDSN, pgCleanup := setupPostgresContainer(t)
	defer pgCleanup()
	couchURL, couchCleanup := setupCouchDBContainer(t)
	defer couchCleanup()

	ctx := context.Background()
	pg, err := NewPostgresPool(ctx, pgDSN)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Exec(ctx, schemaSQL))

	docs, err := NewDocumentStore(ctx, couchURL, "admin", "testpass")
	require.NoError(t, err)

	require.NoError(t, pg.Exec(ctx, `INSERT INTO ontologies (id, workspace_id, name) VALUES ('ont-1', 'ws-1', 'retail')`))

	vs := NewVersionStore(pg, docs)
	_, err = vs.CreateVersion(ctx, "ont-1", retailPayload(), "alice", "first cut")
	require.NoError(t, err)

	_, err = vs.CreateVersion(ctx, "ont-1", retailPayload(), "bob", "same content, different author")
	require.Error(t, err)
}
