//go:build integration

package async

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ontoforge.dev/store"
)

func setupPostgresForAsync(t *testing.T) (string, func()) {
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

func setupRedisForAsync(t *testing.T) (string, func()) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port()), func() { _ = container.Terminate(ctx) }
}

const asyncSchemaSQL = `
CREATE TABLE async_tasks (
	id text PRIMARY KEY,
	kind text,
	workspace_id text,
	args jsonb,
	state text,
	result jsonb,
	error_code text,
	error_text text,
	retryable boolean DEFAULT false,
	cancel_requested boolean DEFAULT false,
	created_at timestamptz,
	started_at timestamptz,
	completed_at timestamptz
);
`

type echoProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (p *echoProcessor) Process(ctx context.Context, task *Task, checkCanceled CancelChecker) (json.RawMessage, error) {
	close(p.started)
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"echo":true}`), nil
}

func TestRunner_SubmitAndComplete(t *testing.T) {
	pgDSN, pgCleanup := setupPostgresForAsync(t)
	defer pgCleanup()
	redisAddr, redisCleanup := setupRedisForAsync(t)
	defer redisCleanup()

	ctx := context.Background()
	pg, err := store.NewPostgresPool(ctx, pgDSN)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Exec(ctx, asyncSchemaSQL))

	cache, err := store.NewCacheStore(ctx, redisAddr, "", 0)
	require.NoError(t, err)
	defer cache.Close()

	state := NewStateStore(pg)
	queue := NewQueue(cache)
	runner := NewRunner(queue, state, DefaultConfig())

	proc := &echoProcessor{started: make(chan struct{}), release: make(chan struct{})}
	runner.RegisterProcessor(KindCompile, proc)
	runner.Start(ctx)
	defer runner.Stop()

	taskID, err := runner.Submit(ctx, KindCompile, "ws-1", map[string]string{"target": "cortex"})
	require.NoError(t, err)

	select {
	case <-proc.started:
	case <-time.After(10 * time.Second):
		t.Fatal("processor never started")
	}
	close(proc.release)

	require.Eventually(t, func() bool {
		task, err := runner.Status(ctx, taskID)
		return err == nil && task.State == Success
	}, 10*time.Second, 100*time.Millisecond)

	task, err := runner.Status(ctx, taskID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":true}`, string(task.Result))
}

func TestRunner_CooperativeCancel(t *testing.T) {
	pgDSN, pgCleanup := setupPostgresForAsync(t)
	defer pgCleanup()
	redisAddr, redisCleanup := setupRedisForAsync(t)
	defer redisCleanup()

	ctx := context.Background()
	pg, err := store.NewPostgresPool(ctx, pgDSN)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Exec(ctx, asyncSchemaSQL))

	cache, err := store.NewCacheStore(ctx, redisAddr, "", 0)
	require.NoError(t, err)
	defer cache.Close()

	state := NewStateStore(pg)
	queue := NewQueue(cache)
	runner := NewRunner(queue, state, DefaultConfig())

	proc := &echoProcessor{started: make(chan struct{}), release: make(chan struct{})}
	runner.RegisterProcessor(KindDrift, proc)
	runner.Start(ctx)
	defer runner.Stop()

	taskID, err := runner.Submit(ctx, KindDrift, "ws-2", nil)
	require.NoError(t, err)

	select {
	case <-proc.started:
	case <-time.After(10 * time.Second):
		t.Fatal("processor never started")
	}

	require.NoError(t, runner.Cancel(ctx, taskID))
	close(proc.release)

	require.Eventually(t, func() bool {
		task, err := runner.Status(ctx, taskID)
		return err == nil && task.State == Canceled
	}, 10*time.Second, 100*time.Millisecond)
}
