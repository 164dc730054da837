package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore holds the ephemeral coordination state the Async Runner and Drift
// Detector depend on but don't need durability for: the task queue, a
// per-workspace TTL lock, and the drift-event dedup index.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore connects to Redis/Valkey and verifies connectivity.
func NewCacheStore(ctx context.Context, addr, password string, db int) (*CacheStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &CacheStore{client: client}, nil
}

// Close releases the client's connections.
func (c *CacheStore) Close() error {
	return c.client.Close()
}

func queueKey(queue string) string { return "queue:" + queue }

// Enqueue pushes a task ID onto the tail of queue's FIFO list.
func (c *CacheStore) Enqueue(ctx context.Context, queue, taskID string) error {
	if err := c.client.RPush(ctx, queueKey(queue), taskID).Err(); err != nil {
		return fmt.Errorf("enqueue %s onto %s: %w", taskID, queue, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next task ID at the head of queue.
// Returns ("", nil) on timeout with no item available.
func (c *CacheStore) Dequeue(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	res, err := c.client.BLPop(ctx, timeout, queueKey(queue)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dequeue from %s: %w", queue, err)
	}
	// BLPOP returns [key, value].
	return res[1], nil
}

// AcquireWorkspaceLock tries once to take an exclusive, TTL-bounded lock
// scoped to a workspace (SETNX), returning false if it is already held;
// waiters are not queued. create_version does not take this lock — the row
// lock in versions.go's transaction is what serializes version inserts.
func (c *CacheStore) AcquireWorkspaceLock(ctx context.Context, workspaceID string, ttl time.Duration) (bool, error) {
	key := "lock:workspace:" + workspaceID
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire workspace lock %s: %w", workspaceID, err)
	}
	return ok, nil
}

// ReleaseWorkspaceLock releases a previously acquired workspace lock.
func (c *CacheStore) ReleaseWorkspaceLock(ctx context.Context, workspaceID string) error {
	key := "lock:workspace:" + workspaceID
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release workspace lock %s: %w", workspaceID, err)
	}
	return nil
}

func processingKey(queue string) string { return "processing:" + queue }

// MarkProcessing adds taskID to queue's processing set with a deadline score,
// the crash-recovery analog of the teacher's Queue.MarkProcessing: a reaper
// (Runner.ReapExpired) scans for members whose deadline has already passed and
// marks them FAILED.
func (c *CacheStore) MarkProcessing(ctx context.Context, queue, taskID string, deadline time.Time) error {
	if err := c.client.ZAdd(ctx, processingKey(queue), redis.Z{Score: float64(deadline.Unix()), Member: taskID}).Err(); err != nil {
		return fmt.Errorf("mark %s processing on %s: %w", taskID, queue, err)
	}
	return nil
}

// ClearProcessing removes taskID from queue's processing set once it reaches a
// terminal state, mirroring the teacher's Queue.CompleteJob/FailJob.
func (c *CacheStore) ClearProcessing(ctx context.Context, queue, taskID string) error {
	if err := c.client.ZRem(ctx, processingKey(queue), taskID).Err(); err != nil {
		return fmt.Errorf("clear %s from processing on %s: %w", taskID, queue, err)
	}
	return nil
}

// ExpiredProcessing returns task IDs in queue's processing set whose deadline
// has already passed, for a reaper to requeue or mark FAILED.
func (c *CacheStore) ExpiredProcessing(ctx context.Context, queue string) ([]string, error) {
	now := float64(time.Now().UTC().Unix())
	ids, err := c.client.ZRangeByScore(ctx, processingKey(queue), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired processing on %s: %w", queue, err)
	}
	return ids, nil
}

func driftDedupKey(ontologyID string, eventType DriftEventType, detailsHash string) string {
	return fmt.Sprintf("drift:dedup:%s:%s:%s", ontologyID, eventType, detailsHash)
}

// MarkDriftEventOpen records {ontology, event_type, details-hash} → open
// DriftEvent id in the dedup index, with a TTL so a stale entry eventually falls
// back to the authoritative Postgres check in RunStore.DriftEventExists.
func (c *CacheStore) MarkDriftEventOpen(ctx context.Context, ontologyID string, eventType DriftEventType, detailsHash, eventID string, ttl time.Duration) error {
	key := driftDedupKey(ontologyID, eventType, detailsHash)
	if err := c.client.Set(ctx, key, eventID, ttl).Err(); err != nil {
		return fmt.Errorf("mark drift event open: %w", err)
	}
	return nil
}

// LookupOpenDriftEvent returns the cached open DriftEvent id for this dedup key,
// or ("", false) if not cached — callers fall back to a Postgres query.
func (c *CacheStore) LookupOpenDriftEvent(ctx context.Context, ontologyID string, eventType DriftEventType, detailsHash string) (string, bool, error) {
	key := driftDedupKey(ontologyID, eventType, detailsHash)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup drift dedup: %w", err)
	}
	return val, true, nil
}

// ClearDriftDedup removes a dedup entry once its event resolves.
func (c *CacheStore) ClearDriftDedup(ctx context.Context, ontologyID string, eventType DriftEventType, detailsHash string) error {
	key := driftDedupKey(ontologyID, eventType, detailsHash)
	return c.client.Del(ctx, key).Err()
}

// SetJSON caches an arbitrary value as JSON with a TTL.
func (c *CacheStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON fetches and unmarshals a cached JSON value into dest.
func (c *CacheStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("get cache value for %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}
