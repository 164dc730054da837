package async

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ontoforge.dev/store"
)

// Job is the small envelope pushed onto a Redis list — just enough to look the
// task back up. Mirrors the shape of the teacher's queue/redis.Job, trimmed to
// the fields this runner actually needs since task state itself lives in
// Postgres rather than in the envelope.
type Job struct {
	TaskID     string    `json:"taskID"`
	Queue      string    `json:"queue"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	RetryCount int       `json:"retryCount"`
}

// Queue is the Redis-backed FIFO the runner dequeues from, one list per Kind.
type Queue struct {
	cache *store.CacheStore
}

// NewQueue wraps a CacheStore as a task Queue.
func NewQueue(cache *store.CacheStore) *Queue {
	return &Queue{cache: cache}
}

// Push enqueues a task onto its kind's list.
func (q *Queue) Push(ctx context.Context, kind Kind, taskID string) error {
	job := Job{TaskID: taskID, Queue: string(kind), EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job envelope: %w", err)
	}
	return q.cache.Enqueue(ctx, string(kind), string(data))
}

// Pop blocks up to timeout for the next job on kind's list. Returns (nil, nil)
// if nothing arrived within timeout.
func (q *Queue) Pop(ctx context.Context, kind Kind, timeout time.Duration) (*Job, error) {
	raw, err := q.cache.Dequeue(ctx, string(kind), timeout)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job envelope: %w", err)
	}
	return &job, nil
}

// Requeue pushes a job back onto its list with an incremented retry count.
// Nothing in the runner calls it: Runner.ReapExpired marks expired tasks
// FAILED instead of requeueing them, and the runner makes no automatic
// retries of a task's business logic.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	job.RetryCount++
	job.EnqueuedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal requeued job: %w", err)
	}
	return q.cache.Enqueue(ctx, job.Queue, string(data))
}

// MarkProcessing records that taskID is being worked on kind's queue with a
// deadline, so a reaper can detect a worker that died mid-task.
func (q *Queue) MarkProcessing(ctx context.Context, kind Kind, taskID string, deadline time.Time) error {
	return q.cache.MarkProcessing(ctx, string(kind), taskID, deadline)
}

// ClearProcessing removes taskID from kind's processing set once it reaches a
// terminal state.
func (q *Queue) ClearProcessing(ctx context.Context, kind Kind, taskID string) error {
	return q.cache.ClearProcessing(ctx, string(kind), taskID)
}

// ExpiredProcessing returns task IDs on kind's queue whose deadline has passed
// without a terminal state being recorded — used by Runner.ReapExpired, which
// marks them FAILED with a retryable TIMEOUT rather than requeueing them.
func (q *Queue) ExpiredProcessing(ctx context.Context, kind Kind) ([]string, error) {
	return q.cache.ExpiredProcessing(ctx, string(kind))
}
