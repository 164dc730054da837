package async

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ontoforge.dev/ontoerrors"
)

// CancelChecker is handed to every JobProcessor so it can poll the cooperative
// cancel flag at stage boundaries — never during an in-flight warehouse or LLM
// call. The processors in api/processors.go check it once before their stage
// work starts, and compile and drift check it once more between their two
// phases; there is no check between individual gates, between environments in
// a bundle, or between regression questions. Returns a CANCELED
// *ontoerrors.Error once the flag is set, nil otherwise.
type CancelChecker func(ctx context.Context) error

// JobProcessor executes one task kind. Registered against a Runner by Kind;
// the runner owns dequeue, state transitions, and timeouts — the processor
// owns only the stage's actual work.
type JobProcessor interface {
	Process(ctx context.Context, task *Task, checkCanceled CancelChecker) (json.RawMessage, error)
}

// Config sizes the worker pool, one entry per queue name, mirroring the
// teacher's per-queue Config.Queues map in worker/pool.go.
type Config struct {
	QueueWorkers   map[Kind]int
	TaskTimeout    time.Duration
	DequeueTimeout time.Duration
}

// DefaultConfig returns conservative per-queue worker counts: compile and
// eval get the most parallelism since they're the most frequently triggered,
// deploy gets exactly one since it's the stage we least want racing itself.
func DefaultConfig() Config {
	return Config{
		QueueWorkers: map[Kind]int{
			KindCompile:    4,
			KindEval:       4,
			KindDeploy:     1,
			KindDrift:      2,
			KindRegression: 2,
		},
		TaskTimeout:    10 * time.Minute,
		DequeueTimeout: 5 * time.Second,
	}
}

// Runner is the C10 Async Runner: submit/status/cancel over a worker pool that
// drains Queue and persists every transition through StateStore. Tasks of one
// workspace never run concurrently in this process: each holds an in-process
// mutex keyed by workspace ID while it runs. The mutex does not queue waiters
// in submission order, so same-workspace tasks are serialized but their start
// order is not guaranteed to be FIFO; different workspaces proceed in
// parallel, bounded only by each queue's configured worker count.
type Runner struct {
	queue      *Queue
	state      *StateStore
	cfg        Config
	processors map[Kind]JobProcessor
	events     *EventPublisher // optional

	wsLocks sync.Map // workspaceID -> *sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// SetEventPublisher wires an optional lifecycle-event publisher. When unset,
// state transitions are only ever observable via Status.
func (r *Runner) SetEventPublisher(p *EventPublisher) {
	r.events = p
}

func (r *Runner) publish(task *Task, state State) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(LifecycleEvent{TaskID: task.ID, Kind: task.Kind, WorkspaceID: task.WorkspaceID, State: state})
}

// NewRunner wires a Queue and StateStore into a Runner. Register processors
// with RegisterProcessor before calling Start.
func NewRunner(queue *Queue, state *StateStore, cfg Config) *Runner {
	return &Runner{
		queue:      queue,
		state:      state,
		cfg:        cfg,
		processors: make(map[Kind]JobProcessor),
		stopCh:     make(chan struct{}),
	}
}

// RegisterProcessor binds a JobProcessor to the kind of task it executes.
func (r *Runner) RegisterProcessor(kind Kind, p JobProcessor) {
	r.processors[kind] = p
}

// Submit creates a PENDING task and enqueues it for pickup. Returns the task ID.
func (r *Runner) Submit(ctx context.Context, kind Kind, workspaceID string, args any) (string, error) {
	if _, ok := r.processors[kind]; !ok {
		return "", fmt.Errorf("no processor registered for kind %s", kind)
	}
	task, err := r.state.CreateTask(ctx, kind, workspaceID, args)
	if err != nil {
		return "", err
	}
	if err := r.queue.Push(ctx, kind, task.ID); err != nil {
		return "", fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return task.ID, nil
}

// Status returns a task's current state, result, or error.
func (r *Runner) Status(ctx context.Context, taskID string) (*Task, error) {
	return r.state.GetTask(ctx, taskID)
}

// Cancel requests cooperative cancellation of a task. It never interrupts an
// in-flight warehouse call — the task terminates CANCELED at its next checkpoint.
func (r *Runner) Cancel(ctx context.Context, taskID string) error {
	return r.state.RequestCancel(ctx, taskID)
}

// Start launches the configured number of workers per queue, each running its
// own dequeue loop until Stop is called.
func (r *Runner) Start(ctx context.Context) {
	for kind, n := range r.cfg.QueueWorkers {
		if _, ok := r.processors[kind]; !ok {
			continue
		}
		for i := 0; i < n; i++ {
			r.wg.Add(1)
			go r.runWorker(ctx, kind)
		}
	}
}

// Stop signals every worker to exit after its current dequeue attempt and
// blocks until they've all returned.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runner) runWorker(ctx context.Context, kind Kind) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		r.processNext(ctx, kind)
	}
}

func (r *Runner) processNext(ctx context.Context, kind Kind) {
	job, err := r.queue.Pop(ctx, kind, r.cfg.DequeueTimeout)
	if err != nil || job == nil {
		return
	}

	task, err := r.state.GetTask(ctx, job.TaskID)
	if err != nil {
		return
	}
	if task.State.IsTerminal() {
		return
	}

	lock := r.workspaceLock(task.WorkspaceID)
	lock.Lock()
	defer lock.Unlock()

	cancelled, err := r.state.IsCancelRequested(ctx, task.ID)
	if err == nil && cancelled {
		_ = r.state.MarkCanceled(ctx, task.ID)
		return
	}

	if err := r.state.MarkRunning(ctx, task.ID); err != nil {
		// Lost the race (already picked up, or canceled between dequeue and here).
		return
	}
	r.publish(task, Running)

	deadline := time.Now().Add(r.cfg.TaskTimeout)
	_ = r.queue.MarkProcessing(ctx, kind, task.ID, deadline)
	defer func() { _ = r.queue.ClearProcessing(ctx, kind, task.ID) }()

	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.TaskTimeout)
	defer cancel()

	checkCanceled := func(checkCtx context.Context) error {
		ok, err := r.state.IsCancelRequested(checkCtx, task.ID)
		if err != nil || !ok {
			return nil
		}
		return ontoerrors.CanceledErr(task.ID)
	}

	result, procErr := r.processors[kind].Process(stageCtx, task, checkCanceled)
	r.finish(ctx, task, result, procErr)
}

func (r *Runner) finish(ctx context.Context, task *Task, result json.RawMessage, procErr error) {
	if procErr == nil {
		if err := r.state.MarkSuccess(ctx, task.ID, result); err != nil {
			return
		}
		r.publish(task, Success)
		return
	}

	if tagged, ok := procErr.(*ontoerrors.Error); ok {
		if tagged.Code == ontoerrors.Canceled {
			_ = r.state.MarkCanceled(ctx, task.ID)
			r.publish(task, Canceled)
			return
		}
		_ = r.state.MarkFailed(ctx, task.ID, string(tagged.Code), tagged.Error(), tagged.Retryable)
		r.publish(task, Failed)
		return
	}

	_ = r.state.MarkFailed(ctx, task.ID, "", procErr.Error(), false)
	r.publish(task, Failed)
}

func (r *Runner) workspaceLock(workspaceID string) *sync.Mutex {
	v, _ := r.wsLocks.LoadOrStore(workspaceID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ReapExpired scans every registered queue's processing set for tasks whose
// deadline has passed without reaching a terminal state — meaning the worker
// that picked them up crashed — and marks them FAILED with a retryable error
// so a caller can resubmit. The runner never auto-retries on its own; this
// only ensures a crashed worker doesn't leave a task stuck RUNNING forever.
func (r *Runner) ReapExpired(ctx context.Context) {
	for kind := range r.processors {
		ids, err := r.queue.ExpiredProcessing(ctx, kind)
		if err != nil {
			continue
		}
		for _, id := range ids {
			task, err := r.state.GetTask(ctx, id)
			if err != nil || task.State.IsTerminal() {
				_ = r.queue.ClearProcessing(ctx, kind, id)
				continue
			}
			_ = r.state.MarkFailed(ctx, id, string(ontoerrors.Timeout), "worker died before completing task", true)
			r.publish(task, Failed)
			_ = r.queue.ClearProcessing(ctx, kind, id)
		}
	}
}
