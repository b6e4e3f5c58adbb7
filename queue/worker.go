package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/remiges-tech/logharbour/logharbour"
)

// Worker statuses as published in the registration hash.
const (
	WorkerStatusIdle    = "idle"
	WorkerStatusActive  = "active"
	WorkerStatusStopped = "stopped"
)

// Handler executes one task. A nil return acks the task; an error either
// re-enqueues it or dead-letters it once attempts run out.
type Handler func(ctx context.Context, task Task) error

// Worker is one blocking-pop consumer. A process runs at most one; fan-out
// comes from running multiple processes against the same Redis. Stop is
// cooperative: the worker finishes the task in hand, including its ack or
// fail path, before exiting. Cancelling the context passed to Start is the
// forced path and interrupts the task.
type Worker struct {
	id      string
	queue   *Queue
	handler Handler
	logger  *logharbour.Logger

	pollTimeout time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewWorker(id string, q *Queue, handler Handler, logger *logharbour.Logger) *Worker {
	return &Worker{
		id:          id,
		queue:       q,
		handler:     handler,
		logger:      logger,
		pollTimeout: time.Second,
	}
}

func (w *Worker) ID() string { return w.id }

// Running reports whether the consumer loop is live.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start launches the consumer loop and its heartbeat goroutine. It returns
// immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("worker %s already running", w.id)
	}
	if err := w.register(ctx); err != nil {
		return err
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go w.heartbeatLoop(ctx)
	go w.consumeLoop(ctx)
	return nil
}

// Stop requests a cooperative stop and waits for the loop to drain.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stop := w.stop
	done := w.done
	w.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

func (w *Worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *Worker) consumeLoop(ctx context.Context) {
	defer close(w.done)
	defer w.deregister()

	for {
		if ctx.Err() != nil || w.stopped() {
			return
		}
		task, ok, err := w.queue.pop(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if w.logger != nil {
				w.logger.Error(err).LogActivity("Queue pop failed", map[string]any{
					"worker_id": w.id,
				})
			}
			time.Sleep(w.pollTimeout)
			continue
		}
		if !ok {
			w.setStatus(ctx, WorkerStatusIdle, "")
			continue
		}
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task Task) {
	if err := w.queue.markInflight(ctx, task, w.id); err != nil {
		if w.logger != nil {
			w.logger.Error(err).LogActivity("Failed to mark task in flight", map[string]any{
				"worker_id": w.id,
				"task_id":   task.TaskID,
			})
		}
		return
	}
	w.setStatus(ctx, WorkerStatusActive, task.TaskID)
	defer w.setStatus(ctx, WorkerStatusIdle, "")

	if err := w.handler(ctx, task); err != nil {
		if ferr := w.queue.fail(ctx, task, w.id, err); ferr != nil && w.logger != nil {
			w.logger.Error(ferr).LogActivity("Failure path errored", map[string]any{
				"worker_id": w.id,
				"task_id":   task.TaskID,
			})
		}
		return
	}
	if err := w.queue.ack(ctx, task, w.id); err != nil && w.logger != nil {
		w.logger.Error(err).LogActivity("Ack failed", map[string]any{
			"worker_id": w.id,
			"task_id":   task.TaskID,
		})
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.queue.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.touch(ctx)
		}
	}
}

func (w *Worker) register(ctx context.Context) error {
	key := workerKey(w.id)
	pipe := w.queue.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"status":          WorkerStatusIdle,
		"current_task_id": "",
		"tasks_processed": 0,
		"tasks_failed":    0,
		"last_heartbeat":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, 3*w.queue.heartbeat)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register worker %s: %w", w.id, err)
	}
	if w.logger != nil {
		w.logger.Info().LogActivity("Queue worker started", map[string]any{
			"worker_id": w.id,
		})
	}
	return nil
}

// deregister runs on a fresh context: the loop may be exiting because its
// context is already cancelled.
func (w *Worker) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	key := workerKey(w.id)
	pipe := w.queue.rdb.Pipeline()
	pipe.HSet(ctx, key, "status", WorkerStatusStopped, "current_task_id", "")
	pipe.Expire(ctx, key, 3*w.queue.heartbeat)
	if _, err := pipe.Exec(ctx); err != nil && w.logger != nil {
		w.logger.Error(err).LogActivity("Worker deregistration failed", map[string]any{
			"worker_id": w.id,
		})
	}
	if w.logger != nil {
		w.logger.Info().LogActivity("Queue worker stopped", map[string]any{
			"worker_id": w.id,
		})
	}
}

func (w *Worker) setStatus(ctx context.Context, status, taskID string) {
	key := workerKey(w.id)
	pipe := w.queue.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"status", status,
		"current_task_id", taskID,
		"last_heartbeat", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, 3*w.queue.heartbeat)
	if _, err := pipe.Exec(ctx); err != nil && w.logger != nil {
		w.logger.Debug0().LogActivity("Worker status update failed", map[string]any{
			"worker_id": w.id,
			"status":    status,
		})
	}
}

func (w *Worker) touch(ctx context.Context) {
	key := workerKey(w.id)
	pipe := w.queue.rdb.Pipeline()
	pipe.HSet(ctx, key, "last_heartbeat", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, 3*w.queue.heartbeat)
	_, _ = pipe.Exec(ctx)
}
