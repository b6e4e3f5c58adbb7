package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/remiges-tech/logharbour/logharbour"
)

const (
	keyPending   = "update:pending"
	keyPriority  = "update:priority"
	keyCompleted = "update:completed"
	keyFailed    = "update:failed"
	keyStats     = "update:stats"

	inflightPrefix = "update:inflight:"
	workerPrefix   = "update:worker:"

	// PriorityHigh tasks drain before PriorityNormal ones.
	PriorityNormal = 0
	PriorityHigh   = 1

	// pushAll enqueues in groups of this size to bound command latency.
	pushChunkSize = 100
)

// ErrTaskNotFound is returned by TaskStatus for an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

func inflightKey(taskID string) string { return inflightPrefix + taskID }
func workerKey(workerID string) string { return workerPrefix + workerID }

// Queue is the shared producer and admin surface over one Redis client.
// Consumers are separate Worker values built with NewWorker.
type Queue struct {
	rdb         *redis.Client
	visibility  time.Duration
	heartbeat   time.Duration
	maxAttempts int
	logger      *logharbour.Logger
}

func New(rdb *redis.Client, visibility, heartbeat time.Duration, maxAttempts int, logger *logharbour.Logger) *Queue {
	return &Queue{
		rdb:         rdb,
		visibility:  visibility,
		heartbeat:   heartbeat,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Push enqueues one task and returns its assigned task id. priority
// selects the lane: PriorityHigh tasks are popped before any pending task.
func (q *Queue) Push(ctx context.Context, placeID int64, ops Ops, priority int) (string, error) {
	now := time.Now().UTC()
	task := Task{
		TaskID:     uuid.NewString(),
		PlaceID:    placeID,
		Menus:      ops.Menus,
		Images:     ops.Images,
		Reviews:    ops.Reviews,
		Priority:   priority,
		CreatedAt:  now,
		EnqueuedAt: now,
	}
	if err := q.enqueue(ctx, task); err != nil {
		return "", err
	}
	if err := q.rdb.HIncrBy(ctx, keyStats, "pushed", 1).Err(); err != nil {
		return "", fmt.Errorf("increment pushed counter: %w", err)
	}
	return task.TaskID, nil
}

func (q *Queue) enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	lane := keyPending
	if task.Priority == PriorityHigh {
		lane = keyPriority
	}
	if err := q.rdb.LPush(ctx, lane, payload).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", lane, err)
	}
	return nil
}

// PushAll enqueues every place id yielded by ids, in order, in chunks that
// bound per-command latency. Returns the number of tasks pushed.
func (q *Queue) PushAll(ctx context.Context, ids []int64, ops Ops) (int64, error) {
	var pushed int64
	for start := 0; start < len(ids); start += pushChunkSize {
		end := start + pushChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		pipe := q.rdb.Pipeline()
		now := time.Now().UTC()
		for _, id := range ids[start:end] {
			task := Task{
				TaskID:     uuid.NewString(),
				PlaceID:    id,
				Menus:      ops.Menus,
				Images:     ops.Images,
				Reviews:    ops.Reviews,
				Priority:   PriorityNormal,
				CreatedAt:  now,
				EnqueuedAt: now,
			}
			payload, err := json.Marshal(task)
			if err != nil {
				return pushed, fmt.Errorf("marshal task: %w", err)
			}
			pipe.LPush(ctx, keyPending, payload)
		}
		pipe.HIncrBy(ctx, keyStats, "pushed", int64(end-start))
		if _, err := pipe.Exec(ctx); err != nil {
			return pushed, fmt.Errorf("push batch: %w", err)
		}
		pushed += int64(end - start)
	}
	if q.logger != nil {
		q.logger.Info().LogActivity("Tasks enqueued", map[string]any{
			"count": pushed,
		})
	}
	return pushed, nil
}

// pop blocks briefly on the priority lane, then on the pending lane.
// Returns false when both lanes stayed empty for the poll window.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	for _, lane := range []string{keyPriority, keyPending} {
		vals, err := q.rdb.BRPop(ctx, timeout, lane).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return Task{}, false, fmt.Errorf("pop %s: %w", lane, err)
		}
		var task Task
		if err := json.Unmarshal([]byte(vals[1]), &task); err != nil {
			return Task{}, false, fmt.Errorf("decode task from %s: %w", lane, err)
		}
		return task, true, nil
	}
	return Task{}, false, nil
}

// markInflight records the claimed task under its visibility timeout. The
// hash carries the owning worker so the recovery pass can check its
// heartbeat.
func (q *Queue) markInflight(ctx context.Context, task Task, workerID string) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	key := inflightKey(task.TaskID)
	pipe := q.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"task":       string(payload),
		"worker_id":  workerID,
		"started_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, q.visibility)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark task %s in flight: %w", task.TaskID, err)
	}
	return nil
}

// ack completes a task: the in-flight record is dropped and the place joins
// the completed set. The set dedupes redeliveries by place id.
func (q *Queue) ack(ctx context.Context, task Task, workerID string) error {
	pipe := q.rdb.Pipeline()
	pipe.Del(ctx, inflightKey(task.TaskID))
	pipe.SAdd(ctx, keyCompleted, task.PlaceID)
	pipe.SRem(ctx, keyFailed, task.PlaceID)
	pipe.HIncrBy(ctx, keyStats, "completed", 1)
	pipe.HIncrBy(ctx, workerKey(workerID), "tasks_processed", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack task %s: %w", task.TaskID, err)
	}
	return nil
}

// fail either re-enqueues the place under a fresh task id or, when the
// attempt budget is spent, dead-letters it into the failed set.
func (q *Queue) fail(ctx context.Context, task Task, workerID string, cause error) error {
	if err := q.rdb.Del(ctx, inflightKey(task.TaskID)).Err(); err != nil {
		return fmt.Errorf("drop in-flight task %s: %w", task.TaskID, err)
	}
	if task.Attempts+1 < q.maxAttempts {
		retry := task
		retry.TaskID = uuid.NewString()
		retry.Attempts = task.Attempts + 1
		retry.Priority = PriorityNormal
		retry.EnqueuedAt = time.Now().UTC()
		if err := q.enqueue(ctx, retry); err != nil {
			return fmt.Errorf("re-enqueue place %d: %w", task.PlaceID, err)
		}
		if err := q.rdb.HIncrBy(ctx, keyStats, "retried", 1).Err(); err != nil {
			return err
		}
		if q.logger != nil {
			q.logger.Warn().LogActivity("Task retried", map[string]any{
				"place_id": task.PlaceID,
				"attempt":  retry.Attempts,
				"error":    cause.Error(),
			})
		}
		return nil
	}

	pipe := q.rdb.Pipeline()
	pipe.SAdd(ctx, keyFailed, task.PlaceID)
	pipe.HIncrBy(ctx, keyStats, "failed", 1)
	pipe.HIncrBy(ctx, workerKey(workerID), "tasks_failed", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter place %d: %w", task.PlaceID, err)
	}
	if q.logger != nil {
		q.logger.Error(cause).LogActivity("Task dead-lettered", map[string]any{
			"place_id": task.PlaceID,
			"attempts": task.Attempts + 1,
		})
	}
	return nil
}

// RecoverExpired re-enqueues in-flight tasks whose owning worker has gone
// quiet. An in-flight entry is reclaimed when its remaining TTL has dropped
// under the grace window and the owner's registration is gone or its
// heartbeat is older than three intervals.
func (q *Queue) RecoverExpired(ctx context.Context, grace time.Duration) (int64, error) {
	var recovered int64
	var cursor uint64
	for {
		keys, next, err := q.rdb.Scan(ctx, cursor, inflightPrefix+"*", 100).Result()
		if err != nil {
			return recovered, fmt.Errorf("scan in-flight tasks: %w", err)
		}
		for _, key := range keys {
			ok, err := q.reclaimIfStale(ctx, key, grace)
			if err != nil {
				return recovered, err
			}
			if ok {
				recovered++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if recovered > 0 && q.logger != nil {
		q.logger.Warn().LogActivity("Recovered expired tasks", map[string]any{
			"count": recovered,
		})
	}
	return recovered, nil
}

func (q *Queue) reclaimIfStale(ctx context.Context, key string, grace time.Duration) (bool, error) {
	ttl, err := q.rdb.TTL(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl > grace {
		return false, nil
	}

	fields, err := q.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(fields) == 0 {
		// Expired between scan and read; Redis already dropped it and the
		// task is lost unless we still hold its payload, so nothing to do.
		return false, nil
	}

	if alive, err := q.workerAlive(ctx, fields["worker_id"]); err != nil {
		return false, err
	} else if alive {
		return false, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(fields["task"]), &task); err != nil {
		return false, fmt.Errorf("decode in-flight task %s: %w", key, err)
	}
	retry := task
	retry.TaskID = uuid.NewString()
	retry.Attempts = task.Attempts + 1
	retry.Priority = PriorityNormal
	retry.EnqueuedAt = time.Now().UTC()
	if err := q.enqueue(ctx, retry); err != nil {
		return false, err
	}
	if err := q.rdb.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("drop reclaimed task %s: %w", key, err)
	}
	return true, nil
}

func (q *Queue) workerAlive(ctx context.Context, workerID string) (bool, error) {
	if workerID == "" {
		return false, nil
	}
	hb, err := q.rdb.HGet(ctx, workerKey(workerID), "last_heartbeat").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read worker %s heartbeat: %w", workerID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, hb)
	if err != nil {
		return false, nil
	}
	return time.Since(t) < 3*q.heartbeat, nil
}

// Stats is a point-in-time snapshot of queue depth and cumulative counters.
type Stats struct {
	Pending         int64 `json:"pending"`
	Priority        int64 `json:"priority"`
	InFlight        int64 `json:"in_flight"`
	CompletedPlaces int64 `json:"completed_places"`
	FailedPlaces    int64 `json:"failed_places"`
	Pushed          int64 `json:"pushed"`
	Completed       int64 `json:"completed"`
	Failed          int64 `json:"failed"`
	Retried         int64 `json:"retried"`
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Pending, err = q.rdb.LLen(ctx, keyPending).Result(); err != nil {
		return s, fmt.Errorf("pending depth: %w", err)
	}
	if s.Priority, err = q.rdb.LLen(ctx, keyPriority).Result(); err != nil {
		return s, fmt.Errorf("priority depth: %w", err)
	}
	if s.CompletedPlaces, err = q.rdb.SCard(ctx, keyCompleted).Result(); err != nil {
		return s, fmt.Errorf("completed set size: %w", err)
	}
	if s.FailedPlaces, err = q.rdb.SCard(ctx, keyFailed).Result(); err != nil {
		return s, fmt.Errorf("failed set size: %w", err)
	}
	keys, err := q.scanKeys(ctx, inflightPrefix+"*")
	if err != nil {
		return s, err
	}
	s.InFlight = int64(len(keys))

	counters, err := q.rdb.HGetAll(ctx, keyStats).Result()
	if err != nil {
		return s, fmt.Errorf("read stats hash: %w", err)
	}
	s.Pushed = parseCounter(counters["pushed"])
	s.Completed = parseCounter(counters["completed"])
	s.Failed = parseCounter(counters["failed"])
	s.Retried = parseCounter(counters["retried"])
	return s, nil
}

// WorkerInfo is the decoded registration hash of one live worker.
type WorkerInfo struct {
	WorkerID       string    `json:"worker_id"`
	Status         string    `json:"status"`
	CurrentTaskID  string    `json:"current_task_id,omitempty"`
	TasksProcessed int64     `json:"tasks_processed"`
	TasksFailed    int64     `json:"tasks_failed"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
}

// Workers lists every worker whose registration has not expired.
func (q *Queue) Workers(ctx context.Context) ([]WorkerInfo, error) {
	keys, err := q.scanKeys(ctx, workerPrefix+"*")
	if err != nil {
		return nil, err
	}
	infos := make([]WorkerInfo, 0, len(keys))
	for _, key := range keys {
		fields, err := q.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		info := WorkerInfo{
			WorkerID:       strings.TrimPrefix(key, workerPrefix),
			Status:         fields["status"],
			CurrentTaskID:  fields["current_task_id"],
			TasksProcessed: parseCounter(fields["tasks_processed"]),
			TasksFailed:    parseCounter(fields["tasks_failed"]),
		}
		if t, perr := time.Parse(time.RFC3339Nano, fields["last_heartbeat"]); perr == nil {
			info.LastHeartbeat = t
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// FailedPlaces returns the dead-lettered place ids.
func (q *Queue) FailedPlaces(ctx context.Context) ([]int64, error) {
	members, err := q.rdb.SMembers(ctx, keyFailed).Result()
	if err != nil {
		return nil, fmt.Errorf("read failed set: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, perr := strconv.ParseInt(m, 10, 64)
		if perr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TaskStatus reports on an in-flight task. Tasks waiting in a lane or
// already finished are not individually addressable; only the in-flight
// window keeps per-task state.
func (q *Queue) TaskStatus(ctx context.Context, taskID string) (Task, string, error) {
	fields, err := q.rdb.HGetAll(ctx, inflightKey(taskID)).Result()
	if err != nil {
		return Task{}, "", fmt.Errorf("read task %s: %w", taskID, err)
	}
	if len(fields) == 0 {
		return Task{}, "", ErrTaskNotFound
	}
	var task Task
	if err := json.Unmarshal([]byte(fields["task"]), &task); err != nil {
		return Task{}, "", fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return task, fields["worker_id"], nil
}

// RetryFailed moves every dead-lettered place back onto the pending lane
// with a reset attempt counter.
func (q *Queue) RetryFailed(ctx context.Context, ops Ops) (int64, error) {
	ids, err := q.FailedPlaces(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pushed, err := q.PushAll(ctx, ids, ops)
	if err != nil {
		return pushed, err
	}
	if err := q.rdb.Del(ctx, keyFailed).Err(); err != nil {
		return pushed, fmt.Errorf("clear failed set: %w", err)
	}
	return pushed, nil
}

// Clear empties both lanes and every in-flight record. Completed and
// failed sets survive; use ClearCompleted / ClearFailed for those.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.rdb.Del(ctx, keyPending, keyPriority).Err(); err != nil {
		return fmt.Errorf("clear lanes: %w", err)
	}
	keys, err := q.scanKeys(ctx, inflightPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := q.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear in-flight tasks: %w", err)
		}
	}
	return nil
}

func (q *Queue) ClearCompleted(ctx context.Context) error {
	return q.rdb.Del(ctx, keyCompleted).Err()
}

func (q *Queue) ClearFailed(ctx context.Context) error {
	return q.rdb.Del(ctx, keyFailed).Err()
}

func (q *Queue) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		page, next, err := q.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func parseCounter(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
