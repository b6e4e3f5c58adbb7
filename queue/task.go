// Package queue implements the Redis-backed update queue: a priority and a
// pending FIFO lane, in-flight hashes with a visibility timeout, heartbeated
// worker registrations and a supervisory recovery pass. Delivery is
// at-least-once; consumers are expected to write idempotently.
package queue

import "time"

// Ops selects which enrichment operations a task performs.
type Ops struct {
	Menus   bool `json:"menus"`
	Images  bool `json:"images"`
	Reviews bool `json:"reviews"`
}

// Task is one queued unit of enrichment work. A retry re-enqueues the same
// place under a fresh task id with attempts incremented; task ids are never
// reused.
type Task struct {
	TaskID     string    `json:"task_id"`
	PlaceID    int64     `json:"place_id"`
	Menus      bool      `json:"menus"`
	Images     bool      `json:"images"`
	Reviews    bool      `json:"reviews"`
	Priority   int       `json:"priority"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Ops returns the operation flags of the task.
func (t Task) Ops() Ops {
	return Ops{Menus: t.Menus, Images: t.Images, Reviews: t.Reviews}
}
