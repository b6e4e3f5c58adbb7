// Package jobs is the named-job registry and lifecycle manager. A job is a
// StepRunner value; the controller owns one slot per (job, worker) pair,
// serializes starts with a compare-and-set on the slot state and exposes
// cooperative stop and status snapshots to the control surface.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// Slot statuses.
type SlotStatus string

const (
	StatusNotStarted SlotStatus = "NOT_STARTED"
	StatusStarting   SlotStatus = "STARTING"
	StatusStarted    SlotStatus = "STARTED"
	StatusStopping   SlotStatus = "STOPPING"
	StatusCompleted  SlotStatus = "COMPLETED"
	StatusFailed     SlotStatus = "FAILED"
	StatusStopped    SlotStatus = "STOPPED"
)

// ErrAlreadyRunning is returned by Start when the slot has a live engine.
var ErrAlreadyRunning = errors.New("job already running for this worker")

// ErrUnknownJob is returned for job names never registered.
var ErrUnknownJob = errors.New("unknown job")

// StepRunner runs one engine for one worker slot. stopRequested is the
// cooperative stop flag the engine polls between chunks.
type StepRunner func(ctx context.Context, workerID int, stopRequested func() bool) (pipeline.Result, error)

type slotKey struct {
	job    string
	worker int
}

type slot struct {
	status      SlotStatus
	executionID string
	startedAt   time.Time
	endedAt     time.Time
	result      pipeline.Result
	lastError   string
	stopFlag    bool
}

// SlotSnapshot is the externally visible state of one worker slot.
type SlotSnapshot struct {
	Job         string          `json:"job"`
	WorkerID    int             `json:"worker_id"`
	Status      SlotStatus      `json:"status"`
	ExecutionID string          `json:"execution_id,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	EndedAt     time.Time       `json:"ended_at,omitempty"`
	Result      pipeline.Result `json:"result"`
	LastError   string          `json:"last_error,omitempty"`
}

// Controller serializes job lifecycle operations. One engine per
// (job, worker) at a time.
type Controller struct {
	totalWorkers int
	logger       *logharbour.Logger

	mu      sync.Mutex
	runners map[string]StepRunner
	slots   map[slotKey]*slot
	wg      sync.WaitGroup
}

func NewController(totalWorkers int, logger *logharbour.Logger) *Controller {
	return &Controller{
		totalWorkers: totalWorkers,
		logger:       logger,
		runners:      make(map[string]StepRunner),
		slots:        make(map[slotKey]*slot),
	}
}

// Register binds a job name to its runner. Registration happens at wiring
// time, before any Start.
func (c *Controller) Register(job string, runner StepRunner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[job] = runner
}

// TotalWorkers returns the configured worker count.
func (c *Controller) TotalWorkers() int { return c.totalWorkers }

// Start launches one engine for the slot and returns its execution id
// immediately; the run itself is asynchronous.
func (c *Controller) Start(ctx context.Context, job string, workerID int) (string, error) {
	if workerID < 0 || workerID >= c.totalWorkers {
		return "", pipeline.ConfigErr("worker id %d out of range [0, %d)", workerID, c.totalWorkers)
	}

	c.mu.Lock()
	runner, ok := c.runners[job]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}
	key := slotKey{job: job, worker: workerID}
	s := c.slots[key]
	if s != nil && (s.status == StatusStarting || s.status == StatusStarted || s.status == StatusStopping) {
		c.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	s = &slot{
		status:      StatusStarting,
		executionID: uuid.NewString(),
		startedAt:   time.Now().UTC(),
	}
	c.slots[key] = s
	execID := s.executionID
	c.wg.Add(1)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info().LogActivity("Job starting", map[string]any{
			"job":          job,
			"worker_id":    workerID,
			"execution_id": execID,
		})
	}

	go c.run(ctx, key, s, runner)
	return execID, nil
}

func (c *Controller) run(ctx context.Context, key slotKey, s *slot, runner StepRunner) {
	defer c.wg.Done()

	c.mu.Lock()
	s.status = StatusStarted
	c.mu.Unlock()

	stopRequested := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return s.stopFlag
	}

	res, err := runner(ctx, key.worker, stopRequested)

	c.mu.Lock()
	defer c.mu.Unlock()
	s.result = res
	s.endedAt = time.Now().UTC()
	switch res.Status {
	case pipeline.StatusCompleted:
		s.status = StatusCompleted
	case pipeline.StatusStopped:
		s.status = StatusStopped
	default:
		s.status = StatusFailed
	}
	if err != nil {
		s.lastError = err.Error()
		if c.logger != nil {
			c.logger.Error(err).LogActivity("Job failed", map[string]any{
				"job":       key.job,
				"worker_id": key.worker,
			})
		}
	}
}

// StartOutcome is the per-slot result of StartAll.
type StartOutcome struct {
	WorkerID    int    `json:"worker_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StartAll starts every worker slot best-effort and reports each outcome.
func (c *Controller) StartAll(ctx context.Context, job string) []StartOutcome {
	outcomes := make([]StartOutcome, 0, c.totalWorkers)
	for w := 0; w < c.totalWorkers; w++ {
		execID, err := c.Start(ctx, job, w)
		out := StartOutcome{WorkerID: w, ExecutionID: execID}
		if err != nil {
			out.Error = err.Error()
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Stop raises the cooperative stop flag for one slot. The engine finishes
// its chunk in flight, then yields STOPPED.
func (c *Controller) Stop(job string, workerID int) (SlotStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := slotKey{job: job, worker: workerID}
	s := c.slots[key]
	if s == nil || (s.status != StatusStarting && s.status != StatusStarted) {
		return "", fmt.Errorf("job %s worker %d is not running", job, workerID)
	}
	s.stopFlag = true
	s.status = StatusStopping
	return StatusStopping, nil
}

// StopAll flags every running slot of every job.
func (c *Controller) StopAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var flagged int
	for _, s := range c.slots {
		if s.status == StatusStarting || s.status == StatusStarted {
			s.stopFlag = true
			s.status = StatusStopping
			flagged++
		}
	}
	return flagged
}

// Wait blocks until every launched engine has drained, bounded by the
// context deadline.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the snapshot for one slot; a never-started slot reports
// NOT_STARTED.
func (c *Controller) Status(job string, workerID int) SlotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slots[slotKey{job: job, worker: workerID}]
	if s == nil {
		return SlotSnapshot{Job: job, WorkerID: workerID, Status: StatusNotStarted}
	}
	return snapshot(job, workerID, s)
}

// StatusAll returns a snapshot for every slot of the job.
func (c *Controller) StatusAll(job string) []SlotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snaps := make([]SlotSnapshot, 0, c.totalWorkers)
	for w := 0; w < c.totalWorkers; w++ {
		s := c.slots[slotKey{job: job, worker: w}]
		if s == nil {
			snaps = append(snaps, SlotSnapshot{Job: job, WorkerID: w, Status: StatusNotStarted})
			continue
		}
		snaps = append(snaps, snapshot(job, w, s))
	}
	return snaps
}

// CurrentJobs enumerates every live engine across all registered jobs.
func (c *Controller) CurrentJobs() []SlotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []SlotSnapshot
	for key, s := range c.slots {
		if s.status == StatusStarting || s.status == StatusStarted || s.status == StatusStopping {
			live = append(live, snapshot(key.job, key.worker, s))
		}
	}
	return live
}

// RunningCount reports how many engines are live.
func (c *Controller) RunningCount() int {
	return len(c.CurrentJobs())
}

func snapshot(job string, workerID int, s *slot) SlotSnapshot {
	return SlotSnapshot{
		Job:         job,
		WorkerID:    workerID,
		Status:      s.status,
		ExecutionID: s.executionID,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Result:      s.result,
		LastError:   s.lastError,
	}
}
