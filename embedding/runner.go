package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// ErrServiceUnavailable is returned by Start when the embedding service
// fails its health probe; the job refuses to start rather than burn its
// skip budget against a dead dependency.
var ErrServiceUnavailable = errors.New("embedding service unavailable")

// ErrAlreadyRunning is returned by Start while a previous run is live.
var ErrAlreadyRunning = errors.New("embedding job already running")

// State of the runner, reported by Status.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateStarted    State = "STARTED"
	StateStopping   State = "STOPPING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateStopped    State = "STOPPED"
)

// Config sizes the embedding step.
type Config struct {
	ChunkSize int
	PageSize  int32
	SkipLimit int
	Keywords  int
	Retry     pipeline.RetryPolicy
}

// Runner owns the lifecycle of the sequential embedding job.
type Runner struct {
	q        batchsqlc.Querier
	writer   pipeline.Writer[EmbeddedPlace]
	embedder Embedder
	cfg      Config
	logger   *logharbour.Logger

	mu        sync.Mutex
	state     State
	result    pipeline.Result
	stopFlag  bool
	startedAt time.Time
	endedAt   time.Time
	done      chan struct{}
}

func NewRunner(q batchsqlc.Querier, writer pipeline.Writer[EmbeddedPlace], embedder Embedder, cfg Config, logger *logharbour.Logger) *Runner {
	return &Runner{
		q:        q,
		writer:   writer,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		state:    StateNotStarted,
	}
}

// Start health-checks the embedding service, then launches the job
// asynchronously. Returns ErrAlreadyRunning if a run is live and
// ErrServiceUnavailable if the probe fails.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateStarted || r.state == StateStopping {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.mu.Unlock()

	if err := r.embedder.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	r.mu.Lock()
	r.state = StateStarted
	r.stopFlag = false
	r.result = pipeline.Result{}
	r.startedAt = time.Now().UTC()
	r.endedAt = time.Time{}
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.run(ctx)
	}()
	return nil
}

// Stop raises the cooperative stop flag. The chunk in flight finishes
// before the runner yields.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateStarted {
		return
	}
	r.state = StateStopping
	r.stopFlag = true
}

// Wait blocks until the current run, if any, terminates.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// RunnerStatus is the Status snapshot.
type RunnerStatus struct {
	State     State           `json:"state"`
	Result    pipeline.Result `json:"result"`
	StartedAt time.Time       `json:"started_at,omitempty"`
	EndedAt   time.Time       `json:"ended_at,omitempty"`
}

func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunnerStatus{
		State:     r.state,
		Result:    r.result,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}
}

// Running reports whether a run is live.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateStarted || r.state == StateStopping
}

// Health exposes the service probe for the control surface.
func (r *Runner) Health(ctx context.Context) error {
	return r.embedder.Health(ctx)
}

func (r *Runner) run(ctx context.Context) {
	step := &pipeline.Step[batchsqlc.ListEmbeddablePlacesRow, EmbeddedPlace]{
		Name:      "embedding",
		Reader:    NewReader(r.q, r.cfg.PageSize),
		Processor: NewProcessor(r.embedder, r.cfg.Keywords),
		Writer:    r.writer,
		ChunkSize: r.cfg.ChunkSize,
		SkipLimit: r.cfg.SkipLimit,
		Retry:     r.cfg.Retry,
		Logger:    r.logger,
		StopRequested: func() bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.stopFlag
		},
		OnSkip: func(row batchsqlc.ListEmbeddablePlacesRow, cause error) {
			// Retries exhausted for this place: mark it FAILED so the
			// reader does not hand it out again next run.
			if err := r.q.UpdatePlaceEmbedStatus(ctx, batchsqlc.UpdatePlaceEmbedStatusParams{
				ID:          row.ID,
				EmbedStatus: batchsqlc.EmbedStatusFAILED,
			}); err != nil && r.logger != nil {
				r.logger.Error(err).LogActivity("Failed to mark place embed FAILED", map[string]any{
					"place_id": row.ID,
				})
			}
		},
	}

	res, err := step.Run(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
	r.endedAt = time.Now().UTC()
	switch res.Status {
	case pipeline.StatusCompleted:
		r.state = StateCompleted
	case pipeline.StatusStopped:
		r.state = StateStopped
	default:
		r.state = StateFailed
	}
	if err != nil && r.logger != nil {
		r.logger.Error(err).LogActivity("Embedding job failed", map[string]any{
			"read":    res.Read,
			"written": res.Written,
			"skipped": res.Skipped,
		})
	}
}
