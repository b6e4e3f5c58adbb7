// Package pipeline implements the chunked reader -> processor -> writer
// engine that every batch job in this server runs on. A Step reads items in
// chunks, processes them one at a time, writes each chunk as a unit, and
// absorbs item failures up to a skip limit. Stopping is cooperative: the
// engine checks its context between chunks and always finishes the chunk it
// is working on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/remiges-tech/logharbour/logharbour"
)

// Status is the terminal state of a step run.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
)

// Result aggregates the counters of one step run.
type Result struct {
	Status  Status `json:"status"`
	Read    int    `json:"read"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Reader produces items one at a time in a stable order. io.EOF ends the
// stream; readers are not restartable.
type Reader[I any] interface {
	Read(ctx context.Context) (I, error)
}

// Processor transforms one item. Returning ErrDropItem drops the item
// without counting a skip; a KindNotFound error marks the item complete.
type Processor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// Writer persists a whole chunk atomically. A failed write fails the whole
// chunk; the writer must roll back its own transaction.
type Writer[O any] interface {
	Write(ctx context.Context, chunk []O) error
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc[I any] func(ctx context.Context) (I, error)

func (f ReaderFunc[I]) Read(ctx context.Context) (I, error) { return f(ctx) }

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc[I, O any] func(ctx context.Context, item I) (O, error)

func (f ProcessorFunc[I, O]) Process(ctx context.Context, item I) (O, error) { return f(ctx, item) }

// WriterFunc adapts a function to the Writer interface.
type WriterFunc[O any] func(ctx context.Context, chunk []O) error

func (f WriterFunc[O]) Write(ctx context.Context, chunk []O) error { return f(ctx, chunk) }

// ChunkReport is handed to the OnChunk callback after every chunk.
type ChunkReport struct {
	Chunk   int
	Read    int
	Written int
	Skipped int
}

// Step binds a reader, processor and writer into one runnable pipeline.
// Callbacks replace listener inheritance: they are plain values, nil means
// no-op.
type Step[I, O any] struct {
	Name      string
	Reader    Reader[I]
	Processor Processor[I, O]
	Writer    Writer[O]

	ChunkSize int
	SkipLimit int
	Retry     RetryPolicy

	// Concurrency is the number of goroutines processing items of a
	// chunk. Zero or one keeps processing sequential. Reads and writes
	// stay single-threaded either way, and chunk output order follows
	// read order regardless of which goroutine finished first.
	Concurrency int

	Logger *logharbour.Logger

	// StopRequested is the cooperative stop flag, polled between chunks.
	// Unlike context cancellation it lets the chunk in flight finish
	// cleanly before the step yields with StatusStopped.
	StopRequested func() bool

	OnChunk    func(ChunkReport)
	OnComplete func(Result)
	OnFail     func(Result, error)

	// OnSkip fires once per item counted against the skip limit, after
	// its retries are exhausted. Jobs use it to record the terminal
	// per-item status.
	OnSkip func(item I, err error)
}

// Run executes the step until the reader is exhausted, the skip limit is
// breached, a fatal error occurs, or the context is cancelled. The returned
// error is non-nil only for StatusFailed.
func (s *Step[I, O]) Run(ctx context.Context) (Result, error) {
	if s.ChunkSize <= 0 {
		return Result{Status: StatusFailed}, ConfigErr("step %s: chunk size must be positive, got %d", s.Name, s.ChunkSize)
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry = DefaultRetryPolicy()
	}

	var res Result
	chunkDelay := time.Duration(0)
	chunk := 0
	eof := false

	for !eof {
		// Cooperative stop point. The chunk already in flight has been
		// fully written by the time we get here.
		if ctx.Err() != nil || (s.StopRequested != nil && s.StopRequested()) {
			res.Status = StatusStopped
			s.logEnd(res)
			if s.OnComplete != nil {
				s.OnComplete(res)
			}
			return res, nil
		}

		if chunkDelay > 0 {
			if err := sleepCtx(ctx, chunkDelay); err != nil {
				res.Status = StatusStopped
				if s.OnComplete != nil {
					s.OnComplete(res)
				}
				return res, nil
			}
		}

		items, readEOF, err := s.readChunk(ctx)
		if err != nil {
			res.Status = StatusFailed
			res.Failed += len(items)
			s.logFail(res, err)
			if s.OnFail != nil {
				s.OnFail(res, err)
			}
			return res, fmt.Errorf("step %s: reader failed: %w", s.Name, err)
		}
		eof = readEOF
		res.Read += len(items)
		if len(items) == 0 {
			continue
		}

		outs, skipErr := s.processChunk(ctx, items, &res)
		if skipErr != nil && Classify(skipErr) == KindFatal {
			res.Status = StatusFailed
			s.logFail(res, skipErr)
			if s.OnFail != nil {
				s.OnFail(res, skipErr)
			}
			return res, skipErr
		}

		if len(outs) > 0 {
			if werr := s.writeChunk(ctx, outs); werr != nil {
				// The chunk transaction rolled back; every item of the
				// chunk counts against the skip limit.
				res.Skipped += len(outs)
				res.Failed += len(outs)
				if chunkDelay == 0 {
					chunkDelay = s.Retry.Initial
				} else {
					chunkDelay *= 2
					if chunkDelay > s.Retry.Max {
						chunkDelay = s.Retry.Max
					}
				}
				if s.Logger != nil {
					s.Logger.Error(werr).LogActivity("Chunk write failed", map[string]any{
						"step":  s.Name,
						"chunk": chunk,
						"items": len(outs),
					})
				}
				if res.Skipped > s.SkipLimit {
					res.Status = StatusFailed
					err := fmt.Errorf("step %s: skip limit %d exceeded: %w", s.Name, s.SkipLimit, werr)
					s.logFail(res, err)
					if s.OnFail != nil {
						s.OnFail(res, err)
					}
					return res, err
				}
			} else {
				res.Written += len(outs)
				chunkDelay = 0
			}
		}

		if s.OnChunk != nil {
			s.OnChunk(ChunkReport{Chunk: chunk, Read: len(items), Written: len(outs), Skipped: res.Skipped})
		}
		chunk++

		// Skip-limit breach detected during processing: the survivors of
		// the chunk have been written above, now terminate.
		if skipErr != nil {
			res.Status = StatusFailed
			s.logFail(res, skipErr)
			if s.OnFail != nil {
				s.OnFail(res, skipErr)
			}
			return res, skipErr
		}
	}

	res.Status = StatusCompleted
	s.logEnd(res)
	if s.OnComplete != nil {
		s.OnComplete(res)
	}
	return res, nil
}

// readChunk reads up to ChunkSize items. Transient reader errors are
// retried with backoff; config and fatal errors abort the step.
func (s *Step[I, O]) readChunk(ctx context.Context) ([]I, bool, error) {
	items := make([]I, 0, s.ChunkSize)
	for len(items) < s.ChunkSize {
		item, err := s.readOne(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return items, true, nil
			}
			return items, false, err
		}
		items = append(items, item)
	}
	return items, false, nil
}

func (s *Step[I, O]) readOne(ctx context.Context) (I, error) {
	var zero I
	for attempt := 1; ; attempt++ {
		item, err := s.Reader.Read(ctx)
		if err == nil || errors.Is(err, io.EOF) {
			return item, err
		}
		kind := Classify(err)
		if !retryable(kind) || attempt >= s.Retry.MaxAttempts {
			return zero, err
		}
		if s.Logger != nil {
			s.Logger.Warn().LogActivity("Reader error, retrying", map[string]any{
				"step":    s.Name,
				"attempt": attempt,
				"kind":    kind.String(),
				"error":   err.Error(),
			})
		}
		if serr := sleepCtx(ctx, s.Retry.Delay(attempt)); serr != nil {
			return zero, err
		}
	}
}

// processChunk runs each item through the processor, fanning out over
// Concurrency goroutines. Accounting happens afterwards in read order, so
// skip counts and the skip-limit cutoff are deterministic no matter how
// the goroutines interleave. The returned error is non-nil when the skip
// limit was breached (or a fatal error occurred); the successfully
// processed survivors are still returned so the caller can write them
// before terminating.
func (s *Step[I, O]) processChunk(ctx context.Context, items []I, res *Result) ([]O, error) {
	type itemResult struct {
		out O
		err error
	}
	results := make([]itemResult, len(items))
	if s.Concurrency > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, s.Concurrency)
		for i := range items {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i].out, results[i].err = s.processOne(ctx, items[i])
			}(i)
		}
		wg.Wait()
	} else {
		for i := range items {
			results[i].out, results[i].err = s.processOne(ctx, items[i])
		}
	}

	outs := make([]O, 0, len(items))
	for i, item := range items {
		out, err := results[i].out, results[i].err
		if err == nil {
			outs = append(outs, out)
			continue
		}
		if errors.Is(err, ErrDropItem) {
			continue
		}
		kind := Classify(err)
		switch kind {
		case KindNotFound:
			// Upstream record is gone; the processor already recorded the
			// NOT_FOUND status. Item is complete, nothing to write.
			continue
		case KindFatal, KindConfig:
			return outs, FatalErr(fmt.Errorf("step %s: %w", s.Name, err))
		default:
			res.Skipped++
			res.Failed++
			if s.OnSkip != nil {
				s.OnSkip(item, err)
			}
			if s.Logger != nil {
				s.Logger.Warn().LogActivity("Item skipped", map[string]any{
					"step":    s.Name,
					"kind":    kind.String(),
					"skipped": res.Skipped,
					"error":   err.Error(),
				})
			}
			if res.Skipped > s.SkipLimit {
				return outs, fmt.Errorf("step %s: skip limit %d exceeded: %w", s.Name, s.SkipLimit, err)
			}
		}
	}
	return outs, nil
}

// processOne applies the per-item retry policy: validation errors are never
// retried, transient and resource errors back off and retry, unknown errors
// retry up to the same bound and are then skipped by the caller.
func (s *Step[I, O]) processOne(ctx context.Context, item I) (O, error) {
	var zero O
	for attempt := 1; ; attempt++ {
		out, err := s.Processor.Process(ctx, item)
		if err == nil {
			return out, nil
		}
		kind := Classify(err)
		if !retryable(kind) || attempt >= s.Retry.MaxAttempts {
			return zero, err
		}
		if serr := sleepCtx(ctx, s.Retry.Delay(attempt)); serr != nil {
			return zero, err
		}
	}
}

// writeChunk retries transient write failures before giving up on the chunk.
func (s *Step[I, O]) writeChunk(ctx context.Context, outs []O) error {
	var err error
	for attempt := 1; attempt <= s.Retry.MaxAttempts; attempt++ {
		err = s.Writer.Write(ctx, outs)
		if err == nil {
			return nil
		}
		if !retryable(Classify(err)) {
			return err
		}
		if serr := sleepCtx(ctx, s.Retry.Delay(attempt)); serr != nil {
			return err
		}
	}
	return err
}

func (s *Step[I, O]) logEnd(res Result) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info().LogActivity("Step finished", map[string]any{
		"step":    s.Name,
		"status":  string(res.Status),
		"read":    res.Read,
		"written": res.Written,
		"skipped": res.Skipped,
	})
}

func (s *Step[I, O]) logFail(res Result, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error(err).LogActivity("Step failed", map[string]any{
		"step":    s.Name,
		"read":    res.Read,
		"written": res.Written,
		"skipped": res.Skipped,
	})
}
