package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceReader yields the given items in order, then io.EOF.
type sliceReader[I any] struct {
	items []I
	pos   int
}

func (r *sliceReader[I]) Read(ctx context.Context) (I, error) {
	var zero I
	if r.pos >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

// collectWriter appends every written chunk into one slice.
type collectWriter[O any] struct {
	mu     sync.Mutex
	chunks [][]O
	items  []O
}

func (w *collectWriter[O]) Write(ctx context.Context, chunk []O) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]O, len(chunk))
	copy(cp, chunk)
	w.chunks = append(w.chunks, cp)
	w.items = append(w.items, cp...)
	return nil
}

func identity[I any]() Processor[I, I] {
	return ProcessorFunc[I, I](func(ctx context.Context, item I) (I, error) {
		return item, nil
	})
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 4 * time.Millisecond}
}

func TestRunEmptyStreamCompletesWithZeroCounters(t *testing.T) {
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:      "empty",
		Reader:    &sliceReader[int]{},
		Processor: identity[int](),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 5,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Zero(t, res.Read)
	assert.Zero(t, res.Written)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, w.chunks)
}

func TestRunWritesInChunkOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:      "chunks",
		Reader:    &sliceReader[int]{items: items},
		Processor: identity[int](),
		Writer:    w,
		ChunkSize: 3,
		SkipLimit: 0,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 7, res.Read)
	assert.Equal(t, 7, res.Written)
	require.Len(t, w.chunks, 3)
	assert.Equal(t, []int{1, 2, 3}, w.chunks[0])
	assert.Equal(t, []int{4, 5, 6}, w.chunks[1])
	assert.Equal(t, []int{7}, w.chunks[2])
}

// Concurrency must not reorder chunk output. Earlier items sleep longer,
// so completion order is the reverse of read order; written order must
// still match read order.
func TestRunConcurrentProcessingPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:   "fanout-order",
		Reader: &sliceReader[int]{items: items},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, item int) (int, error) {
			time.Sleep(time.Duration(9-item) * time.Millisecond)
			return item, nil
		}),
		Writer:      w,
		ChunkSize:   8,
		SkipLimit:   0,
		Retry:       fastRetry(),
		Concurrency: 4,
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, w.chunks, 1)
	assert.Equal(t, items, w.chunks[0])
}

func TestRunConcurrencyFansOutWithinChunk(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	step := &Step[int, int]{
		Name:   "fanout-width",
		Reader: &sliceReader[int]{items: items},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, item int) (int, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return item, nil
		}),
		Writer:      &collectWriter[int]{},
		ChunkSize:   8,
		SkipLimit:   0,
		Retry:       fastRetry(),
		Concurrency: 4,
	}

	_, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, peak.Load(), int32(1), "items of a chunk must be processed in parallel")
	assert.LessOrEqual(t, peak.Load(), int32(4), "fan-out is bounded by Concurrency")
}

// Failed items under concurrency still count deterministically against the
// skip limit and the survivors are written.
func TestRunConcurrentProcessingCountsSkips(t *testing.T) {
	items := []string{"ok", "bad", "ok", "bad", "ok"}
	w := &collectWriter[string]{}
	step := &Step[string, string]{
		Name:   "fanout-skips",
		Reader: &sliceReader[string]{items: items},
		Processor: ProcessorFunc[string, string](func(ctx context.Context, item string) (string, error) {
			if item == "bad" {
				return "", ValidationErr(errors.New("malformed"))
			}
			return item, nil
		}),
		Writer:      w,
		ChunkSize:   5,
		SkipLimit:   2,
		Retry:       fastRetry(),
		Concurrency: 3,
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []string{"ok", "ok", "ok"}, w.items)
}

// Skip-limit trip: skip_limit=2, items [ok,bad,ok,bad,ok,bad] where bad is a
// validation error. The first two bads are absorbed as skips; the third one
// fails the step. The ok items processed before termination are written.
func TestRunSkipLimitTrip(t *testing.T) {
	items := []string{"ok", "bad", "ok", "bad", "ok", "bad"}
	w := &collectWriter[string]{}
	step := &Step[string, string]{
		Name:   "skiplimit",
		Reader: &sliceReader[string]{items: items},
		Processor: ProcessorFunc[string, string](func(ctx context.Context, s string) (string, error) {
			if s == "bad" {
				return "", ValidationErr(errors.New("malformed item"))
			}
			return s, nil
		}),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 2,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Written)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, []string{"ok", "ok", "ok"}, w.items)
}

func TestRunSkipLimitZeroFailsOnFirstError(t *testing.T) {
	step := &Step[int, int]{
		Name:   "zskip",
		Reader: &sliceReader[int]{items: []int{1}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			return 0, ValidationErr(errors.New("bad"))
		}),
		Writer:    &collectWriter[int]{},
		ChunkSize: 5,
		SkipLimit: 0,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunValidationErrorsAreNotRetried(t *testing.T) {
	var calls int
	step := &Step[int, int]{
		Name:   "noretry",
		Reader: &sliceReader[int]{items: []int{1}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			calls++
			return 0, ValidationErr(errors.New("bad field"))
		}),
		Writer:    &collectWriter[int]{},
		ChunkSize: 5,
		SkipLimit: 5,
		Retry:     fastRetry(),
	}

	_, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "validation errors must not be retried")
}

func TestRunTransientErrorsRetryThenSucceed(t *testing.T) {
	var calls int
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:   "flaky",
		Reader: &sliceReader[int]{items: []int{42}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			calls++
			if calls < 3 {
				return 0, TransientErr(fmt.Errorf("connection reset"))
			}
			return n, nil
		}),
		Writer:    w,
		ChunkSize: 5,
		SkipLimit: 0,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 3, calls)
}

func TestRunNotFoundCompletesItemWithoutSkip(t *testing.T) {
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:   "notfound",
		Reader: &sliceReader[int]{items: []int{1, 2, 3}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			if n == 2 {
				return 0, NotFoundErr(errors.New("place closed"))
			}
			return n, nil
		}),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 0,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Read)
	assert.Equal(t, 2, res.Written)
	assert.Zero(t, res.Skipped)
}

func TestRunDropItemIsNotCounted(t *testing.T) {
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:   "drop",
		Reader: &sliceReader[int]{items: []int{1, 2, 3, 4}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			if n%2 == 0 {
				return 0, ErrDropItem
			}
			return n, nil
		}),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 0,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Read)
	assert.Equal(t, 2, res.Written)
	assert.Zero(t, res.Skipped)
}

func TestRunFatalErrorTerminatesImmediately(t *testing.T) {
	step := &Step[int, int]{
		Name:   "fatal",
		Reader: &sliceReader[int]{items: []int{1, 2, 3}},
		Processor: ProcessorFunc[int, int](func(ctx context.Context, n int) (int, error) {
			return 0, FatalErr(errors.New("duplicate execution lock held"))
		}),
		Writer:    &collectWriter[int]{},
		ChunkSize: 10,
		SkipLimit: 100,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestRunWriterFailureCountsChunkAgainstSkipLimit(t *testing.T) {
	var writes int
	step := &Step[int, int]{
		Name:      "badwriter",
		Reader:    &sliceReader[int]{items: []int{1, 2, 3}},
		Processor: identity[int](),
		Writer: WriterFunc[int](func(ctx context.Context, chunk []int) error {
			writes++
			return ValidationErr(errors.New("constraint violation"))
		}),
		ChunkSize: 3,
		SkipLimit: 2,
		Retry:     fastRetry(),
	}

	res, err := step.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 1, writes, "non-retryable writer error must not be retried")
}

// Cooperative stop: stop is requested after the third chunk commits; the
// engine finishes the chunk in flight and exits STOPPED with 40 written.
func TestRunCooperativeStop(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i + 1
	}
	var stop bool
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:      "stop",
		Reader:    &sliceReader[int]{items: items},
		Processor: identity[int](),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 0,
		Retry:     fastRetry(),
		StopRequested: func() bool { return stop },
		OnChunk: func(r ChunkReport) {
			// Chunks are 0-indexed; request stop once chunk 3 has committed,
			// i.e. after the 4th chunk boundary check will see the flag.
			if r.Chunk == 3 {
				stop = true
			}
		},
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, res.Status)
	assert.Equal(t, 40, res.Written)
	assert.Len(t, w.chunks, 4)
}

func TestRunContextCancelStopsBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 30)
	for i := range items {
		items[i] = i
	}
	w := &collectWriter[int]{}
	step := &Step[int, int]{
		Name:      "cancel",
		Reader:    &sliceReader[int]{items: items},
		Processor: identity[int](),
		Writer:    w,
		ChunkSize: 10,
		SkipLimit: 0,
		Retry:     fastRetry(),
		OnChunk: func(r ChunkReport) {
			if r.Chunk == 0 {
				cancel()
			}
		},
	}

	res, err := step.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, res.Status)
	assert.Equal(t, 10, res.Written)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed transient", TransientErr(errors.New("x")), KindTransient},
		{"typed validation", ValidationErr(errors.New("x")), KindValidation},
		{"typed fatal", FatalErr(errors.New("x")), KindFatal},
		{"wrapped typed", fmt.Errorf("outer: %w", ResourceErr(errors.New("pool"))), KindResource},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"plain", errors.New("mystery"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestRetryPolicyDelayIsCappedWithJitter(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Initial: 100 * time.Millisecond, Max: 400 * time.Millisecond}

	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Delay(attempt)
		assert.LessOrEqual(t, d, time.Duration(float64(p.Max)*1.1))
		assert.GreaterOrEqual(t, d, time.Duration(float64(p.Initial)*0.9))
	}

	// First attempt stays near the initial delay.
	d := p.Delay(1)
	assert.LessOrEqual(t, d, time.Duration(float64(p.Initial)*1.1))
}
