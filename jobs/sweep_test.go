package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjsh1623/MoheBatch-sub001/checkpoint"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// sweepQuerier backs a checkpoint.Store with just enough state for the
// sweep runner.
type sweepQuerier struct {
	batchsqlc.Querier

	mu          sync.Mutex
	checkpoints []*batchsqlc.BatchCheckpoint
	execution   *batchsqlc.BatchExecutionMetadata
	completed   int32
	failed      int32
}

func newSweepQuerier(codes ...string) *sweepQuerier {
	s := &sweepQuerier{}
	for i, code := range codes {
		s.checkpoints = append(s.checkpoints, &batchsqlc.BatchCheckpoint{
			ID:         int64(i + 1),
			BatchName:  "test-batch",
			RegionType: "sigungu",
			RegionCode: code,
			RegionName: "Region " + code,
			Status:     batchsqlc.CheckpointStatusPENDING,
		})
	}
	return s
}

func (s *sweepQuerier) ResetProcessingCheckpoints(ctx context.Context, batchName string) (int64, error) {
	return 0, nil
}

func (s *sweepQuerier) GetCheckpointProgress(ctx context.Context, batchName string) (batchsqlc.GetCheckpointProgressRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := batchsqlc.GetCheckpointProgressRow{Total: int64(len(s.checkpoints))}
	for _, cp := range s.checkpoints {
		switch cp.Status {
		case batchsqlc.CheckpointStatusPENDING:
			row.Pending++
		case batchsqlc.CheckpointStatusCOMPLETED:
			row.Completed++
		case batchsqlc.CheckpointStatusFAILED:
			row.Failed++
		}
	}
	return row, nil
}

func (s *sweepQuerier) InsertExecution(ctx context.Context, arg batchsqlc.InsertExecutionParams) (batchsqlc.BatchExecutionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execution = &batchsqlc.BatchExecutionMetadata{
		ExecutionID:  arg.ExecutionID,
		BatchName:    arg.BatchName,
		Status:       batchsqlc.ExecutionStatusRUNNING,
		TotalRegions: arg.TotalRegions,
	}
	return *s.execution, nil
}

func (s *sweepQuerier) NextPendingCheckpoint(ctx context.Context, arg batchsqlc.NextPendingCheckpointParams) (batchsqlc.BatchCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.checkpoints {
		if cp.Status == batchsqlc.CheckpointStatusPENDING {
			cp.Status = batchsqlc.CheckpointStatusPROCESSING
			return *cp, nil
		}
	}
	return batchsqlc.BatchCheckpoint{}, pgx.ErrNoRows
}

func (s *sweepQuerier) MarkCheckpointCompleted(ctx context.Context, arg batchsqlc.MarkCheckpointCompletedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.checkpoints {
		if cp.ID == arg.ID {
			cp.Status = batchsqlc.CheckpointStatusCOMPLETED
			cp.ProcessedCount = arg.ProcessedCount
		}
	}
	return nil
}

func (s *sweepQuerier) MarkCheckpointFailed(ctx context.Context, arg batchsqlc.MarkCheckpointFailedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.checkpoints {
		if cp.ID == arg.ID {
			cp.Status = batchsqlc.CheckpointStatusFAILED
			cp.ErrorMessage = arg.ErrorMessage
		}
	}
	return nil
}

func (s *sweepQuerier) IncrementExecutionCompleted(ctx context.Context, arg batchsqlc.IncrementExecutionCompletedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	return nil
}

func (s *sweepQuerier) IncrementExecutionFailed(ctx context.Context, executionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	return nil
}

func (s *sweepQuerier) FinishExecution(ctx context.Context, arg batchsqlc.FinishExecutionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution != nil && s.execution.ExecutionID == arg.ExecutionID {
		s.execution.Status = arg.Status
	}
	return nil
}

type fakeIngester struct {
	mu    sync.Mutex
	errs  map[string]error
	swept []string
}

func (f *fakeIngester) IngestRegion(ctx context.Context, regionType, regionCode, regionName string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[regionCode]; ok {
		return 0, err
	}
	f.swept = append(f.swept, regionCode)
	return 25, nil
}

func sweepConfig() SweepConfig {
	return SweepConfig{RegionType: "sigungu", SkipLimit: 5, Retry: fastRetry()}
}

func TestSweepRunnerCompletesAllRegions(t *testing.T) {
	q := newSweepQuerier("11", "26", "27")
	store := checkpoint.NewStore(q, "test-batch", nil)
	ing := &fakeIngester{}

	runner := NewSweepRunner(store, ing, sweepConfig(), nil)
	res, err := runner(context.Background(), 0, func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Written)
	assert.Equal(t, []string{"11", "26", "27"}, ing.swept)

	assert.Equal(t, batchsqlc.ExecutionStatusCOMPLETED, q.execution.Status)
	assert.Equal(t, int32(3), q.completed)
	for _, cp := range q.checkpoints {
		assert.Equal(t, batchsqlc.CheckpointStatusCOMPLETED, cp.Status)
		assert.Equal(t, int32(25), cp.ProcessedCount)
	}
}

func TestSweepRunnerMarksFailingRegionAndContinues(t *testing.T) {
	q := newSweepQuerier("11", "26", "27")
	store := checkpoint.NewStore(q, "test-batch", nil)
	ing := &fakeIngester{errs: map[string]error{
		"26": pipeline.TransientErr(errors.New("region fetch 503")),
	}}

	runner := NewSweepRunner(store, ing, sweepConfig(), nil)
	res, err := runner(context.Background(), 0, func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, int32(1), q.failed)

	assert.Equal(t, batchsqlc.CheckpointStatusFAILED, q.checkpoints[1].Status)
	assert.Contains(t, q.checkpoints[1].ErrorMessage.String, "503")
}

func TestSweepRunnerPropagatesConcurrentExecution(t *testing.T) {
	q := newSweepQuerier("11")
	store := checkpoint.NewStore(&concurrentQuerier{sweepQuerier: q}, "test-batch", nil)
	runner := NewSweepRunner(store, &fakeIngester{}, sweepConfig(), nil)

	res, err := runner(context.Background(), 0, func() bool { return false })
	assert.ErrorIs(t, err, checkpoint.ErrConcurrentExecution)
	assert.Equal(t, pipeline.StatusFailed, res.Status)
}

type concurrentQuerier struct {
	*sweepQuerier
}

func (c *concurrentQuerier) InsertExecution(ctx context.Context, arg batchsqlc.InsertExecutionParams) (batchsqlc.BatchExecutionMetadata, error) {
	return batchsqlc.BatchExecutionMetadata{}, &pgconn.PgError{Code: "23505", ConstraintName: "uq_batch_execution_running"}
}
