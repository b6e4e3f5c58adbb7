// Package checkpoint persists region-level progress so an interrupted
// ingestion run resumes where it stopped instead of starting over. Regions
// move PENDING -> PROCESSING -> COMPLETED/FAILED; claiming uses
// FOR UPDATE SKIP LOCKED so concurrent workers never process the same
// region twice.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
)

// ErrConcurrentExecution is returned by StartExecution when another RUNNING
// execution already holds the per-batch lock.
var ErrConcurrentExecution = errors.New("another execution is already running for this batch")

// ErrNoPending is returned by NextPending when every region of the batch
// has been claimed or finished.
var ErrNoPending = errors.New("no pending checkpoint")

const maxErrorMessageLen = 500

// Region identifies one unit of checkpointed work, typically an
// administrative district.
type Region struct {
	Type       string
	Code       string
	Name       string
	ParentCode string
}

// Store is the checkpoint and execution-metadata layer over Postgres.
type Store struct {
	q         batchsqlc.Querier
	batchName string
	logger    *logharbour.Logger
}

func NewStore(q batchsqlc.Querier, batchName string, logger *logharbour.Logger) *Store {
	return &Store{q: q, batchName: batchName, logger: logger}
}

// Initialize seeds one PENDING checkpoint per region. Regions that already
// have a checkpoint, in any status, are left untouched, so re-running
// initialization never resets progress.
func (s *Store) Initialize(ctx context.Context, regions []Region) (int64, error) {
	var inserted int64
	for _, r := range regions {
		n, err := s.q.InsertCheckpoint(ctx, batchsqlc.InsertCheckpointParams{
			BatchName:  s.batchName,
			RegionType: r.Type,
			RegionCode: r.Code,
			RegionName: r.Name,
			ParentCode: textOrNull(r.ParentCode),
		})
		if err != nil {
			return inserted, fmt.Errorf("insert checkpoint %s/%s: %w", r.Type, r.Code, err)
		}
		inserted += n
	}
	if s.logger != nil {
		s.logger.Info().LogActivity("Checkpoints initialized", map[string]any{
			"batch":    s.batchName,
			"regions":  len(regions),
			"inserted": inserted,
		})
	}
	return inserted, nil
}

// StartExecution opens a new execution record. If the previous run crashed,
// its PROCESSING checkpoints are first reset to PENDING so the new run
// picks them up again. The partial unique index on RUNNING rows enforces a
// single live execution per batch; a violation surfaces as
// ErrConcurrentExecution.
func (s *Store) StartExecution(ctx context.Context) (batchsqlc.BatchExecutionMetadata, error) {
	reset, err := s.q.ResetProcessingCheckpoints(ctx, s.batchName)
	if err != nil {
		return batchsqlc.BatchExecutionMetadata{}, fmt.Errorf("reset interrupted checkpoints: %w", err)
	}
	if reset > 0 && s.logger != nil {
		s.logger.Warn().LogActivity("Recovered interrupted checkpoints", map[string]any{
			"batch": s.batchName,
			"count": reset,
		})
	}

	progress, err := s.q.GetCheckpointProgress(ctx, s.batchName)
	if err != nil {
		return batchsqlc.BatchExecutionMetadata{}, fmt.Errorf("read checkpoint progress: %w", err)
	}

	exec, err := s.q.InsertExecution(ctx, batchsqlc.InsertExecutionParams{
		ExecutionID:  uuid.New(),
		BatchName:    s.batchName,
		TotalRegions: int32(progress.Total),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return batchsqlc.BatchExecutionMetadata{}, ErrConcurrentExecution
		}
		return batchsqlc.BatchExecutionMetadata{}, fmt.Errorf("insert execution: %w", err)
	}
	if s.logger != nil {
		s.logger.Info().LogActivity("Execution started", map[string]any{
			"batch":        s.batchName,
			"execution_id": exec.ExecutionID.String(),
			"total":        progress.Total,
			"pending":      progress.Pending,
		})
	}
	return exec, nil
}

// NextPending atomically claims the next PENDING region in region_code
// order and flips it to PROCESSING. FAILED regions are never handed out;
// they need an explicit ResetFailed first.
func (s *Store) NextPending(ctx context.Context, regionType string) (batchsqlc.BatchCheckpoint, error) {
	cp, err := s.q.NextPendingCheckpoint(ctx, batchsqlc.NextPendingCheckpointParams{
		BatchName:  s.batchName,
		RegionType: regionType,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batchsqlc.BatchCheckpoint{}, ErrNoPending
		}
		return batchsqlc.BatchCheckpoint{}, fmt.Errorf("claim next checkpoint: %w", err)
	}
	return cp, nil
}

// MarkCompleted finishes a claimed region and bumps the execution's
// completed counter.
func (s *Store) MarkCompleted(ctx context.Context, executionID uuid.UUID, cp batchsqlc.BatchCheckpoint, processed int32) error {
	if err := s.q.MarkCheckpointCompleted(ctx, batchsqlc.MarkCheckpointCompletedParams{
		ID:             cp.ID,
		ProcessedCount: processed,
	}); err != nil {
		return fmt.Errorf("mark checkpoint %d completed: %w", cp.ID, err)
	}
	if err := s.q.IncrementExecutionCompleted(ctx, batchsqlc.IncrementExecutionCompletedParams{
		ExecutionID:    executionID,
		LastRegionCode: textOrNull(cp.RegionCode),
	}); err != nil {
		return fmt.Errorf("increment execution completed: %w", err)
	}
	return nil
}

// MarkFailed records a region failure. The error message is truncated to
// fit the column.
func (s *Store) MarkFailed(ctx context.Context, executionID uuid.UUID, cp batchsqlc.BatchCheckpoint, cause error) error {
	msg := cause.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	if err := s.q.MarkCheckpointFailed(ctx, batchsqlc.MarkCheckpointFailedParams{
		ID:           cp.ID,
		ErrorMessage: textOrNull(msg),
	}); err != nil {
		return fmt.Errorf("mark checkpoint %d failed: %w", cp.ID, err)
	}
	if err := s.q.IncrementExecutionFailed(ctx, executionID); err != nil {
		return fmt.Errorf("increment execution failed: %w", err)
	}
	if s.logger != nil {
		s.logger.Error(cause).LogActivity("Region failed", map[string]any{
			"batch":       s.batchName,
			"region_code": cp.RegionCode,
		})
	}
	return nil
}

// FinishExecution closes the execution record with the given terminal
// status, releasing the single-execution lock.
func (s *Store) FinishExecution(ctx context.Context, executionID uuid.UUID, status batchsqlc.ExecutionStatus) error {
	if err := s.q.FinishExecution(ctx, batchsqlc.FinishExecutionParams{
		ExecutionID: executionID,
		Status:      status,
	}); err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	if s.logger != nil {
		s.logger.Info().LogActivity("Execution finished", map[string]any{
			"batch":        s.batchName,
			"execution_id": executionID.String(),
			"status":       string(status),
		})
	}
	return nil
}

// Progress returns the per-status region counts for the batch.
func (s *Store) Progress(ctx context.Context) (batchsqlc.GetCheckpointProgressRow, error) {
	return s.q.GetCheckpointProgress(ctx, s.batchName)
}

// RecoverInterrupted closes a RUNNING execution left behind by a dead
// process and requeues its PROCESSING checkpoints. It must run at process
// start, before any engine can hold the execution lock: at that point a
// RUNNING row can only be a crash leftover, never a live run of this
// process. Without this the partial unique index would block every later
// StartExecution.
func (s *Store) RecoverInterrupted(ctx context.Context) (bool, error) {
	exec, ok, err := s.RunningExecution(ctx)
	if err != nil {
		return false, fmt.Errorf("look up running execution: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.FinishExecution(ctx, exec.ExecutionID, batchsqlc.ExecutionStatusINTERRUPTED); err != nil {
		return false, fmt.Errorf("close interrupted execution: %w", err)
	}
	reset, err := s.ResetProcessing(ctx)
	if err != nil {
		return false, fmt.Errorf("requeue interrupted checkpoints: %w", err)
	}
	if s.logger != nil {
		s.logger.Warn().LogActivity("Closed execution left by a dead process", map[string]any{
			"batch":        s.batchName,
			"execution_id": exec.ExecutionID.String(),
			"requeued":     reset,
		})
	}
	return true, nil
}

// HasInterrupted reports whether the previous run of the batch stopped
// before finishing: its execution is still RUNNING (crash, not yet
// recovered) or closed INTERRUPTED, and regions remain to claim. A freshly
// seeded batch that has never run is not interrupted.
func (s *Store) HasInterrupted(ctx context.Context) (bool, error) {
	exec, ok, err := s.LatestExecution(ctx)
	if err != nil {
		return false, fmt.Errorf("look up latest execution: %w", err)
	}
	if !ok {
		return false, nil
	}
	if exec.Status != batchsqlc.ExecutionStatusRUNNING && exec.Status != batchsqlc.ExecutionStatusINTERRUPTED {
		return false, nil
	}
	n, err := s.q.CountResumableCheckpoints(ctx, s.batchName)
	if err != nil {
		return false, fmt.Errorf("count resumable checkpoints: %w", err)
	}
	return n > 0, nil
}

// ResetProcessing requeues checkpoints stuck in PROCESSING after a crash.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	return s.q.ResetProcessingCheckpoints(ctx, s.batchName)
}

// ResetFailed requeues FAILED checkpoints for a retry run. This is a
// manual operation exposed over the control API.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	return s.q.ResetFailedCheckpoints(ctx, s.batchName)
}

// RunningExecution returns the live execution, or pgx.ErrNoRows wrapped in
// the returned error when none is running.
func (s *Store) RunningExecution(ctx context.Context) (batchsqlc.BatchExecutionMetadata, bool, error) {
	exec, err := s.q.GetRunningExecution(ctx, s.batchName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batchsqlc.BatchExecutionMetadata{}, false, nil
		}
		return batchsqlc.BatchExecutionMetadata{}, false, err
	}
	return exec, true, nil
}

// LatestExecution returns the most recent execution record regardless of
// status.
func (s *Store) LatestExecution(ctx context.Context) (batchsqlc.BatchExecutionMetadata, bool, error) {
	exec, err := s.q.GetLatestExecution(ctx, s.batchName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batchsqlc.BatchExecutionMetadata{}, false, nil
		}
		return batchsqlc.BatchExecutionMetadata{}, false, err
	}
	return exec, true, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
