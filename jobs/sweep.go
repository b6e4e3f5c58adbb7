package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/checkpoint"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// SweepJobName is the registry key of the checkpointed region sweep.
const SweepJobName = "region-sweep"

// RegionIngester is the slice of the crawler client the sweep needs.
type RegionIngester interface {
	IngestRegion(ctx context.Context, regionType, regionCode, regionName string) (int32, error)
}

// SweptRegion carries one finished region from the processor to the
// writer.
type SweptRegion struct {
	Checkpoint batchsqlc.BatchCheckpoint
	Processed  int32
}

// SweepConfig sizes the region sweep. The sweep runs one region per chunk
// so every region commits its checkpoint transition individually.
type SweepConfig struct {
	RegionType string
	SkipLimit  int
	Retry      pipeline.RetryPolicy
}

// NewSweepRunner assembles the checkpointed region sweep: the reader
// claims PENDING regions one at a time, the processor delegates region
// ingestion to the crawler service, the writer records completion on the
// checkpoint and execution rows. The runner opens its own execution record
// and closes it with the step's terminal status, so resume-after-crash
// detection works purely from the store.
func NewSweepRunner(store *checkpoint.Store, ingester RegionIngester, cfg SweepConfig, logger *logharbour.Logger) StepRunner {
	return func(ctx context.Context, workerID int, stopRequested func() bool) (pipeline.Result, error) {
		exec, err := store.StartExecution(ctx)
		if err != nil {
			return pipeline.Result{Status: pipeline.StatusFailed}, err
		}

		res, runErr := runSweepStep(ctx, store, ingester, cfg, logger, exec.ExecutionID, stopRequested)

		status := batchsqlc.ExecutionStatusCOMPLETED
		switch res.Status {
		case pipeline.StatusFailed:
			status = batchsqlc.ExecutionStatusFAILED
		case pipeline.StatusStopped:
			status = batchsqlc.ExecutionStatusINTERRUPTED
		}
		if ferr := store.FinishExecution(ctx, exec.ExecutionID, status); ferr != nil && logger != nil {
			logger.Error(ferr).LogActivity("Failed to close execution", map[string]any{
				"execution_id": exec.ExecutionID.String(),
			})
		}
		return res, runErr
	}
}

func runSweepStep(ctx context.Context, store *checkpoint.Store, ingester RegionIngester, cfg SweepConfig, logger *logharbour.Logger, execID uuid.UUID, stopRequested func() bool) (pipeline.Result, error) {
	step := &pipeline.Step[batchsqlc.BatchCheckpoint, SweptRegion]{
		Name:   SweepJobName,
		Reader: checkpoint.NewRegionReader(store, cfg.RegionType),
		Processor: pipeline.ProcessorFunc[batchsqlc.BatchCheckpoint, SweptRegion](func(ctx context.Context, cp batchsqlc.BatchCheckpoint) (SweptRegion, error) {
			processed, err := ingester.IngestRegion(ctx, cp.RegionType, cp.RegionCode, cp.RegionName)
			if err != nil {
				return SweptRegion{}, err
			}
			return SweptRegion{Checkpoint: cp, Processed: processed}, nil
		}),
		Writer: pipeline.WriterFunc[SweptRegion](func(ctx context.Context, chunk []SweptRegion) error {
			for _, region := range chunk {
				if err := store.MarkCompleted(ctx, execID, region.Checkpoint, region.Processed); err != nil {
					return pipeline.TransientErr(fmt.Errorf("complete region %s: %w", region.Checkpoint.RegionCode, err))
				}
			}
			return nil
		}),
		// One region per chunk: each checkpoint transition commits on its
		// own, so a crash loses at most the region in flight.
		ChunkSize:     1,
		SkipLimit:     cfg.SkipLimit,
		Retry:         cfg.Retry,
		Logger:        logger,
		StopRequested: stopRequested,
		OnSkip: func(cp batchsqlc.BatchCheckpoint, cause error) {
			if err := store.MarkFailed(ctx, execID, cp, cause); err != nil && logger != nil {
				logger.Error(err).LogActivity("Failed to mark region FAILED", map[string]any{
					"region_code": cp.RegionCode,
				})
			}
		},
	}
	return step.Run(ctx)
}
