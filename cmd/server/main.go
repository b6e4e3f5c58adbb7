// Command server runs the place ingestion batch server: the crawl and
// region-sweep jobs, the Redis update queue worker, the embedding pipeline
// and the HTTP control surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/checkpoint"
	"github.com/sjsh1623/MoheBatch-sub001/clients"
	"github.com/sjsh1623/MoheBatch-sub001/config"
	"github.com/sjsh1623/MoheBatch-sub001/embedding"
	"github.com/sjsh1623/MoheBatch-sub001/jobs"
	"github.com/sjsh1623/MoheBatch-sub001/metrics"
	"github.com/sjsh1623/MoheBatch-sub001/pg"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
	"github.com/sjsh1623/MoheBatch-sub001/router"
	"github.com/sjsh1623/MoheBatch-sub001/webservices"
)

const sweepRegionType = "sigungu"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	logger := logharbour.NewLogger(
		logharbour.NewLoggerContext(logharbour.DefaultPriority),
		"mohebatch", os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBConnString())
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	defer pool.Close()
	if err := migrate(ctx, pool); err != nil {
		return err
	}
	queries := batchsqlc.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	store := checkpoint.NewStore(queries, cfg.BatchName, logger)
	// A RUNNING execution row at this point belongs to a dead process;
	// close it out so new runs are not locked out.
	if _, err := store.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted execution: %w", err)
	}
	if cfg.CheckpointEnabled {
		regions, err := checkpoint.LoadCatalog()
		if err != nil {
			return err
		}
		if _, err := store.Initialize(ctx, regions); err != nil {
			return fmt.Errorf("seed checkpoints: %w", err)
		}
	}

	crawler := clients.NewCrawler(cfg.CrawlerBaseURL, cfg.ServiceTimeout)
	embedClient := clients.NewEmbedding(cfg.EmbeddingBaseURL, cfg.ServiceTimeout)
	imageClient := clients.NewImage(cfg.ImageBaseURL, cfg.ServiceTimeout)

	retry := pipeline.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Initial:     cfg.BackoffInitial,
		Max:         cfg.BackoffMax,
	}

	mets := metrics.New()
	crawlWriter := jobs.NewCrawlWriter(pool, batchsqlc.New(pool))

	controller := jobs.NewController(cfg.TotalWorkers, logger)
	controller.Register(jobs.CrawlJobName, mets.InstrumentRunner(jobs.CrawlJobName,
		jobs.NewCrawlRunner(queries, crawlWriter, crawler, jobs.CrawlConfig{
			TotalWorkers: cfg.TotalWorkers,
			Threads:      cfg.ThreadsPerWorker,
			PageSize:     int32(cfg.ChunkSize * 10),
			ChunkSize:    cfg.ChunkSize,
			SkipLimit:    cfg.SkipLimit,
			Retry:        retry,
		}, logger)))
	controller.Register(jobs.SweepJobName, mets.InstrumentRunner(jobs.SweepJobName,
		jobs.NewSweepRunner(store, crawler, jobs.SweepConfig{
			RegionType: sweepRegionType,
			SkipLimit:  cfg.SkipLimit,
			Retry:      retry,
		}, logger)))

	updateQueue := queue.New(rdb, cfg.QueueVisibility, cfg.HeartbeatInterval, cfg.MaxAttempts, logger)
	worker := queue.NewWorker(workerID(), updateQueue,
		jobs.NewUpdateHandler(queries, crawlWriter, crawler, imageClient, logger), logger)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("start queue worker: %w", err)
	}

	embedRunner := embedding.NewRunner(queries, embedding.NewWriter(pool, batchsqlc.New(pool)),
		embedClient, embedding.Config{
			ChunkSize: cfg.EmbeddingChunkSize,
			PageSize:  int32(cfg.ChunkSize * 10),
			SkipLimit: cfg.SkipLimit,
			Keywords:  cfg.KeywordsPerPlace,
			Retry:     retry,
		}, logger)

	go superviseQueue(ctx, updateQueue, mets, cfg.HeartbeatInterval, logger)

	handlers := &webservices.Handlers{
		Controller: controller,
		Queue:      updateQueue,
		Worker:     worker,
		Embedding:  embedRunner,
		Checkpoint: store,
		Queries:    queries,
		Info: webservices.ServerInfo{
			TotalWorkers:     cfg.TotalWorkers,
			ThreadsPerWorker: cfg.ThreadsPerWorker,
			ChunkSize:        cfg.ChunkSize,
		},
		Metrics: mets.Handler(),
		BaseCtx: ctx,
	}
	engine := router.New(router.NewLogHarbourAdapter(logger))
	handlers.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: engine,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	logger.Info().LogActivity("Batch server listening", map[string]any{
		"port":          cfg.HTTPPort,
		"total_workers": cfg.TotalWorkers,
		"batch":         cfg.BatchName,
	})

	if cfg.CheckpointEnabled && cfg.CheckpointAutoResume {
		resumeInterrupted(ctx, store, controller, logger)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().LogActivity("Shutting down", map[string]any{
		"grace_seconds": int(cfg.ShutdownGracePeriod.Seconds()),
	})
	controller.StopAll()
	embedRunner.Stop()
	worker.Stop()

	graceCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := controller.Wait(graceCtx); err != nil {
		logger.Warn().LogActivity("Engines did not drain within grace period", nil)
	}
	embedRunner.Wait()
	if err := srv.Shutdown(graceCtx); err != nil {
		logger.Warn().LogActivity("HTTP shutdown incomplete", map[string]any{"error": err.Error()})
	}
	return nil
}

// migrate runs tern against one connection checked out of the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()
	if err := pg.MigrateDatabase(ctx, conn.Conn()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// superviseQueue reclaims expired in-flight tasks and refreshes the queue
// gauges on a heartbeat cadence.
func superviseQueue(ctx context.Context, q *queue.Queue, mets *metrics.Metrics, interval time.Duration, logger *logharbour.Logger) {
	ticker := time.NewTicker(2 * interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.RecoverExpired(ctx, interval); err != nil {
				logger.Error(err).LogActivity("Recovery pass failed", nil)
			} else if n > 0 {
				logger.Warn().LogActivity("Reclaimed orphaned tasks", map[string]any{"count": n})
			}
			if stats, err := q.Stats(ctx); err == nil {
				mets.ObserveQueue(stats)
			}
		}
	}
}

// resumeInterrupted restarts the region sweep when a prior run left
// checkpoints behind.
func resumeInterrupted(ctx context.Context, store *checkpoint.Store, controller *jobs.Controller, logger *logharbour.Logger) {
	interrupted, err := store.HasInterrupted(ctx)
	if err != nil {
		logger.Error(err).LogActivity("Interrupted-run check failed", nil)
		return
	}
	if !interrupted {
		return
	}
	execID, err := controller.Start(ctx, jobs.SweepJobName, 0)
	if err != nil {
		logger.Error(err).LogActivity("Auto-resume failed", nil)
		return
	}
	logger.Info().LogActivity("Resuming interrupted region sweep", map[string]any{
		"execution_id": execID,
	})
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
