package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/clients"
	"github.com/sjsh1623/MoheBatch-sub001/partition"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// CrawlJobName is the registry key of the partitioned crawl job.
const CrawlJobName = "place-crawl"

// TxBeginner is satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PlaceCrawler is the slice of the crawler client the processor needs.
type PlaceCrawler interface {
	Crawl(ctx context.Context, searchQuery, placeName string) (clients.PlaceData, error)
}

// CrawledPlace is the processor output for one place.
type CrawledPlace struct {
	ID   int64
	Data clients.PlaceData
}

// CrawlConfig sizes one crawl engine. Threads is the per-worker fan-out
// of the crawler calls inside a chunk.
type CrawlConfig struct {
	TotalWorkers int
	Threads      int
	PageSize     int32
	ChunkSize    int
	SkipLimit    int
	Retry        pipeline.RetryPolicy
}

// CrawlProcessor enriches one place through the crawler service. A place
// the crawler reports gone is marked NOT_FOUND here, then surfaced as a
// not-found error so the engine treats the item as complete.
type CrawlProcessor struct {
	q       batchsqlc.Querier
	crawler PlaceCrawler
}

func NewCrawlProcessor(q batchsqlc.Querier, crawler PlaceCrawler) *CrawlProcessor {
	return &CrawlProcessor{q: q, crawler: crawler}
}

func (p *CrawlProcessor) Process(ctx context.Context, id int64) (CrawledPlace, error) {
	place, err := p.q.GetPlaceByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Row deleted between the id scan and now.
			return CrawledPlace{}, pipeline.ErrDropItem
		}
		return CrawledPlace{}, pipeline.TransientErr(fmt.Errorf("load place %d: %w", id, err))
	}

	data, err := p.crawler.Crawl(ctx, searchQuery(place), place.Name)
	if err != nil {
		if pipeline.Classify(err) == pipeline.KindNotFound {
			if uerr := p.q.UpdatePlaceCrawlStatus(ctx, batchsqlc.UpdatePlaceCrawlStatusParams{
				ID:          id,
				CrawlStatus: batchsqlc.CrawlStatusNOTFOUND,
			}); uerr != nil {
				return CrawledPlace{}, pipeline.TransientErr(fmt.Errorf("mark place %d not found: %w", id, uerr))
			}
		}
		return CrawledPlace{}, err
	}
	return CrawledPlace{ID: id, Data: data}, nil
}

// searchQuery builds the crawler query from what the row already knows.
func searchQuery(place batchsqlc.Place) string {
	parts := []string{place.Name}
	if place.Address.Valid && place.Address.String != "" {
		parts = append(parts, place.Address.String)
	}
	return strings.Join(parts, " ")
}

var _ pipeline.Processor[int64, CrawledPlace] = (*CrawlProcessor)(nil)

// CrawlWriter commits a chunk of crawled places in one transaction.
type CrawlWriter struct {
	db TxBeginner
	q  *batchsqlc.Queries
}

func NewCrawlWriter(db TxBeginner, q *batchsqlc.Queries) *CrawlWriter {
	return &CrawlWriter{db: db, q: q}
}

func (w *CrawlWriter) Write(ctx context.Context, chunk []CrawledPlace) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return pipeline.ResourceErr(fmt.Errorf("begin crawl chunk: %w", err))
	}
	defer tx.Rollback(ctx)

	qtx := w.q.WithTx(tx)
	for _, place := range chunk {
		if err := qtx.UpsertCrawledPlace(ctx, batchsqlc.UpsertCrawledPlaceParams{
			ID:          place.ID,
			Name:        place.Data.Name,
			Category:    textOrNull(place.Data.Category),
			Address:     textOrNull(place.Data.Address),
			Description: textOrNull(place.Data.Description),
			Keywords:    place.Data.Keywords,
			CrawlStatus: batchsqlc.CrawlStatusCOMPLETED,
		}); err != nil {
			return pipeline.TransientErr(fmt.Errorf("upsert place %d: %w", place.ID, err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return pipeline.TransientErr(fmt.Errorf("commit crawl chunk: %w", err))
	}
	return nil
}

var _ pipeline.Writer[CrawledPlace] = (*CrawlWriter)(nil)

// NewCrawlRunner assembles the partitioned crawl job: a keyset reader over
// the worker's id partition, the crawler processor and the transactional
// writer.
func NewCrawlRunner(queries batchsqlc.Querier, writer pipeline.Writer[CrawledPlace], crawler PlaceCrawler, cfg CrawlConfig, logger *logharbour.Logger) StepRunner {
	return func(ctx context.Context, workerID int, stopRequested func() bool) (pipeline.Result, error) {
		reader, err := partition.NewPlaceIDReader(queries, workerID, cfg.TotalWorkers, cfg.PageSize)
		if err != nil {
			return pipeline.Result{Status: pipeline.StatusFailed}, err
		}
		step := &pipeline.Step[int64, CrawledPlace]{
			Name:          fmt.Sprintf("%s-w%d", CrawlJobName, workerID),
			Reader:        reader,
			Processor:     NewCrawlProcessor(queries, crawler),
			Writer:        writer,
			ChunkSize:     cfg.ChunkSize,
			SkipLimit:     cfg.SkipLimit,
			Retry:         cfg.Retry,
			Concurrency:   cfg.Threads,
			Logger:        logger,
			StopRequested: stopRequested,
			OnSkip: func(id int64, cause error) {
				// Retries exhausted: record the terminal status so the
				// place leaves the pending partition.
				if err := queries.UpdatePlaceCrawlStatus(ctx, batchsqlc.UpdatePlaceCrawlStatusParams{
					ID:          id,
					CrawlStatus: batchsqlc.CrawlStatusFAILED,
				}); err != nil && logger != nil {
					logger.Error(err).LogActivity("Failed to mark place crawl FAILED", map[string]any{
						"place_id": id,
					})
				}
			},
		}
		return step.Run(ctx)
	}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
