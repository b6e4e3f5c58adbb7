package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
)

// ImageStorer is the slice of the image-processor client the handler
// needs.
type ImageStorer interface {
	Store(ctx context.Context, url, fileName string) (string, error)
}

// NewUpdateHandler builds the queue.Handler that executes one enrichment
// task: re-crawl the place when menus or reviews are requested, push its
// images through the image processor when images are requested. A place
// the crawler reports gone is marked NOT_FOUND and the task acks; other
// errors bubble up so the queue's retry and dead-letter policy applies.
func NewUpdateHandler(q batchsqlc.Querier, writer pipeline.Writer[CrawledPlace], crawler PlaceCrawler, images ImageStorer, logger *logharbour.Logger) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		place, err := q.GetPlaceByID(ctx, task.PlaceID)
		if err != nil {
			if err == pgx.ErrNoRows {
				// Place deleted since the task was queued; nothing to do.
				return nil
			}
			return fmt.Errorf("load place %d: %w", task.PlaceID, err)
		}

		if task.Menus || task.Reviews {
			data, err := crawler.Crawl(ctx, searchQuery(place), place.Name)
			if err != nil {
				if pipeline.Classify(err) == pipeline.KindNotFound {
					return q.UpdatePlaceCrawlStatus(ctx, batchsqlc.UpdatePlaceCrawlStatusParams{
						ID:          task.PlaceID,
						CrawlStatus: batchsqlc.CrawlStatusNOTFOUND,
					})
				}
				return err
			}
			if err := writer.Write(ctx, []CrawledPlace{{ID: task.PlaceID, Data: data}}); err != nil {
				return err
			}
			if task.Images {
				storeImages(ctx, images, task.PlaceID, data.ImageURLs, logger)
			}
			return nil
		}

		if task.Images {
			// Image URLs are not persisted, so an image-only task still
			// asks the crawler for the current set.
			data, err := crawler.Crawl(ctx, searchQuery(place), place.Name)
			if err != nil {
				return err
			}
			storeImages(ctx, images, task.PlaceID, data.ImageURLs, logger)
		}
		return nil
	}
}

func storeImages(ctx context.Context, images ImageStorer, placeID int64, urls []string, logger *logharbour.Logger) {
	for i, url := range urls {
		name := fmt.Sprintf("place-%d-%d.jpg", placeID, i)
		if _, err := images.Store(ctx, url, name); err != nil && logger != nil {
			logger.Warn().LogActivity("Image store failed", map[string]any{
				"place_id": placeID,
				"url":      url,
				"error":    err.Error(),
			})
		}
	}
}
