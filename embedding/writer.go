package embedding

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// TxBeginner is satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Writer persists a chunk of embedded places. All vectors of a place and
// its COMPLETED status land in the same transaction, so a place is never
// half-embedded: either every vector is visible or the place stays
// PENDING.
type Writer struct {
	db TxBeginner
	q  *batchsqlc.Queries
}

func NewWriter(db TxBeginner, q *batchsqlc.Queries) *Writer {
	return &Writer{db: db, q: q}
}

func (w *Writer) Write(ctx context.Context, chunk []EmbeddedPlace) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return pipeline.ResourceErr(fmt.Errorf("begin embedding chunk: %w", err))
	}
	defer tx.Rollback(ctx)

	qtx := w.q.WithTx(tx)
	for _, place := range chunk {
		for ord, vec := range place.Vectors {
			if err := qtx.InsertPlaceEmbedding(ctx, batchsqlc.InsertPlaceEmbeddingParams{
				PlaceID:        place.PlaceID,
				KeywordOrdinal: int32(ord),
				Keyword:        place.Keywords[ord],
				Vector:         vec,
			}); err != nil {
				return pipeline.TransientErr(fmt.Errorf("insert embedding for place %d: %w", place.PlaceID, err))
			}
		}
		if err := qtx.UpdatePlaceEmbedStatus(ctx, batchsqlc.UpdatePlaceEmbedStatusParams{
			ID:          place.PlaceID,
			EmbedStatus: batchsqlc.EmbedStatusCOMPLETED,
		}); err != nil {
			return pipeline.TransientErr(fmt.Errorf("mark place %d embedded: %w", place.PlaceID, err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return pipeline.TransientErr(fmt.Errorf("commit embedding chunk: %w", err))
	}
	return nil
}

var _ pipeline.Writer[EmbeddedPlace] = (*Writer)(nil)
