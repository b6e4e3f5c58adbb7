// Package embedding runs the sequential embedding job: one vector per
// keyword for every place whose crawl finished. The job is deliberately
// single-consumer because the embedding service is rate-limited; there is
// no worker partitioning and the chunk size is kept small.
package embedding

import (
	"context"
	"io"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// EmbeddedPlace carries the vectors produced for one place, in keyword
// order, from the processor to the writer.
type EmbeddedPlace struct {
	PlaceID  int64
	Keywords []string
	Vectors  [][]float32
}

// Reader streams embeddable places in ascending id order with a keyset
// cursor. Eligibility is crawl COMPLETED and embed PENDING.
type Reader struct {
	q        batchsqlc.Querier
	pageSize int32

	afterID int64
	page    []batchsqlc.ListEmbeddablePlacesRow
	pos     int
	done    bool
}

func NewReader(q batchsqlc.Querier, pageSize int32) *Reader {
	return &Reader{q: q, pageSize: pageSize}
}

func (r *Reader) Read(ctx context.Context) (batchsqlc.ListEmbeddablePlacesRow, error) {
	for r.pos >= len(r.page) {
		if r.done {
			return batchsqlc.ListEmbeddablePlacesRow{}, io.EOF
		}
		rows, err := r.q.ListEmbeddablePlaces(ctx, batchsqlc.ListEmbeddablePlacesParams{
			AfterID:  r.afterID,
			PageSize: r.pageSize,
		})
		if err != nil {
			return batchsqlc.ListEmbeddablePlacesRow{}, pipeline.TransientErr(err)
		}
		if len(rows) < int(r.pageSize) {
			r.done = true
		}
		if len(rows) == 0 {
			return batchsqlc.ListEmbeddablePlacesRow{}, io.EOF
		}
		r.page = rows
		r.pos = 0
		r.afterID = rows[len(rows)-1].ID
	}
	row := r.page[r.pos]
	r.pos++
	return row, nil
}

var _ pipeline.Reader[batchsqlc.ListEmbeddablePlacesRow] = (*Reader)(nil)

// Embedder is the slice of the embedding client the processor needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Health(ctx context.Context) error
}

// Processor groups a place's keywords into a single embedding call. Places
// without keywords pass through with no vectors; the writer still marks
// them COMPLETED so they leave the eligible set.
type Processor struct {
	embedder         Embedder
	keywordsPerPlace int
}

func NewProcessor(embedder Embedder, keywordsPerPlace int) *Processor {
	return &Processor{embedder: embedder, keywordsPerPlace: keywordsPerPlace}
}

func (p *Processor) Process(ctx context.Context, row batchsqlc.ListEmbeddablePlacesRow) (EmbeddedPlace, error) {
	keywords := row.Keywords
	if len(keywords) > p.keywordsPerPlace {
		keywords = keywords[:p.keywordsPerPlace]
	}
	out := EmbeddedPlace{PlaceID: row.ID, Keywords: keywords}
	if len(keywords) == 0 {
		return out, nil
	}
	vectors, err := p.embedder.Embed(ctx, keywords)
	if err != nil {
		return EmbeddedPlace{}, err
	}
	out.Vectors = vectors
	return out, nil
}

var _ pipeline.Processor[batchsqlc.ListEmbeddablePlacesRow, EmbeddedPlace] = (*Processor)(nil)
