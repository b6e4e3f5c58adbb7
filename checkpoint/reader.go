package checkpoint

import (
	"context"
	"io"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// RegionReader feeds claimed checkpoints into a pipeline step. Each Read
// claims one PENDING region; the stream ends when the store runs dry.
type RegionReader struct {
	store      *Store
	regionType string
}

func NewRegionReader(store *Store, regionType string) *RegionReader {
	return &RegionReader{store: store, regionType: regionType}
}

func (r *RegionReader) Read(ctx context.Context) (batchsqlc.BatchCheckpoint, error) {
	cp, err := r.store.NextPending(ctx, r.regionType)
	if err != nil {
		if err == ErrNoPending {
			return batchsqlc.BatchCheckpoint{}, io.EOF
		}
		return batchsqlc.BatchCheckpoint{}, pipeline.TransientErr(err)
	}
	return cp, nil
}

var _ pipeline.Reader[batchsqlc.BatchCheckpoint] = (*RegionReader)(nil)
