// Package partition divides the place table among workers without any
// coordination service. Worker w of N owns exactly the places whose id
// satisfies id mod N = w, so the worker sets are disjoint and cover every
// place.
package partition

import (
	"context"
	"io"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

// Owns reports whether the given worker owns the place id under the
// modulo assignment.
func Owns(id int64, workerID, totalWorkers int) bool {
	if totalWorkers <= 0 {
		return false
	}
	return id%int64(totalWorkers) == int64(workerID)
}

// Lister is the slice of the data layer the reader needs.
type Lister interface {
	ListPendingPlaceIDs(ctx context.Context, arg batchsqlc.ListPendingPlaceIDsParams) ([]int64, error)
}

// PlaceIDReader streams the pending place ids owned by one worker in
// ascending id order. It pages with a keyset cursor (id > last) rather
// than OFFSET, so rows that change status mid-run never shift the page
// window.
type PlaceIDReader struct {
	q            Lister
	workerID     int
	totalWorkers int
	pageSize     int32

	afterID int64
	page    []int64
	pos     int
	done    bool
}

// NewPlaceIDReader validates the worker assignment up front. A worker id
// outside [0, totalWorkers) is a deployment mistake and fails the job
// before any row is read.
func NewPlaceIDReader(q Lister, workerID, totalWorkers int, pageSize int32) (*PlaceIDReader, error) {
	if totalWorkers <= 0 {
		return nil, pipeline.ConfigErr("partition: total workers must be positive, got %d", totalWorkers)
	}
	if workerID < 0 || workerID >= totalWorkers {
		return nil, pipeline.ConfigErr("partition: worker id %d out of range [0, %d)", workerID, totalWorkers)
	}
	if pageSize <= 0 {
		return nil, pipeline.ConfigErr("partition: page size must be positive, got %d", pageSize)
	}
	return &PlaceIDReader{
		q:            q,
		workerID:     workerID,
		totalWorkers: totalWorkers,
		pageSize:     pageSize,
	}, nil
}

// Read returns the next owned pending place id, or io.EOF when the
// partition is exhausted.
func (r *PlaceIDReader) Read(ctx context.Context) (int64, error) {
	for r.pos >= len(r.page) {
		if r.done {
			return 0, io.EOF
		}
		ids, err := r.q.ListPendingPlaceIDs(ctx, batchsqlc.ListPendingPlaceIDsParams{
			AfterID:      r.afterID,
			TotalWorkers: int64(r.totalWorkers),
			WorkerID:     int64(r.workerID),
			PageSize:     r.pageSize,
		})
		if err != nil {
			return 0, pipeline.TransientErr(err)
		}
		if len(ids) < int(r.pageSize) {
			r.done = true
		}
		if len(ids) == 0 {
			return 0, io.EOF
		}
		r.page = ids
		r.pos = 0
		r.afterID = ids[len(ids)-1]
	}
	id := r.page[r.pos]
	r.pos++
	return id, nil
}

var _ pipeline.Reader[int64] = (*PlaceIDReader)(nil)
