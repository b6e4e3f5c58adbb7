package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjsh1623/MoheBatch-sub001/clients"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

type fakeQuerier struct {
	batchsqlc.Querier

	mu       sync.Mutex
	places   map[int64]batchsqlc.Place
	statuses map[int64]batchsqlc.CrawlStatus
}

func newFakeQuerier(places ...batchsqlc.Place) *fakeQuerier {
	f := &fakeQuerier{
		places:   make(map[int64]batchsqlc.Place),
		statuses: make(map[int64]batchsqlc.CrawlStatus),
	}
	for _, p := range places {
		f.places[p.ID] = p
	}
	return f
}

func (f *fakeQuerier) GetPlaceByID(ctx context.Context, id int64) (batchsqlc.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.places[id]
	if !ok {
		return batchsqlc.Place{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeQuerier) UpdatePlaceCrawlStatus(ctx context.Context, arg batchsqlc.UpdatePlaceCrawlStatusParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[arg.ID] = arg.CrawlStatus
	return nil
}

func (f *fakeQuerier) ListPendingPlaceIDs(ctx context.Context, arg batchsqlc.ListPendingPlaceIDsParams) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := int64(1); id <= 1000; id++ {
		p, ok := f.places[id]
		if !ok || id <= arg.AfterID {
			continue
		}
		if p.CrawlStatus != batchsqlc.CrawlStatusPENDING {
			continue
		}
		if id%arg.TotalWorkers != arg.WorkerID {
			continue
		}
		out = append(out, id)
		if len(out) == int(arg.PageSize) {
			break
		}
	}
	return out, nil
}

func (f *fakeQuerier) status(id int64) batchsqlc.CrawlStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type fakeCrawler struct {
	mu      sync.Mutex
	results map[string]clients.PlaceData
	errs    map[string]error
	queries []string
}

func (f *fakeCrawler) Crawl(ctx context.Context, searchQuery, placeName string) (clients.PlaceData, error) {
	f.mu.Lock()
	f.queries = append(f.queries, searchQuery)
	f.mu.Unlock()
	if err, ok := f.errs[placeName]; ok {
		return clients.PlaceData{}, err
	}
	if data, ok := f.results[placeName]; ok {
		return data, nil
	}
	return clients.PlaceData{Name: placeName}, nil
}

type memWriter struct {
	mu     sync.Mutex
	places []CrawledPlace
}

func (w *memWriter) Write(ctx context.Context, chunk []CrawledPlace) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.places = append(w.places, chunk...)
	return nil
}

func pendingPlace(id int64, name string) batchsqlc.Place {
	return batchsqlc.Place{ID: id, Name: name, CrawlStatus: batchsqlc.CrawlStatusPENDING}
}

func fastRetry() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestCrawlProcessorEnrichesPlace(t *testing.T) {
	q := newFakeQuerier(batchsqlc.Place{
		ID:          5,
		Name:        "Cafe Blue",
		Address:     pgtype.Text{String: "12 Mapo-daero", Valid: true},
		CrawlStatus: batchsqlc.CrawlStatusPENDING,
	})
	crawler := &fakeCrawler{results: map[string]clients.PlaceData{
		"Cafe Blue": {Name: "Cafe Blue", Category: "cafe", Keywords: []string{"quiet"}},
	}}
	p := NewCrawlProcessor(q, crawler)

	out, err := p.Process(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.ID)
	assert.Equal(t, "cafe", out.Data.Category)
	assert.Equal(t, []string{"Cafe Blue 12 Mapo-daero"}, crawler.queries,
		"search query combines name and address")
}

func TestCrawlProcessorDropsDeletedRows(t *testing.T) {
	p := NewCrawlProcessor(newFakeQuerier(), &fakeCrawler{})
	_, err := p.Process(context.Background(), 404)
	assert.ErrorIs(t, err, pipeline.ErrDropItem)
}

func TestCrawlProcessorMarksNotFound(t *testing.T) {
	q := newFakeQuerier(pendingPlace(5, "Gone Cafe"))
	crawler := &fakeCrawler{errs: map[string]error{
		"Gone Cafe": pipeline.NotFoundErr(errors.New("place closed")),
	}}
	p := NewCrawlProcessor(q, crawler)

	_, err := p.Process(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, pipeline.KindNotFound, pipeline.Classify(err))
	assert.Equal(t, batchsqlc.CrawlStatusNOTFOUND, q.status(5))
}

// Full crawl run for worker 1 of 3: only its partition is read, crawled
// places are written, a place with persistent failures is marked FAILED.
func TestCrawlRunnerProcessesOwnPartition(t *testing.T) {
	q := newFakeQuerier(
		pendingPlace(1, "p1"), pendingPlace(2, "p2"), pendingPlace(3, "p3"),
		pendingPlace(4, "p4"), pendingPlace(5, "p5"), pendingPlace(6, "p6"),
		pendingPlace(7, "p7"), pendingPlace(8, "p8"), pendingPlace(9, "p9"),
	)
	crawler := &fakeCrawler{errs: map[string]error{
		"p4": pipeline.TransientErr(errors.New("crawler 502")),
	}}
	w := &memWriter{}

	runner := NewCrawlRunner(q, w, crawler, CrawlConfig{
		TotalWorkers: 3,
		PageSize:     2,
		ChunkSize:    2,
		SkipLimit:    5,
		Retry:        fastRetry(),
	}, nil)

	res, err := runner(context.Background(), 1, func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Read, "worker 1 owns ids 1, 4, 7")
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Skipped)

	var ids []int64
	for _, p := range w.places {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{1, 7}, ids)
	assert.Equal(t, batchsqlc.CrawlStatusFAILED, q.status(4),
		"exhausted retries mark the place FAILED")
}

func TestCrawlRunnerRejectsBadWorkerAssignment(t *testing.T) {
	runner := NewCrawlRunner(newFakeQuerier(), &memWriter{}, &fakeCrawler{}, CrawlConfig{
		TotalWorkers: 3,
		PageSize:     10,
		ChunkSize:    10,
		SkipLimit:    5,
		Retry:        fastRetry(),
	}, nil)

	res, err := runner(context.Background(), 3, func() bool { return false })
	require.Error(t, err)
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.Equal(t, pipeline.KindConfig, pipeline.Classify(err))
}
