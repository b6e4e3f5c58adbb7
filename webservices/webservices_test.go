package webservices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjsh1623/MoheBatch-sub001/checkpoint"
	"github.com/sjsh1623/MoheBatch-sub001/embedding"
	"github.com/sjsh1623/MoheBatch-sub001/jobs"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
	"github.com/sjsh1623/MoheBatch-sub001/router"
)

type fakeQuerier struct {
	batchsqlc.Querier

	crawledIDs []int64
	counts     batchsqlc.GetEmbeddingCountsRow
	progress   batchsqlc.GetCheckpointProgressRow
	latestExec *batchsqlc.BatchExecutionMetadata
}

func (f *fakeQuerier) ListCrawledPlaceIDs(ctx context.Context, arg batchsqlc.ListCrawledPlaceIDsParams) ([]int64, error) {
	var out []int64
	for _, id := range f.crawledIDs {
		if id > arg.AfterID {
			out = append(out, id)
		}
		if len(out) == int(arg.PageSize) {
			break
		}
	}
	return out, nil
}

func (f *fakeQuerier) GetEmbeddingCounts(ctx context.Context) (batchsqlc.GetEmbeddingCountsRow, error) {
	return f.counts, nil
}

func (f *fakeQuerier) ListEmbeddablePlaces(ctx context.Context, arg batchsqlc.ListEmbeddablePlacesParams) ([]batchsqlc.ListEmbeddablePlacesRow, error) {
	return nil, nil
}

func (f *fakeQuerier) GetCheckpointProgress(ctx context.Context, batchName string) (batchsqlc.GetCheckpointProgressRow, error) {
	return f.progress, nil
}

func (f *fakeQuerier) ResetFailedCheckpoints(ctx context.Context, batchName string) (int64, error) {
	n := f.progress.Failed
	f.progress.Pending += n
	f.progress.Failed = 0
	return n, nil
}

func (f *fakeQuerier) GetLatestExecution(ctx context.Context, batchName string) (batchsqlc.BatchExecutionMetadata, error) {
	if f.latestExec == nil {
		return batchsqlc.BatchExecutionMetadata{}, pgx.ErrNoRows
	}
	return *f.latestExec, nil
}

type fakeEmbedder struct {
	healthErr error
}

func (f *fakeEmbedder) Embed(ctx context.Context, keywords []string) ([][]float32, error) {
	return make([][]float32, len(keywords)), nil
}

func (f *fakeEmbedder) Health(ctx context.Context) error { return f.healthErr }

type nopWriter struct{}

func (nopWriter) Write(ctx context.Context, chunk []embedding.EmbeddedPlace) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	engine  *gin.Engine
	querier *fakeQuerier
	queue   *queue.Queue
	ctrl    *jobs.Controller
}

func newFixture(t *testing.T, healthErr error) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := queue.New(rdb, time.Minute, time.Second, 3, nil)
	worker := queue.NewWorker("test-worker", q, func(ctx context.Context, task queue.Task) error {
		return nil
	}, nil)

	ctrl := jobs.NewController(3, nil)
	ctrl.Register(jobs.CrawlJobName, func(ctx context.Context, workerID int, stopRequested func() bool) (pipeline.Result, error) {
		for !stopRequested() && ctx.Err() == nil {
			time.Sleep(time.Millisecond)
		}
		return pipeline.Result{Status: pipeline.StatusStopped}, nil
	})

	querier := &fakeQuerier{
		crawledIDs: []int64{1, 2, 3},
		counts:     batchsqlc.GetEmbeddingCountsRow{Eligible: 5, Completed: 2, Failed: 1},
		progress:   batchsqlc.GetCheckpointProgressRow{Total: 4, Pending: 1, Completed: 2, Failed: 1},
	}
	runner := embedding.NewRunner(querier, nopWriter{}, &fakeEmbedder{healthErr: healthErr},
		embedding.Config{ChunkSize: 1, PageSize: 10, SkipLimit: 5,
			Retry: pipeline.RetryPolicy{MaxAttempts: 1, Initial: time.Millisecond, Max: time.Millisecond}}, nil)

	h := &Handlers{
		Controller: ctrl,
		Queue:      q,
		Worker:     worker,
		Embedding:  runner,
		Checkpoint: checkpoint.NewStore(querier, "test-batch", nil),
		Queries:    querier,
		Info:       ServerInfo{TotalWorkers: 3, ThreadsPerWorker: 1, ChunkSize: 10},
		BaseCtx:    context.Background(),
	}
	engine := router.New(nil)
	h.RegisterRoutes(engine)
	t.Cleanup(func() { ctrl.StopAll(); worker.Stop() })
	return &fixture{engine: engine, querier: querier, queue: q, ctrl: ctrl}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec.Code, env
}

func TestHealthReportsRunningWorkers(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"running_workers":0`)
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/start/1", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	// Second start on the same slot conflicts.
	require.Eventually(t, func() bool {
		return f.ctrl.Status(jobs.CrawlJobName, 1).Status == jobs.StatusStarted
	}, 3*time.Second, 2*time.Millisecond)
	code, env = f.do(t, "POST", "/batch/start/1", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_running", env.Error.Code)

	code, env = f.do(t, "GET", "/batch/status/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"STARTED"`)

	code, _ = f.do(t, "POST", "/batch/stop/1", nil)
	require.Equal(t, http.StatusOK, code)

	// Stopping an idle slot conflicts.
	code, env = f.do(t, "POST", "/batch/stop/2", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_running", env.Error.Code)
}

func TestBatchStartRejectsOutOfRangeWorker(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "POST", "/batch/start/9", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "config_error", env.Error.Code)

	code, env = f.do(t, "POST", "/batch/start/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestBatchConfigEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "GET", "/batch/config", nil)
	require.Equal(t, http.StatusOK, code)
	var info ServerInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, ServerInfo{TotalWorkers: 3, ThreadsPerWorker: 1, ChunkSize: 10}, info)
}

func TestQueuePushAndStats(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/queue/push/42?menus=true&priority=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"task_id"`)

	code, env = f.do(t, "GET", "/batch/queue/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats queue.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Priority)
	assert.Equal(t, int64(1), stats.Pushed)
}

func TestQueuePushRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/queue/push/nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	code, env = f.do(t, "POST", "/batch/queue/push/42?priority=7", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestQueuePushAllEnqueuesEveryCrawledPlace(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "POST", "/batch/queue/push-all", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"pushed":3`)
}

func TestQueuePushBatchValidation(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/queue/push-batch", map[string]any{"place_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, env = f.do(t, "POST", "/batch/queue/push-batch", map[string]any{
		"place_ids": []int64{7, 8},
		"reviews":   true,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"pushed":2`)
}

func TestQueueTaskNotFound(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "GET", "/batch/queue/task/no-such-task", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestQueueWorkerLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "GET", "/batch/queue/worker/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"running":false`)

	code, _ = f.do(t, "POST", "/batch/queue/worker/start", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = f.do(t, "POST", "/batch/queue/worker/start", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_running", env.Error.Code)

	code, _ = f.do(t, "POST", "/batch/queue/worker/stop", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestQueueClearEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = f.do(t, "POST", "/batch/queue/push/1", nil)

	code, env := f.do(t, "DELETE", "/batch/queue/clear", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	code, env = f.do(t, "GET", "/batch/queue/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats queue.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Priority)
}

func TestEmbeddingStatusIncludesPlaceCounts(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "GET", "/batch/embedding/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"eligible":5`)
	assert.Contains(t, string(env.Data), `"NOT_STARTED"`)
}

func TestEmbeddingHealthDown(t *testing.T) {
	f := newFixture(t, errors.New("connection refused"))

	code, env := f.do(t, "GET", "/batch/embedding/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service_unavailable", env.Error.Code)

	code, env = f.do(t, "POST", "/batch/embedding/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service_unavailable", env.Error.Code)
}

func TestEmbeddingStartAndStop(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/embedding/start", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	// An empty eligible set completes immediately; stop is a no-op then.
	code, _ = f.do(t, "POST", "/batch/embedding/stop", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestCheckpointProgressEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.querier.latestExec = &batchsqlc.BatchExecutionMetadata{
		ExecutionID:      uuid.New(),
		BatchName:        "test-batch",
		Status:           batchsqlc.ExecutionStatusRUNNING,
		TotalRegions:     4,
		CompletedRegions: 2,
		FailedRegions:    1,
	}

	code, env := f.do(t, "GET", "/batch/checkpoint/progress", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var data struct {
		Total     int64   `json:"total"`
		Pending   int64   `json:"pending"`
		Completed int64   `json:"completed"`
		Failed    int64   `json:"failed"`
		Percent   float64 `json:"percent"`
		Execution *struct {
			Status string `json:"status"`
		} `json:"execution"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(4), data.Total)
	assert.Equal(t, int64(2), data.Completed)
	assert.InDelta(t, 50.0, data.Percent, 0.001)
	require.NotNil(t, data.Execution)
	assert.Equal(t, "RUNNING", data.Execution.Status)
}

func TestCheckpointProgressOmitsExecutionWhenNeverRun(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, "GET", "/batch/checkpoint/progress", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), `"execution"`)
}

func TestCheckpointResetFailedEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, "POST", "/batch/checkpoint/reset-failed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"reset":1`)

	// Second reset finds nothing left to requeue.
	code, env = f.do(t, "POST", "/batch/checkpoint/reset-failed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"reset":0`)
}
