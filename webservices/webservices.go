// Package webservices exposes the batch control surface over HTTP. Every
// handler replies with the wscutils envelope; handlers only orchestrate,
// the domain packages own the behavior.
package webservices

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjsh1623/MoheBatch-sub001/checkpoint"
	"github.com/sjsh1623/MoheBatch-sub001/embedding"
	"github.com/sjsh1623/MoheBatch-sub001/jobs"
	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
	"github.com/sjsh1623/MoheBatch-sub001/wscutils"
)

// ServerInfo is the static configuration reported by GET /batch/config.
type ServerInfo struct {
	TotalWorkers     int `json:"total_workers"`
	ThreadsPerWorker int `json:"threads_per_worker"`
	ChunkSize        int `json:"chunk_size"`
}

// Handlers holds every dependency of the control surface.
type Handlers struct {
	Controller *jobs.Controller
	Queue      *queue.Queue
	Worker     *queue.Worker
	Embedding  *embedding.Runner
	Checkpoint *checkpoint.Store
	Queries    batchsqlc.Querier
	Info       ServerInfo
	Metrics    http.Handler

	// BaseCtx parents the queue worker's consumer loop so a server
	// shutdown cancels it.
	BaseCtx context.Context
}

// RegisterRoutes mounts every endpoint on the engine.
func (h *Handlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	batch := r.Group("/batch")
	{
		batch.GET("/status", h.batchStatusAll)
		batch.GET("/status/:worker_id", h.batchStatus)
		batch.POST("/start/:worker_id", h.batchStart)
		batch.POST("/start-all", h.batchStartAll)
		batch.POST("/stop/:worker_id", h.batchStop)
		batch.POST("/stop-all", h.batchStopAll)
		batch.GET("/config", h.batchConfig)
		batch.GET("/current-jobs", h.currentJobs)
	}

	q := r.Group("/batch/queue")
	{
		q.POST("/push/:place_id", h.queuePush)
		q.POST("/push-all", h.queuePushAll)
		q.POST("/push-batch", h.queuePushBatch)
		q.GET("/stats", h.queueStats)
		q.GET("/workers", h.queueWorkers)
		q.GET("/failed", h.queueFailed)
		q.GET("/task/:task_id", h.queueTask)
		q.POST("/worker/start", h.workerStart)
		q.POST("/worker/stop", h.workerStop)
		q.GET("/worker/status", h.workerStatus)
		q.POST("/retry-failed", h.queueRetryFailed)
		q.DELETE("/clear", h.queueClear)
		q.DELETE("/clear-completed", h.queueClearCompleted)
		q.DELETE("/clear-failed", h.queueClearFailed)
	}

	emb := r.Group("/batch/embedding")
	{
		emb.POST("/start", h.embeddingStart)
		emb.POST("/stop", h.embeddingStop)
		emb.GET("/status", h.embeddingStatus)
		emb.GET("/health", h.embeddingHealth)
	}

	cp := r.Group("/batch/checkpoint")
	{
		cp.GET("/progress", h.checkpointProgress)
		cp.POST("/reset-failed", h.checkpointResetFailed)
	}
}

func (h *Handlers) health(c *gin.Context) {
	wscutils.SendSuccessResponse(c, gin.H{
		"status":          "ok",
		"running_workers": h.Controller.RunningCount(),
	})
}
