package webservices

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjsh1623/MoheBatch-sub001/pg/batchsqlc"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
	"github.com/sjsh1623/MoheBatch-sub001/wscutils"
)

// pushAllPageSize bounds each keyset page while collecting ids for
// push-all.
const pushAllPageSize = 500

// opsFromQuery reads the menus/images/reviews flags. A bare flag counts as
// true; when no flag is present at all the task refreshes everything.
func opsFromQuery(c *gin.Context) queue.Ops {
	var ops queue.Ops
	var any bool
	read := func(name string, dst *bool) {
		v, ok := c.GetQuery(name)
		if !ok {
			return
		}
		any = true
		*dst = v == "" || v == "1" || v == "true"
	}
	read("menus", &ops.Menus)
	read("images", &ops.Images)
	read("reviews", &ops.Reviews)
	if !any {
		return queue.Ops{Menus: true, Images: true, Reviews: true}
	}
	return ops
}

func (h *Handlers) queuePush(c *gin.Context) {
	placeID, err := strconv.ParseInt(c.Param("place_id"), 10, 64)
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.ErrcodeInvalidRequest,
			"place_id must be an integer")
		return
	}
	priority, err := strconv.Atoi(c.DefaultQuery("priority", "0"))
	if err != nil || (priority != queue.PriorityNormal && priority != queue.PriorityHigh) {
		wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.ErrcodeInvalidRequest,
			"priority must be 0 or 1")
		return
	}

	taskID, err := h.Queue.Push(c.Request.Context(), placeID, opsFromQuery(c), priority)
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{
		"task_id":  taskID,
		"place_id": placeID,
		"priority": priority,
	})
}

type pushOpsRequest struct {
	Menus   bool `json:"menus"`
	Images  bool `json:"images"`
	Reviews bool `json:"reviews"`
}

func (r pushOpsRequest) ops() queue.Ops {
	if !r.Menus && !r.Images && !r.Reviews {
		return queue.Ops{Menus: true, Images: true, Reviews: true}
	}
	return queue.Ops{Menus: r.Menus, Images: r.Images, Reviews: r.Reviews}
}

// queuePushAll enqueues a refresh task for every crawled place. The body is
// optional; an empty or absent body refreshes everything.
func (h *Handlers) queuePushAll(c *gin.Context) {
	var req pushOpsRequest
	if c.Request.ContentLength > 0 {
		if err := wscutils.BindJSON(c, &req); err != nil {
			return
		}
	}

	ctx := c.Request.Context()
	var ids []int64
	var afterID int64
	for {
		page, err := h.Queries.ListCrawledPlaceIDs(ctx, batchsqlc.ListCrawledPlaceIDsParams{
			AfterID:  afterID,
			PageSize: pushAllPageSize,
		})
		if err != nil {
			wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeDatabaseError, "")
			return
		}
		ids = append(ids, page...)
		if len(page) < pushAllPageSize {
			break
		}
		afterID = page[len(page)-1]
	}

	pushed, err := h.Queue.PushAll(ctx, ids, req.ops())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"pushed": pushed})
}

type pushBatchRequest struct {
	PlaceIDs []int64 `json:"place_ids" validate:"required,min=1"`
	Menus    bool    `json:"menus"`
	Images   bool    `json:"images"`
	Reviews  bool    `json:"reviews"`
	Priority int     `json:"priority" validate:"oneof=0 1"`
}

func (h *Handlers) queuePushBatch(c *gin.Context) {
	var req pushBatchRequest
	if err := wscutils.BindJSON(c, &req); err != nil {
		return
	}
	if errs := wscutils.WscValidate(req); len(errs) > 0 {
		wscutils.SendValidationErrors(c, errs)
		return
	}
	ops := pushOpsRequest{Menus: req.Menus, Images: req.Images, Reviews: req.Reviews}.ops()

	ctx := c.Request.Context()
	var pushed int64
	if req.Priority == queue.PriorityHigh {
		// PushAll only feeds the normal lane; high-priority batches go
		// through Push one by one.
		for _, id := range req.PlaceIDs {
			if _, err := h.Queue.Push(ctx, id, ops, queue.PriorityHigh); err != nil {
				wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
				return
			}
			pushed++
		}
	} else {
		var err error
		if pushed, err = h.Queue.PushAll(ctx, req.PlaceIDs, ops); err != nil {
			wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
			return
		}
	}
	wscutils.SendSuccessResponse(c, gin.H{"pushed": pushed})
}

func (h *Handlers) queueStats(c *gin.Context) {
	stats, err := h.Queue.Stats(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, stats)
}

func (h *Handlers) queueWorkers(c *gin.Context) {
	workers, err := h.Queue.Workers(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"count": len(workers), "workers": workers})
}

func (h *Handlers) queueFailed(c *gin.Context) {
	ids, err := h.Queue.FailedPlaces(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"count": len(ids), "place_ids": ids})
}

func (h *Handlers) queueTask(c *gin.Context) {
	task, state, err := h.Queue.TaskStatus(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			wscutils.SendErrorResponse(c, http.StatusNotFound, wscutils.ErrcodeNotFound,
				"task is not in flight; finished tasks are visible only as place-level results")
			return
		}
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"task": task, "state": state})
}

func (h *Handlers) workerStart(c *gin.Context) {
	if err := h.Worker.Start(h.BaseCtx); err != nil {
		wscutils.SendErrorResponse(c, http.StatusConflict, wscutils.ErrcodeAlreadyRunning, err.Error())
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"worker_id": h.Worker.ID(), "running": true})
}

func (h *Handlers) workerStop(c *gin.Context) {
	h.Worker.Stop()
	wscutils.SendSuccessResponse(c, gin.H{"worker_id": h.Worker.ID(), "running": false})
}

func (h *Handlers) workerStatus(c *gin.Context) {
	workers, err := h.Queue.Workers(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{
		"worker_id":     h.Worker.ID(),
		"running":       h.Worker.Running(),
		"registrations": workers,
	})
}

func (h *Handlers) queueRetryFailed(c *gin.Context) {
	var req pushOpsRequest
	if c.Request.ContentLength > 0 {
		if err := wscutils.BindJSON(c, &req); err != nil {
			return
		}
	}
	retried, err := h.Queue.RetryFailed(c.Request.Context(), req.ops())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"retried": retried})
}

func (h *Handlers) queueClear(c *gin.Context) {
	if err := h.Queue.Clear(c.Request.Context()); err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"cleared": true})
}

func (h *Handlers) queueClearCompleted(c *gin.Context) {
	if err := h.Queue.ClearCompleted(c.Request.Context()); err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"cleared": true})
}

func (h *Handlers) queueClearFailed(c *gin.Context) {
	if err := h.Queue.ClearFailed(c.Request.Context()); err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeQueueError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"cleared": true})
}
