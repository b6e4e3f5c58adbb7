package webservices

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjsh1623/MoheBatch-sub001/jobs"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
	"github.com/sjsh1623/MoheBatch-sub001/wscutils"
)

func workerParam(c *gin.Context) (int, bool) {
	w, err := strconv.Atoi(c.Param("worker_id"))
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.ErrcodeInvalidRequest,
			"worker_id must be an integer")
		return 0, false
	}
	return w, true
}

func (h *Handlers) batchStatusAll(c *gin.Context) {
	wscutils.SendSuccessResponse(c, gin.H{
		"job":     jobs.CrawlJobName,
		"workers": h.Controller.StatusAll(jobs.CrawlJobName),
	})
}

func (h *Handlers) batchStatus(c *gin.Context) {
	w, ok := workerParam(c)
	if !ok {
		return
	}
	wscutils.SendSuccessResponse(c, h.Controller.Status(jobs.CrawlJobName, w))
}

func (h *Handlers) batchStart(c *gin.Context) {
	w, ok := workerParam(c)
	if !ok {
		return
	}
	execID, err := h.Controller.Start(c.Request.Context(), jobs.CrawlJobName, w)
	if err != nil {
		h.sendStartError(c, err)
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{
		"worker_id":    w,
		"execution_id": execID,
		"status":       jobs.StatusStarting,
	})
}

func (h *Handlers) sendStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrAlreadyRunning):
		wscutils.SendErrorResponse(c, http.StatusConflict, wscutils.ErrcodeAlreadyRunning, "")
	case errors.Is(err, jobs.ErrUnknownJob):
		wscutils.SendErrorResponse(c, http.StatusNotFound, wscutils.ErrcodeNotFound, err.Error())
	case pipeline.Classify(err) == pipeline.KindConfig:
		wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.ErrcodeConfig, err.Error())
	default:
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeInternal, "")
	}
}

func (h *Handlers) batchStartAll(c *gin.Context) {
	outcomes := h.Controller.StartAll(c.Request.Context(), jobs.CrawlJobName)
	wscutils.SendSuccessResponse(c, gin.H{
		"job":     jobs.CrawlJobName,
		"workers": outcomes,
	})
}

func (h *Handlers) batchStop(c *gin.Context) {
	w, ok := workerParam(c)
	if !ok {
		return
	}
	status, err := h.Controller.Stop(jobs.CrawlJobName, w)
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusConflict, wscutils.ErrcodeNotRunning, err.Error())
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"worker_id": w, "status": status})
}

func (h *Handlers) batchStopAll(c *gin.Context) {
	wscutils.SendSuccessResponse(c, gin.H{"stopping": h.Controller.StopAll()})
}

func (h *Handlers) batchConfig(c *gin.Context) {
	wscutils.SendSuccessResponse(c, h.Info)
}

func (h *Handlers) currentJobs(c *gin.Context) {
	live := h.Controller.CurrentJobs()
	wscutils.SendSuccessResponse(c, gin.H{
		"count": len(live),
		"jobs":  live,
	})
}
