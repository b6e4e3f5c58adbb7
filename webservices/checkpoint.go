package webservices

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjsh1623/MoheBatch-sub001/wscutils"
)

func (h *Handlers) checkpointProgress(c *gin.Context) {
	ctx := c.Request.Context()
	progress, err := h.Checkpoint.Progress(ctx)
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeDatabaseError, "")
		return
	}
	var pct float64
	if progress.Total > 0 {
		pct = float64(progress.Completed) / float64(progress.Total) * 100
	}
	data := gin.H{
		"total":      progress.Total,
		"pending":    progress.Pending,
		"processing": progress.Processing,
		"completed":  progress.Completed,
		"failed":     progress.Failed,
		"percent":    pct,
	}
	if exec, ok, err := h.Checkpoint.LatestExecution(ctx); err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeDatabaseError, "")
		return
	} else if ok {
		data["execution"] = gin.H{
			"execution_id":      exec.ExecutionID.String(),
			"status":            string(exec.Status),
			"total_regions":     exec.TotalRegions,
			"completed_regions": exec.CompletedRegions,
			"failed_regions":    exec.FailedRegions,
			"last_region_code":  exec.LastRegionCode.String,
		}
	}
	wscutils.SendSuccessResponse(c, data)
}

func (h *Handlers) checkpointResetFailed(c *gin.Context) {
	n, err := h.Checkpoint.ResetFailed(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeDatabaseError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"reset": n})
}
