package webservices

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjsh1623/MoheBatch-sub001/embedding"
	"github.com/sjsh1623/MoheBatch-sub001/wscutils"
)

func (h *Handlers) embeddingStart(c *gin.Context) {
	if err := h.Embedding.Start(h.BaseCtx); err != nil {
		switch {
		case errors.Is(err, embedding.ErrAlreadyRunning):
			wscutils.SendErrorResponse(c, http.StatusConflict, wscutils.ErrcodeAlreadyRunning, "")
		case errors.Is(err, embedding.ErrServiceUnavailable):
			wscutils.SendErrorResponse(c, http.StatusServiceUnavailable, wscutils.ErrcodeServiceUnavailable, err.Error())
		default:
			wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeInternal, "")
		}
		return
	}
	wscutils.SendSuccessResponse(c, h.Embedding.Status())
}

func (h *Handlers) embeddingStop(c *gin.Context) {
	h.Embedding.Stop()
	wscutils.SendSuccessResponse(c, h.Embedding.Status())
}

func (h *Handlers) embeddingStatus(c *gin.Context) {
	status := h.Embedding.Status()
	counts, err := h.Queries.GetEmbeddingCounts(c.Request.Context())
	if err != nil {
		wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.ErrcodeDatabaseError, "")
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{
		"runner": status,
		"places": gin.H{
			"eligible":  counts.Eligible,
			"completed": counts.Completed,
			"failed":    counts.Failed,
		},
	})
}

func (h *Handlers) embeddingHealth(c *gin.Context) {
	if err := h.Embedding.Health(c.Request.Context()); err != nil {
		wscutils.SendErrorResponse(c, http.StatusServiceUnavailable, wscutils.ErrcodeServiceUnavailable, err.Error())
		return
	}
	wscutils.SendSuccessResponse(c, gin.H{"status": "ok"})
}
