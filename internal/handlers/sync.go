package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/syncq"
)

type SyncHandler struct {
	log    *logger.Logger
	engine *syncq.Engine
}

func NewSyncHandler(log *logger.Logger, engine *syncq.Engine) *SyncHandler {
	return &SyncHandler{
		log:    log.With("handler", "SyncHandler"),
		engine: engine,
	}
}

func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		h.log.Error("Status failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "sync_status_failed", err)
		return
	}
	RespondOK(c, status)
}

func (h *SyncHandler) ForceSync(c *gin.Context) {
	RespondOK(c, h.engine.ForceSync(c.Request.Context()))
}

// RetryFailed revives items that exhausted their retry budget and drains.
func (h *SyncHandler) RetryFailed(c *gin.Context) {
	result, err := h.engine.ForceSyncAll(c.Request.Context())
	if err != nil {
		h.log.Error("RetryFailed failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "sync_retry_failed", err)
		return
	}
	RespondOK(c, result)
}

func (h *SyncHandler) ClearCompleted(c *gin.Context) {
	n, err := h.engine.ClearCompleted(c.Request.Context())
	if err != nil {
		h.log.Error("ClearCompleted failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "sync_clear_failed", err)
		return
	}
	RespondOK(c, gin.H{"cleared": n})
}

type onlineRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// SetOnline feeds client connectivity changes into the engine; reconnecting
// triggers a drain.
func (h *SyncHandler) SetOnline(c *gin.Context) {
	var req onlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	h.engine.NotifyOnline(c.Request.Context(), *req.Online)
	RespondOK(c, gin.H{"online": *req.Online})
}
