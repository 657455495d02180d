package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/middleware"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/services"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

type ResourceHandler struct {
	log      *logger.Logger
	tracking *services.TrackingService
}

func NewResourceHandler(log *logger.Logger, tracking *services.TrackingService) *ResourceHandler {
	return &ResourceHandler{
		log:      log.With("handler", "ResourceHandler"),
		tracking: tracking,
	}
}

type submitResourceRequest struct {
	QRCode  string              `json:"qrCode" binding:"required"`
	Kind    domain.ResourceKind `json:"kind" binding:"required"`
	Payload json.RawMessage     `json:"payload" binding:"required"`
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// SubmitResource is the single write entry point for all three record
// kinds. Validation failures come back as 422 with the field errors;
// workflow refusals map to 403/409.
func (h *ResourceHandler) SubmitResource(c *gin.Context) {
	role, ok := middleware.RoleFrom(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req submitResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	resource, err := domain.DecodeResource(req.Kind, req.Payload)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_resource_payload", err)
		return
	}

	out, err := h.tracking.SubmitResource(c.Request.Context(), role, req.QRCode, resource)
	if err != nil {
		h.respondSubmitError(c, role, req.QRCode, err)
		return
	}
	if !out.Validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, out)
		return
	}
	RespondOK(c, out)
}

func (h *ResourceHandler) respondSubmitError(c *gin.Context, role domain.Role, qrCode string, err error) {
	switch {
	case errors.Is(err, workflow.ErrBatchNotFound):
		RespondError(c, http.StatusNotFound, "batch_not_found", err)
	case errors.Is(err, workflow.ErrAccessDenied):
		RespondError(c, http.StatusForbidden, "access_denied", err)
	case errors.Is(err, workflow.ErrIllegalTransition):
		RespondError(c, http.StatusConflict, "illegal_transition", err)
	default:
		h.log.Error("SubmitResource failed", "error", err, "qrCode", qrCode, "role", role)
		RespondError(c, http.StatusInternalServerError, "submit_failed", err)
	}
}

// ReviewBatch records the regulator verdict on a tested batch.
func (h *ResourceHandler) ReviewBatch(c *gin.Context) {
	role, ok := middleware.RoleFrom(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	batch, err := h.tracking.ReviewBatch(c.Request.Context(), role, c.Param("qrCode"), req.Approve, req.Notes)
	if err != nil {
		h.respondSubmitError(c, role, c.Param("qrCode"), err)
		return
	}
	RespondOK(c, gin.H{"batch": batch})
}

// CompleteBatch closes out an approved batch.
func (h *ResourceHandler) CompleteBatch(c *gin.Context) {
	role, ok := middleware.RoleFrom(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	// Notes are optional on completion; an empty body is fine.
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)

	batch, err := h.tracking.CompleteBatch(c.Request.Context(), role, c.Param("qrCode"), req.Notes)
	if err != nil {
		h.respondSubmitError(c, role, c.Param("qrCode"), err)
		return
	}
	RespondOK(c, gin.H{"batch": batch})
}
