package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/herbtrace/herbtrace-backend/internal/middleware"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/provenance"
	"github.com/herbtrace/herbtrace-backend/internal/services"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

type BatchHandler struct {
	log         *logger.Logger
	tracking    *services.TrackingService
	workflowSvc *workflow.Service
	provenance  *provenance.Service
}

func NewBatchHandler(log *logger.Logger, tracking *services.TrackingService, workflowSvc *workflow.Service, prov *provenance.Service) *BatchHandler {
	return &BatchHandler{
		log:         log.With("handler", "BatchHandler"),
		tracking:    tracking,
		workflowSvc: workflowSvc,
		provenance:  prov,
	}
}

func (h *BatchHandler) ListBatches(c *gin.Context) {
	batches, err := h.tracking.GetAllBatches(c.Request.Context())
	if err != nil {
		h.log.Error("ListBatches failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "load_batches_failed", err)
		return
	}
	RespondOK(c, gin.H{"batches": batches})
}

func (h *BatchHandler) GetBatchByQRCode(c *gin.Context) {
	qrCode := c.Param("qrCode")
	batch, err := h.tracking.GetBatchByQRCode(c.Request.Context(), qrCode)
	if err != nil {
		h.log.Error("GetBatchByQRCode failed", "error", err, "qrCode", qrCode)
		RespondError(c, http.StatusInternalServerError, "load_batch_failed", err)
		return
	}
	if batch == nil {
		RespondError(c, http.StatusNotFound, "batch_not_found", errors.New("no batch for QR code "+qrCode))
		return
	}
	history, err := batch.History()
	if err != nil {
		h.log.Error("GetBatchByQRCode bad history", "error", err, "qrCode", qrCode)
		RespondError(c, http.StatusInternalServerError, "load_batch_failed", err)
		return
	}
	RespondOK(c, gin.H{"batch": batch, "history": history})
}

func (h *BatchHandler) GetProvenance(c *gin.Context) {
	qrCode := c.Param("qrCode")
	bundle, err := h.provenance.BundleForBatch(c.Request.Context(), qrCode)
	if err != nil {
		if errors.Is(err, workflow.ErrBatchNotFound) {
			RespondError(c, http.StatusNotFound, "batch_not_found", err)
			return
		}
		h.log.Error("GetProvenance failed", "error", err, "qrCode", qrCode)
		RespondError(c, http.StatusInternalServerError, "provenance_failed", err)
		return
	}
	RespondOK(c, bundle)
}

// CheckAccess answers "may my role touch this batch right now". The decision
// itself is the payload; a denied check is still HTTP 200.
func (h *BatchHandler) CheckAccess(c *gin.Context) {
	role, ok := middleware.RoleFrom(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	qrCode := c.Param("qrCode")
	accessType := workflow.AccessType(c.DefaultQuery("type", string(workflow.AccessEdit)))

	decision, err := h.workflowSvc.CheckAccess(c.Request.Context(), role, qrCode, accessType)
	if err != nil {
		h.log.Error("CheckAccess failed", "error", err, "qrCode", qrCode, "role", role)
		RespondError(c, http.StatusInternalServerError, "access_check_failed", err)
		return
	}
	RespondOK(c, decision)
}
