package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"videopath-backend/internal/service"
)

// AdminProgressHandler exposes learner progress and maintenance operations to
// administrators.
type AdminProgressHandler struct {
	progress  *service.ProgressService
	catalog   *service.CatalogService
	integrity *service.IntegrityService
}

func NewAdminProgressHandler(progress *service.ProgressService, catalog *service.CatalogService, integrity *service.IntegrityService) *AdminProgressHandler {
	return &AdminProgressHandler{progress: progress, catalog: catalog, integrity: integrity}
}

func (h *AdminProgressHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.progress == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress service unavailable"})
		return false
	}
	return true
}

func (h *AdminProgressHandler) GetUserProgress(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.progress.Snapshot(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// ResetUserProgress is idempotent; resetting a learner without progress succeeds.
func (h *AdminProgressHandler) ResetUserProgress(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.progress.Reset(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

func (h *AdminProgressHandler) Integrity(c *gin.Context) {
	if h == nil || h.integrity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "integrity audit unavailable"})
		return
	}

	report, err := h.integrity.Audit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (h *AdminProgressHandler) Recompute(c *gin.Context) {
	if h == nil || h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog service unavailable"})
		return
	}

	scheduled, err := h.catalog.RequestRecompute(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	if !scheduled {
		c.JSON(http.StatusAccepted, gin.H{"message": "recompute already scheduled"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "recompute scheduled"})
}
