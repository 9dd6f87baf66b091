package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"videopath-backend/internal/models"
	"videopath-backend/internal/service"
)

type ProgressHandler struct {
	progress *service.ProgressService
	watch    *service.WatchService
}

func NewProgressHandler(progress *service.ProgressService, watch *service.WatchService) *ProgressHandler {
	return &ProgressHandler{progress: progress, watch: watch}
}

func (h *ProgressHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.progress == nil || h.watch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress service unavailable"})
		return false
	}
	return true
}

// GetProgress returns the caller's progress record, or the initial state when
// they have not started yet.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
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

func (h *ProgressHandler) GetAccess(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	statuses, err := h.progress.Access(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

func (h *ProgressHandler) ListVideos(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	videos, err := h.progress.Videos(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (h *ProgressHandler) RecordWatch(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.RecordWatchSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	update, err := h.watch.RecordSession(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"watch": update})
}
