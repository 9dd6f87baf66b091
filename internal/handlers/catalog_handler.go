package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"videopath-backend/internal/models"
	"videopath-backend/internal/service"
)

// CatalogHandler serves the admin side of videos and quizzes.
type CatalogHandler struct {
	service *service.CatalogService
}

func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: catalogService}
}

func (h *CatalogHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog service unavailable"})
		return false
	}
	return true
}

func (h *CatalogHandler) ListVideos(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	videos, err := h.service.ListVideos()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (h *CatalogHandler) CreateVideo(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	var req models.CreateVideoRequest
	if !bindJSON(c, &req) {
		return
	}

	video, err := h.service.CreateVideo(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"video": video})
}

func (h *CatalogHandler) UpdateVideo(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateVideoRequest
	if !bindJSON(c, &req) {
		return
	}

	video, err := h.service.UpdateVideo(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *CatalogHandler) PublishVideo(c *gin.Context) {
	h.setPublished(c, true)
}

func (h *CatalogHandler) UnpublishVideo(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *CatalogHandler) setPublished(c *gin.Context, published bool) {
	if !h.ensureService(c) {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	video, err := h.service.SetPublished(c.Request.Context(), id, published)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *CatalogHandler) GetQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.service.AdminQuiz(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

func (h *CatalogHandler) CreateQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	var req models.CreateQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	quiz, err := h.service.CreateQuiz(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quiz": quiz})
}

func (h *CatalogHandler) UpdateQuiz(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	quiz, err := h.service.UpdateQuiz(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}
