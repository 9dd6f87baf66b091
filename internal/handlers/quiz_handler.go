package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"videopath-backend/internal/models"
	"videopath-backend/internal/service"
)

type QuizHandler struct {
	quizzes *service.QuizService
}

func NewQuizHandler(quizzes *service.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.quizzes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "quiz service unavailable"})
		return false
	}
	return true
}

func (h *QuizHandler) Get(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizzes.LearnerQuiz(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

func (h *QuizHandler) Submit(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req models.SubmitQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	submission, err := h.quizzes.Submit(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}
