package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/internal/service"
	"videopath-backend/pkg/logger"
)

// writeError maps service and engine errors onto HTTP responses. Internal
// details are logged and never sent to the client.
func writeError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "internal server error"

	switch {
	case service.IsValidationError(err):
		status, code, message = http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, progression.ErrInvalidAnswerShape), errors.Is(err, models.ErrMalformedAnswer):
		status, code, message = http.StatusBadRequest, "invalid_answer_shape", err.Error()
	case errors.Is(err, progression.ErrAccessDenied):
		status, code, message = http.StatusForbidden, "access_denied", err.Error()
	case errors.Is(err, progression.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, gorm.ErrRecordNotFound):
		status, code, message = http.StatusNotFound, "not_found", "record not found"
	case errors.Is(err, progression.ErrRetakeNotAllowed):
		status, code, message = http.StatusConflict, "retake_not_allowed", err.Error()
	case errors.Is(err, progression.ErrMaxAttemptsExceeded):
		status, code, message = http.StatusConflict, "max_attempts_exceeded", err.Error()
	case errors.Is(err, repository.ErrConcurrentUpdate):
		status, code, message = http.StatusConflict, "concurrent_update", "progress changed while the request was processed, please retry"
	case errors.Is(err, service.ErrOrderFrozen):
		status, code, message = http.StatusConflict, "order_frozen", err.Error()
	case errors.Is(err, progression.ErrDataIntegrity):
		code = "data_integrity"
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithError(err).WithFields(map[string]interface{}{
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).Error("Request failed")
	}

	c.JSON(status, gin.H{"error": message, "code": code})
}
