package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"videopath-backend/internal/config"
)

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(manager *RateLimitManager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || cfg == nil || shouldBypassRateLimit(c.Request) {
			c.Next()
			return
		}

		limiter := manager.GetVisitor(c.ClientIP(), cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// QuizSubmitRateLimitMiddleware limits quiz submissions per learner. It must
// run after AuthMiddleware.
func QuizSubmitRateLimitMiddleware(manager *RateLimitManager, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || perMinute <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP()
		if userID := c.GetUint("user_id"); userID != 0 {
			key = fmt.Sprintf("user:%d", userID)
		}

		limiter := manager.GetSubmissionLimiter(key, perMinute)
		if limiter != nil && !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many quiz submissions, please wait a minute"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func shouldBypassRateLimit(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	switch r.URL.Path {
	case "/health", "/metrics":
		return true
	}
	return false
}
