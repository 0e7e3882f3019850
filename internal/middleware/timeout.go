package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
)

// TimeoutConfig represents timeout middleware configuration
type TimeoutConfig struct {
	Duration time.Duration
}

// DefaultTimeoutConfig leaves room for the delivery worst case: three
// 15s attempts plus 1s and 2s backoffs.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Duration: 60 * time.Second,
	}
}

// Timeout adds request timeout
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Duration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				retryable := true
				c.AbortWithStatusJSON(http.StatusGatewayTimeout, handler.ErrorResponse{
					Error:     "request timeout",
					Retryable: &retryable,
				})
			}
		}
	}
}
