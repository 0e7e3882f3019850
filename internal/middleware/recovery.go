package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
)

// Recovery handles panics that escape the orchestrator boundary. The
// client still gets a retryable server error rather than a dropped
// connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("request panic recovered")

				retryable := true
				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.ErrorResponse{
					Error:     "internal server error",
					Retryable: &retryable,
				})
			}
		}()
		c.Next()
	}
}
