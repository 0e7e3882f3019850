package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
)

// AdminAuth guards the reconciliation listing with a static bearer
// token from config. An empty token disables the admin surface rather
// than leaving it open.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, handler.ErrorResponse{Error: "not found"})
			return
		}

		auth := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Next()
	}
}
