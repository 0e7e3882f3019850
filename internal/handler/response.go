package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/abuse"
	apperrors "github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/errors"
)

// ErrorResponse is the error body for all non-200 outcomes. Retryable
// is only set for server errors, signalling the client may resubmit.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable *bool  `json:"retryable,omitempty"`
}

// RespondWithError maps an AppError to its HTTP status and body.
// Anything that is not an AppError is treated as an unexpected internal
// error, per the orchestrator-boundary contract.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternal(err)
	}

	switch appErr.Code {
	case apperrors.ErrBadRequest:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: appErr.Message})
	case apperrors.ErrRejected:
		status := http.StatusBadRequest
		if appErr.Message == abuse.ReasonRateLimited {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, ErrorResponse{Error: appErr.Message})
	case apperrors.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: appErr.Message})
	case apperrors.ErrNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: appErr.Message})
	default:
		retryable := appErr.Retryable
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     appErr.Message,
			Retryable: &retryable,
		})
	}
}
