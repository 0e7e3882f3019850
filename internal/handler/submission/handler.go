package submission

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	submissionService "github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/service/submission"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/clientip"
	apperrors "github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/errors"
)

// Handler exposes the form intake endpoints and the admin listing.
type Handler struct {
	service submissionService.Service
}

func NewHandler(service submissionService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	subs := r.Group("/submissions")
	{
		subs.POST("/contact", h.SubmitContact)
		subs.POST("/open-house/sign-in", h.SubmitSignIn)
		subs.POST("/open-house/feedback", h.SubmitFeedback)
	}
}

// RegisterAdminRoutes mounts the reconciliation listing; the caller
// wraps the group in whatever auth it wants.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/submissions", h.ListSubmissions)
}

func (h *Handler) SubmitContact(c *gin.Context) {
	var req model.ContactRequest
	h.submit(c, &req)
}

func (h *Handler) SubmitSignIn(c *gin.Context) {
	var req model.SignInRequest
	h.submit(c, &req)
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req model.FeedbackRequest
	h.submit(c, &req)
}

// submit is the shared intake path: decode, run the pipeline, render
// the uniform outcome.
func (h *Handler) submit(c *gin.Context, req model.FormRequest) {
	if err := c.ShouldBindJSON(req); err != nil {
		handler.RespondWithError(c, apperrors.NewBadRequest("invalid request body", err))
		return
	}

	outcome, err := h.service.Submit(c.Request.Context(), req, clientip.FromRequest(c.Request))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	var filter model.SubmissionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.RespondWithError(c, apperrors.NewBadRequest("invalid filter", err))
		return
	}

	subs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}
