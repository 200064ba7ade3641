package workflow

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/shared/server/middleware"
	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
)

// Handler exposes the workflow controller over HTTP.
type Handler struct {
	Controller *Controller
}

// NewHandler constructs a Handler.
func NewHandler(controller *Controller) *Handler {
	return &Handler{Controller: controller}
}

// RegisterRoutes attaches authenticated workflow routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/workflow", h.current)
	rg.POST("/workflow/events", h.apply)
}

func (h *Handler) current(c *gin.Context) {
	respond.OK(c, h.Controller.Current(middleware.UserIDFromContext(c)))
}

type eventRequest struct {
	Event Event  `json:"event" binding:"required"`
	JobID string `json:"jobId"`
}

func (h *Handler) apply(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "event is required", nil)
		return
	}

	view, err := h.Controller.Apply(middleware.UserIDFromContext(c), middleware.RoleFromContext(c), req.Event, req.JobID)
	if err != nil {
		var iterr *InvalidTransitionError
		switch {
		case errors.Is(err, ErrUnknownEvent):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown event", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "event not allowed for this role", nil)
		case errors.As(err, &iterr):
			respond.Error(c, http.StatusConflict, "invalid_transition", iterr.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to apply event", nil)
		}
		return
	}
	respond.OK(c, view)
}
