package history

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/shared/server/middleware"
	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the history service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches authenticated history routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.list)
	rg.GET("/history/:jobId", h.get)
}

// RegisterAdminRoutes attaches the cross-user history view.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.listAll)
}

func (h *Handler) list(c *gin.Context) {
	page, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), c.Query("pageToken"))
	if err != nil {
		h.writeError(c, err, "failed to list history")
		return
	}
	respond.OK(c, page)
}

func (h *Handler) listAll(c *gin.Context) {
	page, err := h.Svc.ListAll(c.Request.Context(), c.Query("pageToken"))
	if err != nil {
		h.writeError(c, err, "failed to list history")
		return
	}
	respond.OK(c, page)
}

func (h *Handler) get(c *gin.Context) {
	entry, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RoleFromContext(c), c.Param("jobId"))
	if err != nil {
		h.writeError(c, err, "failed to fetch history entry")
		return
	}
	respond.OK(c, entry)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidToken):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid page token", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "history entry not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "history entry belongs to another user", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
