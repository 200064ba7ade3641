package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
)

// Handler exposes the audit log to admins.
type Handler struct {
	Recorder *Recorder
}

// NewHandler constructs a Handler.
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{Recorder: recorder}
}

// RegisterAdminRoutes attaches the audit log route.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit", h.list)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.Recorder.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list audit entries", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	respond.OK(c, gin.H{"entries": entries})
}
