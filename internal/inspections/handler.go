package inspections

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/shared/server/middleware"
	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the inspections service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches authenticated inspection routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/inspections", h.submit)
	rg.GET("/inspections", h.list)
	rg.GET("/inspections/:id", h.get)
	rg.GET("/inspections/:id/result", h.result)
	rg.GET("/inspections/:id/events", h.events)
	rg.POST("/inspections/:id/cancel", h.cancel)
}

func (h *Handler) submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "multipart form with an images field is required", nil)
		return
	}

	files := form.File["images"]
	images := make([]ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unreadable image part", nil)
			return
		}
		// Read one byte past the limit so the policy check can reject
		// oversize images without buffering arbitrarily large uploads.
		data, err := io.ReadAll(io.LimitReader(f, h.Svc.Policy.MaxBytesPerImage+1))
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unreadable image part", nil)
			return
		}
		images = append(images, ImageUpload{FileName: fh.Filename, Data: data})
	}

	job, err := h.Svc.Submit(c.Request.Context(), middleware.UserIDFromContext(c), images)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Reason, nil)
		case errors.Is(err, ErrUploadTransport):
			respond.Error(c, http.StatusBadGateway, ErrorCodeUploadTransport, "failed to hand images to the analysis engine", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit inspection", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, job)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list inspections", nil)
		return
	}
	respond.OK(c, gin.H{"inspections": jobs})
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RoleFromContext(c), c.Param("id"))
	if err != nil {
		h.writeJobError(c, err, "failed to fetch inspection")
		return
	}
	respond.OK(c, job)
}

func (h *Handler) result(c *gin.Context) {
	result, err := h.Svc.GetResult(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RoleFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			respond.Error(c, http.StatusConflict, "not_ready", "inspection has no result yet", nil)
			return
		}
		h.writeJobError(c, err, "failed to fetch result")
		return
	}
	respond.OK(c, result)
}

// events streams status snapshots as server-sent events until the job
// reaches a terminal state or the client disconnects.
func (h *Handler) events(c *gin.Context) {
	sub, err := h.Svc.Watch(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RoleFromContext(c), c.Param("id"))
	if err != nil {
		h.writeJobError(c, err, "failed to watch inspection")
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("status", snap)
			return !snap.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) cancel(c *gin.Context) {
	err := h.Svc.Cancel(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RoleFromContext(c), c.Param("id"))
	if err != nil {
		h.writeJobError(c, err, "failed to cancel inspection")
		return
	}
	respond.OK(c, gin.H{"ok": true})
}

func (h *Handler) writeJobError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "inspection not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "inspection belongs to another user", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
