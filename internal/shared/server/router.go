package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/audit"
	"github.com/DedovInside/AutoInspect/internal/history"
	"github.com/DedovInside/AutoInspect/internal/inspections"
	"github.com/DedovInside/AutoInspect/internal/sessions"
	"github.com/DedovInside/AutoInspect/internal/shared/config"
	"github.com/DedovInside/AutoInspect/internal/shared/metrics"
	"github.com/DedovInside/AutoInspect/internal/shared/server/middleware"
	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
	"github.com/DedovInside/AutoInspect/internal/workflow"
)

// RouterDeps carries everything the router needs to register routes.
type RouterDeps struct {
	Config             config.Config
	Verifier           middleware.TokenVerifier
	SessionsHandler    *sessions.Handler
	InspectionsHandler *inspections.Handler
	HistoryHandler     *history.Handler
	WorkflowHandler    *workflow.Handler
	AuditHandler       *audit.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	deps.SessionsHandler.RegisterPublicRoutes(api)

	protected := api.Group("", middleware.Auth(deps.Verifier))
	deps.SessionsHandler.RegisterRoutes(protected)
	deps.InspectionsHandler.RegisterRoutes(protected)
	deps.HistoryHandler.RegisterRoutes(protected)
	deps.WorkflowHandler.RegisterRoutes(protected)

	admin := protected.Group("/admin", middleware.RequireAdmin())
	deps.HistoryHandler.RegisterAdminRoutes(admin)
	deps.AuditHandler.RegisterAdminRoutes(admin)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
