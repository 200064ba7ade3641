package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/audit"
	"github.com/DedovInside/AutoInspect/internal/engine"
	"github.com/DedovInside/AutoInspect/internal/history"
	"github.com/DedovInside/AutoInspect/internal/inspections"
	"github.com/DedovInside/AutoInspect/internal/sessions"
	"github.com/DedovInside/AutoInspect/internal/shared/auth"
	"github.com/DedovInside/AutoInspect/internal/shared/config"
	"github.com/DedovInside/AutoInspect/internal/shared/server"
	"github.com/DedovInside/AutoInspect/internal/shared/storage/db"
	"github.com/DedovInside/AutoInspect/internal/shared/storage/object"
	localstore "github.com/DedovInside/AutoInspect/internal/shared/storage/object/local"
	"github.com/DedovInside/AutoInspect/internal/workflow"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Engine engine.Client

	SessionsRepo    sessions.Repo
	InspectionsRepo inspections.Repo
	HistoryRepo     history.Repo
	AuditRepo       audit.Repo

	SessionsService    *sessions.Service
	InspectionsService *inspections.Service
	HistoryService     *history.Service
	AuditRecorder      *audit.Recorder
	Tracker            *inspections.Tracker
	Workflow           *workflow.Controller
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  localstore.New(cfg.LocalStoreDir),
		Engine: engine.NewHTTPClient(cfg.EngineURL, cfg.EngineTimeout),
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:             cfg,
		Verifier:           app.SessionsService,
		SessionsHandler:    sessions.NewHandler(app.SessionsService),
		InspectionsHandler: inspections.NewHandler(app.InspectionsService),
		HistoryHandler:     history.NewHandler(app.HistoryService),
		WorkflowHandler:    workflow.NewHandler(app.Workflow),
		AuditHandler:       audit.NewHandler(app.AuditRecorder),
	})

	return app, nil
}

// Close releases long-lived resources.
func (a *App) Close() {
	if a.Tracker != nil {
		a.Tracker.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildServices(app *App) {
	if app.DB != nil {
		app.SessionsRepo = &sessions.PGRepo{DB: app.DB}
		app.InspectionsRepo = &inspections.PGRepo{DB: app.DB}
		app.HistoryRepo = &history.PGRepo{DB: app.DB}
		app.AuditRepo = &audit.PGRepo{DB: app.DB}
	} else {
		app.SessionsRepo = sessions.NewMemoryRepo()
		app.InspectionsRepo = inspections.NewMemoryRepo()
		app.HistoryRepo = history.NewMemoryRepo()
		app.AuditRepo = audit.NewMemoryRepo()
	}

	app.AuditRecorder = audit.NewRecorder(app.AuditRepo)
	app.HistoryService = &history.Service{Repo: app.HistoryRepo, PageSize: app.Config.PageSize}
	app.Workflow = workflow.NewController()

	var revoker sessions.Revoker
	if strings.TrimSpace(app.Config.RedisAddr) != "" {
		revoker = sessions.NewRedisRevoker(app.Config.RedisAddr)
	} else {
		revoker = sessions.NewMemoryRevoker()
	}

	signer := auth.NewSigner(app.Config.JWTSecret, "autoinspect", app.Config.JWTTTL)
	app.SessionsService = sessions.NewService(app.SessionsRepo, signer, revoker, app.Config.BcryptCost)
	app.SessionsService.Audit = app.AuditRecorder

	app.Tracker = inspections.NewTracker(app.Engine, app.InspectionsRepo, inspections.PollConfig{
		Interval:      app.Config.PollInterval,
		BackoffFactor: app.Config.PollBackoffFactor,
		RetryCeiling:  app.Config.PollRetryCeiling,
	})
	app.Tracker.Sink = multiSink{app.HistoryService, app.AuditRecorder, app.Workflow}

	app.InspectionsService = &inspections.Service{
		Repo:    app.InspectionsRepo,
		Store:   app.Store,
		Engine:  app.Engine,
		Tracker: app.Tracker,
		Audit:   app.AuditRecorder,
		Policy: inspections.UploadPolicy{
			MaxCount:         app.Config.MaxImageCount,
			MaxBytesPerImage: app.Config.MaxBytesPerImage,
			AllowedMimeTypes: app.Config.AllowedMimeTypes,
		},
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// multiSink fans one terminal job out to every interested component.
type multiSink []inspections.TerminalSink

func (m multiSink) JobFinished(ctx context.Context, job inspections.Job) {
	for _, sink := range m {
		sink.JobFinished(ctx, job)
	}
}
