// Package server assembles the gin router shared by the HTTP server and the
// Lambda entry point.
package server

import (
	"log/slog"
	"net/http"

	"visamate-backend/handlers"
	"visamate-backend/httpx"
	"visamate-backend/middleware"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the wired services the router exposes
type Deps struct {
	Store     handlers.Pinger
	Auth      *service.AuthService
	Profiles  *service.ProfileService
	Timeline  *service.TimelineService
	Checklist *service.ChecklistService
	Files     *service.FileService
	Documents *service.DocumentService

	// Registry backs /metrics. Nil disables metrics.
	Registry *prometheus.Registry

	// LocalFilesDir, when set, is served read-only under /files
	LocalFilesDir string

	APIPrefix    string
	PublicAPIKey string
	CORSOrigins  []string
	Version      string
	Logger       *slog.Logger
}

// NewRouter builds the gin engine with every route mounted under the API prefix
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	if d.Registry != nil {
		r.Use(middleware.NewMetrics(d.Registry).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})))
	}
	r.Use(middleware.CORS(d.CORSOrigins))

	if d.LocalFilesDir != "" {
		r.StaticFS("/files", gin.Dir(d.LocalFilesDir, false))
	}

	healthHandler := handlers.NewHealthHandler(d.Store, d.Version)
	authHandler := handlers.NewAuthHandler(d.Auth)
	userHandler := handlers.NewUserHandler(d.Profiles, d.Timeline, d.Checklist)
	fileHandler := handlers.NewFileHandler(d.Files)
	documentHandler := handlers.NewDocumentHandler(d.Documents)

	bearer := middleware.Bearer(d.Auth)

	api := r.Group(d.APIPrefix)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/test", middleware.OptionalBearer(d.Auth), healthHandler.Test)

		// Auth endpoints
		public := api.Group("/auth", middleware.APIKey(d.PublicAPIKey))
		public.POST("/signup", authHandler.SignUp)
		public.POST("/signin", authHandler.SignIn)
		public.POST("/refresh", authHandler.Refresh)
		api.POST("/auth/signout", bearer, authHandler.SignOut)

		// User endpoints
		user := api.Group("/user", bearer)
		user.GET("/profile", userHandler.GetProfile)
		user.PUT("/profile", userHandler.UpdateProfile)
		user.GET("/timeline", userHandler.GetTimeline)
		user.POST("/timeline", userHandler.AppendTimeline)
		user.GET("/checklist", userHandler.GetChecklist)
		user.PUT("/checklist/:itemId", userHandler.UpdateChecklistItem)

		// File endpoints
		user.GET("/files", fileHandler.ListFiles)
		user.POST("/files", fileHandler.RecordFile)
		user.DELETE("/files", fileHandler.DeleteFile)
		user.GET("/files/:id/content", fileHandler.GetFileContent)
		api.POST("/upload/file", bearer, fileHandler.UploadFile)
		api.DELETE("/upload/file", bearer, fileHandler.DiscardUpload)

		// Document endpoints
		user.GET("/documents/kinds", documentHandler.ListKinds)
		user.POST("/documents", documentHandler.Generate)
		user.GET("/jobs/:id", documentHandler.GetJob)
	}

	r.NoRoute(func(c *gin.Context) {
		httpx.Error(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	return r
}
