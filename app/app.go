// Package app wires configuration into stores, services and the router.
// The HTTP server, the Lambda entry point and the operator tools share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"visamate-backend/auth"
	"visamate-backend/awsutil"
	"visamate-backend/config"
	"visamate-backend/generator"
	"visamate-backend/kv"
	"visamate-backend/repository"
	"visamate-backend/server"
	"visamate-backend/service"
	"visamate-backend/storage"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the wired components
type App struct {
	Store     kv.Store
	Storage   storage.Storage
	Auth      *service.AuthService
	Profiles  *service.ProfileService
	Timeline  *service.TimelineService
	Checklist *service.ChecklistService
	Files     *service.FileService
	Documents *service.DocumentService
	Registry  *prometheus.Registry

	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// OpenStore connects the configured key-value backend. The returned
// function releases it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, func(), error) {
	switch cfg.KVBackend {
	case config.KVPostgres:
		if cfg.RunMigrations {
			if err := kv.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := kv.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres key-value store ready")
		return kv.NewPostgresStore(pool), pool.Close, nil

	case config.KVDynamoDB:
		awsConfig, err := awsutil.Load(ctx, awsutil.Options{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		logger.Info("dynamodb key-value store ready", slog.String("table", cfg.DynamoTable))
		return kv.NewDynamoStore(dynamodb.NewFromConfig(awsConfig), cfg.DynamoTable), func() {}, nil

	case config.KVSQLite:
		store, err := kv.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite key-value store ready", slog.String("path", cfg.SQLitePath))
		return store, func() { _ = store.Close() }, nil

	case config.KVMemory:
		logger.Warn("using in-memory key-value store, data is lost on exit")
		return kv.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown KV backend %q", cfg.KVBackend)
}

// New builds every component from cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, func() error { closeStore(); return nil })

	if a.Storage, err = storage.NewStorage(ctx, cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", slog.String("type", cfg.StorageType))

	// Initialize repositories
	userRepo := repository.NewUserRepository(store)
	tokenRepo := repository.NewTokenRepository(store)
	timelineRepo := repository.NewTimelineRepository(store)
	checklistRepo := repository.NewChecklistRepository(store)
	fileRepo := repository.NewFileRepository(store)
	jobRepo := repository.NewGenerationJobRepository(store)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	var verifier auth.Verifier = issuer
	if cfg.JWKSURL != "" {
		jwks, err := auth.NewJWKSVerifier(cfg.JWKSURL, cfg.JWKSIssuer, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize JWKS verifier: %w", err)
		}
		verifier = auth.ChainVerifier{issuer, jwks}
		logger.Info("external identity provider enabled", slog.String("jwks_url", cfg.JWKSURL))
	}

	var refiner generator.Refiner
	if cfg.GeminiAPIKey != "" {
		gemini, err := generator.NewGeminiRefiner(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
		}
		refiner = gemini
		a.closers = append(a.closers, gemini.Close)
		logger.Info("document refinement enabled", slog.String("model", cfg.GeminiModel))
	} else {
		logger.Warn("GEMINI_API_KEY not set, document refinement disabled")
	}

	// Initialize services
	cache := service.NewProfileCache(cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	a.Timeline = service.NewTimelineService(timelineRepo)
	a.Checklist = service.NewChecklistService(
		service.ChecklistWithRepository(checklistRepo),
		service.ChecklistWithUserRepository(userRepo),
		service.ChecklistWithProfileCache(cache),
		service.ChecklistWithLogger(logger),
	)
	a.Profiles = service.NewProfileService(
		service.ProfileWithUserRepository(userRepo),
		service.ProfileWithChecklistService(a.Checklist),
		service.ProfileWithTimelineService(a.Timeline),
		service.ProfileWithCache(cache),
		service.ProfileWithLogger(logger),
	)
	a.Auth = service.NewAuthService(
		service.AuthWithUserRepository(userRepo),
		service.AuthWithTokenRepository(tokenRepo),
		service.AuthWithChecklistService(a.Checklist),
		service.AuthWithTimelineService(a.Timeline),
		service.AuthWithTokenIssuer(issuer),
		service.AuthWithVerifier(verifier),
		service.AuthWithRefreshTTL(cfg.RefreshTokenTTL),
		service.AuthWithLogger(logger),
	)
	a.Files = service.NewFileService(
		service.FileWithRepository(fileRepo),
		service.FileWithStorage(a.Storage),
		service.FileWithTimelineService(a.Timeline),
		service.FileWithMaxSize(cfg.MaxUploadSize),
		service.FileWithLogger(logger),
	)
	docOpts := []service.DocumentServiceOption{
		service.DocumentWithGenerationJobRepository(jobRepo),
		service.DocumentWithProfileService(a.Profiles),
		service.DocumentWithFileService(a.Files),
		service.DocumentWithRefineTimeout(cfg.RefineTimeout),
		service.DocumentWithLogger(logger),
	}
	if refiner != nil {
		docOpts = append(docOpts, service.DocumentWithRefiner(refiner))
	}
	a.Documents = service.NewDocumentService(docOpts...)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return a, nil
}

// Handler returns the router serving every endpoint
func (a *App) Handler() http.Handler {
	deps := server.Deps{
		Store:        a.Store,
		Auth:         a.Auth,
		Profiles:     a.Profiles,
		Timeline:     a.Timeline,
		Checklist:    a.Checklist,
		Files:        a.Files,
		Documents:    a.Documents,
		Registry:     a.Registry,
		APIPrefix:    a.cfg.APIPrefix,
		PublicAPIKey: a.cfg.PublicAPIKey,
		CORSOrigins:  a.cfg.CORSOrigins,
		Version:      config.Version,
		Logger:       a.logger,
	}
	if local, ok := a.Storage.(*storage.LocalStorage); ok {
		deps.LocalFilesDir = local.BasePath()
	}
	return server.NewRouter(deps)
}

// Close releases everything New opened, in reverse order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
