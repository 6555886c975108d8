// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the database, blob store,
// inference gateway, services, handlers and middleware, and owns their
// lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB          → Auth/Category/Content/Target services
//	  storage.BlobStore  → FileService
//	  inference.Gateway  → PredictHandler
//	  services           → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/content-hub/internal/auth"
	"github.com/sakif/content-hub/internal/config"
	"github.com/sakif/content-hub/internal/handler"
	"github.com/sakif/content-hub/internal/inference"
	"github.com/sakif/content-hub/internal/middleware"
	sqliteRepo "github.com/sakif/content-hub/internal/repository/sqlite"
	"github.com/sakif/content-hub/internal/service"
	"github.com/sakif/content-hub/internal/storage"
	"github.com/sakif/content-hub/internal/validation"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the inference gateway. Close
// releases the database; Start calls it after a graceful shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	blobs   storage.BlobStore
	gateway *inference.Gateway
	tokens  *auth.TokenService
	github  *auth.GitHubProvider
}

// New opens every dependency described by cfg and builds the router.
//
// The model is loaded eagerly when configured to, but a failed load only
// logs: /ml/predict answers 503 and retries the load on the next request.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === DATABASE ===
	if dir := filepath.Dir(cfg.Database.Path); !isMemoryPath(cfg.Database.Path) && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === BLOB STORAGE ===
	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening blob storage: %w", err)
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	var github *auth.GitHubProvider
	if cfg.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubCallbackURL)
	}

	// === INFERENCE ===
	gateway := inference.NewGateway(inference.Options{
		ModelPath:       cfg.Inference.ModelPath,
		Timeout:         cfg.Inference.ForwardTimeout,
		BreakerFailures: cfg.Inference.BreakerFailures,
		BreakerTimeout:  cfg.Inference.BreakerTimeout,
	}, logger)
	if cfg.Inference.EagerLoad {
		if err := gateway.Load(ctx); err != nil {
			logger.Warn("model not loaded at startup; /ml/predict will retry",
				slog.String("path", cfg.Inference.ModelPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		blobs:   blobs,
		gateway: gateway,
		tokens:  tokens,
		github:  github,
	}
	s.setupRoutes()
	return s, nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case config.StorageMinIO:
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	default:
		return storage.NewLocalStore(cfg.UploadFolder)
	}
}

func isMemoryPath(p string) bool {
	return strings.HasPrefix(p, ":memory:") || strings.Contains(p, "mode=memory")
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                              → liveness (db + model)
//	GET    /metrics                              → Prometheus exposition
//	POST   /auth/register | /auth/login          → accounts
//	GET    /auth/profile                         → [auth]
//	GET    /auth/github/login | /callback        → only when configured
//	GET    /categories[/{id}]                    → public reads
//	POST   /categories, PUT|DELETE /{id}         → [auth]
//	GET    /contents[/{id}]                      → public reads
//	POST   /contents, PUT /{id}/metadata, DELETE → [auth]
//	POST   /files/upload, GET /files/...         → [auth]
//	*      /targets/...                          → [auth]
//	POST   /ml/predict                           → public
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the real client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. Metrics: counts requests per matched route pattern
//  6. CORS
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// === Services ===
	// The handler never touches the database directly, and the service
	// never touches HTTP.
	validate := validation.New()
	authService := service.NewAuthService(s.db, s.tokens, auth.NewPasswordService(), s.logger)
	categoryService := service.NewCategoryService(s.db, s.logger)
	contentService := service.NewContentService(s.db, s.logger)
	fileService := service.NewFileService(s.db, s.db, s.blobs, s.config.Storage.MaxUploadBytes, s.logger)
	targetService := service.NewTargetService(s.db, s.db, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, s.github, s.tokens, validate, s.logger)
	categoryHandler := handler.NewCategoryHandler(categoryService, validate, s.logger)
	contentHandler := handler.NewContentHandler(contentService, validate, s.logger)
	fileHandler := handler.NewFileHandler(fileService, s.logger)
	targetHandler := handler.NewTargetHandler(targetService, validate)
	predictHandler := handler.NewPredictHandler(s.gateway, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.gateway, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	r.Get("/healthz", healthHandler.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		if limit := s.config.Server.AuthRateLimit; limit > 0 {
			r.Use(httprate.LimitByIP(limit, time.Minute))
		}
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/profile", authHandler.HandleProfile)

		if s.github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", categoryHandler.HandleList)
		r.Get("/{id}", categoryHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", categoryHandler.HandleCreate)
			r.Put("/{id}", categoryHandler.HandleUpdate)
			r.Delete("/{id}", categoryHandler.HandleDelete)
		})
	})

	r.Route("/contents", func(r chi.Router) {
		r.Get("/", contentHandler.HandleList)
		r.Get("/{id}", contentHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", contentHandler.HandleCreate)
			r.Put("/{id}/metadata", contentHandler.HandleUpdateMetadata)
			r.Delete("/{id}", contentHandler.HandleDelete)
		})
	})

	r.Route("/files", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/upload", fileHandler.HandleUpload)
		r.Get("/download/{id}", fileHandler.HandleDownload)
		r.Get("/{id}/info", fileHandler.HandleInfo)
	})

	r.Route("/targets", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", targetHandler.HandleCreate)
		r.Get("/", targetHandler.HandleList)
		r.Get("/{id}", targetHandler.HandleGet)
		r.Put("/{id}", targetHandler.HandleUpdate)
		r.Delete("/{id}", targetHandler.HandleDelete)

		r.Post("/{id}/progress", targetHandler.HandleAddProgress)
		r.Get("/{id}/progress", targetHandler.HandleListProgress)
		r.Get("/{id}/progress/{progressID}", targetHandler.HandleGetProgress)
		r.Put("/{id}/progress/{progressID}", targetHandler.HandleUpdateProgress)
		r.Delete("/{id}/progress/{progressID}", targetHandler.HandleDeleteProgress)
	})

	r.Post("/ml/predict", predictHandler.HandlePredict)
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (shutdown_timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
			slog.String("storage", s.config.Storage.Backend),
			slog.Bool("github_login", s.github != nil),
			slog.Bool("model_loaded", s.gateway.Loaded()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
