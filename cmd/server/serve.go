package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/config"
	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/handlers"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/scheduler"
	"github.com/yukikurage/rollout-ready-api/internal/services"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.close()
	cfg, logger := app.cfg, app.logger

	gin.SetMode(cfg.Server.Mode)

	if err := database.Migrate(app.db, logger); err != nil {
		return err
	}

	store, closeStore, err := openFileStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}

	repos := repository.New(app.db)

	// Services
	var suggester services.TaskSuggester
	if cfg.OpenAI.APIKey != "" {
		suggester = services.NewAIService(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		logger.Info("OPENAI_API_KEY not set, task suggestions disabled")
	}
	authService := services.NewAuthService(repos, cfg.Session.TTL, logger)
	taskService := services.NewTaskService(repos, store, logger)
	housekeeping := services.NewHousekeepingService(repos, store, logger)
	projectService := services.NewProjectService(repos, services.NewTaskGenerator(logger), store, logger)

	h := handlers.Handlers{
		Auth:        handlers.NewAuthHandler(authService, logger),
		Users:       handlers.NewUserHandler(services.NewUserService(repos, logger), logger),
		Roles:       handlers.NewRoleHandler(services.NewRoleService(repos, logger), logger),
		Templates:   handlers.NewTemplateHandler(services.NewTemplateService(repos, suggester, logger), logger),
		Projects:    handlers.NewProjectHandler(projectService, taskService, logger),
		Tasks:       handlers.NewTaskHandler(taskService, logger),
		Attachments: handlers.NewAttachmentHandler(services.NewAttachmentService(repos, store, logger), logger),
		Health:      handlers.NewHealthHandler(housekeeping, logger),
	}

	// Router
	r := gin.New()
	r.Use(logging.Recovery(logger), logging.RequestLogger(logger), metrics.Middleware())
	if len(cfg.CORS.Origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.Origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(sessions.Sessions(constants.SessionCookieName, sessionStore))
	r.GET("/metrics", metrics.Handler())
	handlers.RegisterRoutes(r, h, authService, logger)

	// Housekeeping
	jobs, err := scheduler.New(cfg.Jobs, authService, housekeeping, logger)
	if err != nil {
		return err
	}
	jobs.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	jobs.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openFileStore returns the attachment store selected by cfg and its closer.
func openFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, func(), error) {
	switch cfg.Driver {
	case "gcs":
		store, err := storage.NewGCSStore(ctx, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := storage.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// newSessionStore keeps sessions in Redis when it is configured and in signed
// cookies otherwise.
func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	if addr := cfg.RedisAddr(); addr != "" {
		rs, err := redisStore.NewStore(
			10,    // pool size
			"tcp", // network type
			addr,
			"", // username
			cfg.Redis.Password,
			cfg.SessionSecret(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis session store: %w", err)
		}
		store = rs
	} else {
		store = cookie.NewStore(cfg.SessionSecret())
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Session.Secure || cfg.Server.Mode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
