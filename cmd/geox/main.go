package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mohamdabidi2/geox-sub001/internal/app"
	"github.com/mohamdabidi2/geox-sub001/internal/auth"
	"github.com/mohamdabidi2/geox-sub001/internal/droits"
	"github.com/mohamdabidi2/geox-sub001/internal/masterdata"
	"github.com/mohamdabidi2/geox-sub001/internal/observability"
	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
	"github.com/mohamdabidi2/geox-sub001/internal/platform/cache"
	"github.com/mohamdabidi2/geox-sub001/internal/posts"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
	"github.com/mohamdabidi2/geox-sub001/internal/users"
	"github.com/mohamdabidi2/geox-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Sessions and rights epochs live in redis; nothing works without it.
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "geox_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout)
	if err := backendClient.Ping(ctx); err != nil {
		logger.Warn("backend ping", slog.Any("error", err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient)

	metrics := observability.NewMetrics()

	droitsAPI := droits.NewClient(backendClient)
	droitsManager := droits.NewManager(droitsAPI, logger, enqueuer, redisClient)
	gate := droits.Gate{Manager: droitsManager, Logger: logger, Metrics: metrics}
	droitsHandler := droits.NewHandler(logger, droitsManager)

	authService := auth.NewService(backendClient)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	masterdataService := masterdata.NewService(backendClient)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService, droitsManager, gate)

	usersService := users.NewService(backendClient)
	usersHandler := users.NewHandler(logger, usersService)

	postsService := posts.NewService(backendClient)
	postsHandler := posts.NewHandler(logger, postsService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		DroitsHandler:     droitsHandler,
		MasterDataHandler: masterdataHandler,
		UsersHandler:      usersHandler,
		PostsHandler:      postsHandler,
		Gate:              gate,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
