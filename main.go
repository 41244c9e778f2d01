// @title authd API
// @version 1.0
// @description Account, session and credential lifecycle service.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kube-rca/authd/internal/cache"
	"github.com/kube-rca/authd/internal/client"
	"github.com/kube-rca/authd/internal/config"
	"github.com/kube-rca/authd/internal/db"
	"github.com/kube-rca/authd/internal/handler"
	"github.com/kube-rca/authd/internal/logging"
	"github.com/kube-rca/authd/internal/metrics"
	"github.com/kube-rca/authd/internal/service"
	"github.com/kube-rca/authd/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if logging.ParseLevel(cfg.Log.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info(ctx, "store ready", "driver", store.Name())

	reg := metrics.New()
	deps := service.Dependencies{
		Store:   store,
		Mailer:  newMailer(cfg.Mail, logger),
		Logger:  logger,
		Metrics: reg,
	}

	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		deps.Blocklist = cache.NewSessionBlocklist(cache.NewRedisCache(rdb))
		logger.Info(ctx, "session blocklist enabled")
	}

	svc, err := service.NewAuthService(deps, cfg.Auth, cfg.App.Origin)
	if err != nil {
		return err
	}

	interval, err := time.ParseDuration(cfg.Worker.CleanupInterval)
	if err != nil || interval <= 0 {
		return fmt.Errorf("invalid CLEANUP_INTERVAL %q", cfg.Worker.CleanupInterval)
	}
	go worker.NewCleanup(svc, interval, logger, reg).Run(ctx)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           svc,
		Store:          store,
		Logger:         logger,
		Metrics:        reg,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (db.Store, func(), error) {
	if cfg.Store.Driver == "memory" {
		return db.NewMemory(), func() {}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	pg := db.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, pool.Close, nil
}

func newMailer(cfg config.MailConfig, logger logging.Logger) service.Mailer {
	switch cfg.Provider {
	case "resend":
		return client.NewResendClient(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.From)
	case "smtp":
		return client.NewSMTPMailer(client.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		})
	default:
		return client.NewLogMailer(logger)
	}
}
