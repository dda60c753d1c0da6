// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/admin"
	"github.com/carterperez-dev/creator-outreach/internal/app"
	"github.com/carterperez-dev/creator-outreach/internal/auth"
	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/cron"
	"github.com/carterperez-dev/creator-outreach/internal/health"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox"
	"github.com/carterperez-dev/creator-outreach/internal/middleware"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
	"github.com/carterperez-dev/creator-outreach/internal/server"
	"github.com/carterperez-dev/creator-outreach/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting api",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		a.Close(context.Background())
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	authHandler := auth.NewHandler(auth.NewService(jwtManager, a.Accounts))
	accountHandler := account.NewHandler(a.Accounts)
	campaignHandler := campaign.NewHandler(a.Campaigns)
	queueHandler := queue.NewHandler(a.Queue)
	mailboxHandler := mailbox.NewHandler(a.Mailboxes)
	cronHandler := cron.NewHandler(a.Runner, a.Jobs, cfg.Cron.Secret)
	webhookHandler := webhook.NewHandler(a.Creators, a.Accounts, a.Queue, cfg.Webhook, logger)

	healthHandler := health.NewHandler(a.HealthCheckers()...)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    a.DB.Stats,
		RedisStats: a.Redis.PoolStats,
		DBPing:     a.DB.Ping,
		RedisPing:  a.Redis.Ping,
		Queue:      a.Queue,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)
	router.Use(
		middleware.NewRateLimiter(a.Redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	cronHandler.RegisterRoutes(router)
	webhookHandler.RegisterRoutes(router)

	planLimit := middleware.PlanRateLimiter(a.Redis.Client, middleware.DefaultPlanLimits)
	verify := middleware.Authenticator(jwtManager)
	authenticator := func(next http.Handler) http.Handler {
		return verify(planLimit(next))
	}
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		accountHandler.RegisterRoutes(r, authenticator)
		accountHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		campaignHandler.RegisterRoutes(r, authenticator)
		queueHandler.RegisterRoutes(r, authenticator)
		mailboxHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		a.Close(context.Background())
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	a.Close(shutdownCtx)

	logger.Info("api stopped")
	return nil
}
