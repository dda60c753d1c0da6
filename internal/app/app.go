// AngelaMos | 2026
// app.go

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/cron"
	"github.com/carterperez-dev/creator-outreach/internal/discovery"
	"github.com/carterperez-dev/creator-outreach/internal/events"
	"github.com/carterperez-dev/creator-outreach/internal/health"
	"github.com/carterperez-dev/creator-outreach/internal/mail"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
	"github.com/carterperez-dev/creator-outreach/internal/recovery"
	"github.com/carterperez-dev/creator-outreach/internal/sender"
)

// App holds the connections and services shared by the API and the
// worker binaries.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *core.Database
	Redis     *core.Redis
	Telemetry *core.Telemetry
	Publisher events.Publisher
	broker    *events.AMQPPublisher

	AccountRepo account.Repository
	Accounts    *account.Service
	Ledger      *account.Ledger
	Creators    *creator.Service
	Mailboxes   *mailbox.Service
	QueueStore  queue.Store
	Queue       *queue.Service
	Campaigns   *campaign.Service
	Sender      *sender.Worker
	Recovery    *recovery.Service

	Runner *cron.Runner
	Jobs   []cron.Job
}

//nolint:funlen // wiring
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Publisher: events.NopPublisher{}}

	if cfg.Otel.Enabled {
		tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if err != nil {
			logger.Warn("failed to initialize telemetry", "error", err)
		} else {
			a.Telemetry = tel
			logger.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Otel.Endpoint)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Redis = rdb
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	if cfg.AMQP.Enabled {
		broker, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.broker = broker
		a.Publisher = broker
		logger.Info("event broker connected", "exchange", cfg.AMQP.Exchange)
	}

	cipher, err := core.NewCipher([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	a.AccountRepo = account.NewRepository(db.DB)
	a.Accounts = account.NewService(a.AccountRepo, cfg.Outreach.DefaultTimezone, logger)
	a.Ledger = account.NewLedger(a.AccountRepo, logger)

	creatorRepo := creator.NewRepository(db.DB)
	a.Creators = creator.NewService(creatorRepo, logger)

	a.Mailboxes = mailbox.NewService(
		mailbox.NewRepository(db.DB),
		cipher,
		cfg.Gmail.DefaultDailyCap,
		logger,
	)

	a.QueueStore = queue.NewStore(db.DB)
	a.Queue = queue.NewService(
		a.QueueStore,
		creatorRepo,
		queue.NewScheduler(cfg.Outreach),
		a.Publisher,
		logger,
	)

	provider := discovery.NewCachedProvider(
		discovery.NewClient(cfg.Discovery),
		rdb.Client,
		cfg.Discovery.CacheTTL,
		logger,
	)
	pipeline := discovery.NewPipeline(
		provider,
		creatorRepo,
		cfg.Discovery.PageSize,
		cfg.Discovery.MaxConcurrency,
		logger,
	)

	campaignRepo := campaign.NewRepository(db.DB)
	a.Campaigns = campaign.NewService(
		campaignRepo,
		pipeline,
		a.Queue,
		cfg.Discovery.CampaignInterval,
		logger,
	)

	transport := mail.NewRouter(map[string]mail.Transport{
		mail.ProviderGmail: mail.NewGmailTransport(cfg.Gmail),
		mail.ProviderSMTP:  mail.NewSMTPTransport(cfg.SMTP),
	})

	a.Sender = sender.NewWorker(sender.Deps{
		Queue:     a.QueueStore,
		Creators:  creatorRepo,
		Accounts:  a.AccountRepo,
		Mailboxes: a.Mailboxes,
		Pacer:     mailbox.NewPacer(rdb.Client, cfg.Gmail.PerMinute),
		Transport: transport,
		Composer:  mail.DefaultComposer(),
		Publisher: a.Publisher,
		Logger:    logger,
	}, cfg.Worker, cfg.Outreach.FromName)

	a.Recovery = recovery.NewService(campaignRepo, a.Queue, creatorRepo, logger).WithQuota(a.Ledger)

	a.Runner = cron.NewRunner(core.NewJobLock(rdb.Client), cfg.Cron.LockTTL, logger)
	a.Jobs = cron.NewJobs(cron.Services{
		Campaigns: a.Campaigns,
		Quotas:    a.Ledger,
		Mailboxes: a.Mailboxes,
		Sender:    a.Sender,
		Recovery:  a.Recovery,
	}, nil)

	return a, nil
}

// HealthCheckers lists the dependencies /readyz checks.
func (a *App) HealthCheckers() []health.NamedChecker {
	checkers := []health.NamedChecker{
		{Name: "database", Checker: a.DB},
		{Name: "redis", Checker: a.Redis},
	}
	if a.broker != nil {
		checkers = append(checkers, health.NamedChecker{
			Name:     "broker",
			Checker:  a.broker,
			Optional: true,
		})
	}
	return checkers
}

// Close releases everything New opened. It tolerates a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.Logger.Error("broker close error", "error", err)
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}

func SetupLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
