// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	robfig "github.com/robfig/cron/v3"

	"github.com/carterperez-dev/creator-outreach/internal/app"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/cron"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.String("once", "", "run a single job by name and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(configPath, once string) error {
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

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	jobs := make(map[string]cron.Job, len(a.Jobs))
	for _, j := range a.Jobs {
		jobs[j.Name] = j
	}

	if once != "" {
		job, ok := jobs[once]
		if !ok {
			return fmt.Errorf("unknown job %q", once)
		}
		out, err := a.Runner.Run(ctx, job)
		logger.Info("job result", "job", out.Job, "skipped", out.Skipped, "summary", out.Summary)
		return err
	}

	schedules := map[string]string{
		cron.JobSendEmails:   cfg.Worker.SendSchedule,
		cron.JobRunCampaigns: cfg.Worker.CampaignSchedule,
		cron.JobResetQuotas:  cfg.Worker.ResetSchedule,
		cron.JobRecoverQueue: cfg.Worker.RecoverySchedule,
	}

	cl := cronLogger{logger: logger}
	scheduler := robfig.New(
		robfig.WithLogger(cl),
		robfig.WithChain(robfig.Recover(cl), robfig.SkipIfStillRunning(cl)),
	)

	for name, spec := range schedules {
		if spec == "" {
			logger.Info("job not scheduled", "job", name)
			continue
		}
		job := jobs[name]
		if _, err := scheduler.AddFunc(spec, func() {
			if _, err := a.Runner.Run(ctx, job); err != nil {
				logger.Error("scheduled job failed", "job", job.Name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, spec, err)
		}
		logger.Info("job scheduled", "job", name, "spec", spec)
	}

	scheduler.Start()
	logger.Info("worker started", "jobs", len(schedules))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Stop waits for running jobs; their ctx is already cancelled so the
	// sender stops claiming and releases its leases.
	<-scheduler.Stop().Done()

	logger.Info("worker stopped")
	return nil
}

// cronLogger routes the scheduler's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
