// AngelaMos | 2026
// jobs.go

package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/recovery"
	"github.com/carterperez-dev/creator-outreach/internal/sender"
)

const (
	JobRunCampaigns = "run-campaigns"
	JobResetQuotas  = "reset-quotas"
	JobSendEmails   = "send-emails"
	JobRecoverQueue = "recover-queue"
)

type CampaignRunner interface {
	RunDue(ctx context.Context, now time.Time) (campaign.DueSummary, error)
}

type QuotaResetter interface {
	ResetDaily(ctx context.Context, now time.Time) (account.ResetSummary, error)
}

type MailboxResetter interface {
	ResetDaily(ctx context.Context, now time.Time) (int64, error)
}

type Sender interface {
	SendScheduled(ctx context.Context) (sender.Summary, error)
}

type Recoverer interface {
	RecoverAll(ctx context.Context) (recovery.Summary, error)
}

type Services struct {
	Campaigns CampaignRunner
	Quotas    QuotaResetter
	Mailboxes MailboxResetter
	Sender    Sender
	Recovery  Recoverer
}

// Job is one batch operation. The HTTP endpoints and the worker binary
// run the same set.
type Job struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

type QuotaResetSummary struct {
	account.ResetSummary
	Mailboxes int64 `json:"mailboxes_reset"`
}

func NewJobs(s Services, now func() time.Time) []Job {
	if now == nil {
		now = time.Now
	}

	return []Job{
		{
			Name: JobRunCampaigns,
			Run: func(ctx context.Context) (any, error) {
				return s.Campaigns.RunDue(ctx, now().UTC())
			},
		},
		{
			Name: JobResetQuotas,
			Run: func(ctx context.Context) (any, error) {
				start := time.Now()
				defer func() { core.ObserveJob("reset_quotas", time.Since(start).Seconds()) }()

				at := now().UTC()
				var out QuotaResetSummary
				summary, accountErr := s.Quotas.ResetDaily(ctx, at)
				out.ResetSummary = summary
				n, mailboxErr := s.Mailboxes.ResetDaily(ctx, at)
				out.Mailboxes = n
				return out, errors.Join(accountErr, mailboxErr)
			},
		},
		{
			Name: JobSendEmails,
			Run: func(ctx context.Context) (any, error) {
				return s.Sender.SendScheduled(ctx)
			},
		},
		{
			Name: JobRecoverQueue,
			Run: func(ctx context.Context) (any, error) {
				return s.Recovery.RecoverAll(ctx)
			},
		},
	}
}

type Outcome struct {
	Job        string `json:"job"`
	Skipped    bool   `json:"skipped"`
	Summary    any    `json:"summary,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Runner wraps each job in a Redis lease so that overlapping runs of the
// same job, from either entry point, skip instead of double-processing.
type Runner struct {
	lock   *core.JobLock
	ttl    time.Duration
	logger *slog.Logger
}

func NewRunner(lock *core.JobLock, ttl time.Duration, logger *slog.Logger) *Runner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{lock: lock, ttl: ttl, logger: logger}
}

func (r *Runner) Run(ctx context.Context, job Job) (Outcome, error) {
	out := Outcome{Job: job.Name}

	token, err := r.lock.Acquire(ctx, job.Name, r.ttl)
	if errors.Is(err, core.ErrLockContended) {
		r.logger.Info("job already running, skipping", "job", job.Name)
		out.Skipped = true
		return out, nil
	}
	if err != nil {
		return out, err
	}
	defer func() {
		relCtx := context.WithoutCancel(ctx)
		if err := r.lock.Release(relCtx, job.Name, token); err != nil {
			r.logger.Warn("release job lock failed", "job", job.Name, "error", err)
		}
	}()

	start := time.Now()
	summary, err := job.Run(ctx)
	out.DurationMS = time.Since(start).Milliseconds()
	out.Summary = summary
	if err != nil {
		r.logger.Error("job failed", "job", job.Name, "error", err)
		return out, fmt.Errorf("job %s: %w", job.Name, err)
	}

	r.logger.Info("job finished", "job", job.Name, "duration_ms", out.DurationMS)
	return out, nil
}
