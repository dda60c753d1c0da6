// AngelaMos | 2026
// service.go

package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
)

type Campaigns interface {
	ActiveForUser(ctx context.Context, userID string) ([]campaign.Campaign, error)
	UsersWithActive(ctx context.Context) ([]string, error)
}

type Queue interface {
	CreatorIDs(ctx context.Context, userID string) ([]string, error)
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error)
}

type Creators interface {
	GetByIDs(ctx context.Context, ids []string) ([]creator.Creator, error)
}

// Quota lets reconciliation stop early for users with no budget left.
type Quota interface {
	Remaining(ctx context.Context, userID string) (int, error)
}

type Result struct {
	UserID   string `json:"user_id"`
	Expected int    `json:"expected"`
	Present  int    `json:"present"`
	Missing  int    `json:"missing"`
	Queued   int    `json:"queued"`
	Skipped  int    `json:"skipped"`
	NoEmail  int    `json:"no_email"`
}

type Summary struct {
	Users    int `json:"users"`
	Expected int `json:"expected"`
	Missing  int `json:"missing"`
	Queued   int `json:"queued"`
	Skipped  int `json:"skipped"`
	NoEmail  int `json:"no_email"`
	Failed   int `json:"failed"`
}

// Service reconciles the queue against campaigns. Every creator listed by
// an active campaign should have a queue item; the ones that do not are
// enqueued again through the normal quota-checked path.
type Service struct {
	campaigns Campaigns
	queue     Queue
	creators  Creators
	quota     Quota
	logger    *slog.Logger
}

func NewService(campaigns Campaigns, q Queue, creators Creators, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{campaigns: campaigns, queue: q, creators: creators, logger: logger}
}

func (s *Service) WithQuota(q Quota) *Service {
	s.quota = q
	return s
}

func (s *Service) RecoverQueue(ctx context.Context, userID string) (Result, error) {
	ctx, span := core.StartSpan(ctx, "recovery.recover_queue", attribute.String("user.id", userID))
	defer span.End()

	res := Result{UserID: userID}

	campaigns, err := s.campaigns.ActiveForUser(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("recover queue: %w", err)
	}

	// A creator listed by several campaigns is attributed to the oldest.
	owner := make(map[string]string)
	var expected []string
	for _, c := range campaigns {
		for _, id := range c.CreatorIDs {
			if _, seen := owner[id]; seen {
				continue
			}
			owner[id] = c.ID
			expected = append(expected, id)
		}
	}
	res.Expected = len(expected)
	if res.Expected == 0 {
		return res, nil
	}

	presentIDs, err := s.queue.CreatorIDs(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("recover queue: %w", err)
	}
	present := make(map[string]struct{}, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = struct{}{}
	}

	var missing []string
	for _, id := range expected {
		if _, ok := present[id]; ok {
			res.Present++
			continue
		}
		missing = append(missing, id)
	}
	res.Missing = len(missing)
	if res.Missing == 0 {
		return res, nil
	}

	if s.quota != nil {
		left, err := s.quota.Remaining(ctx, userID)
		if err != nil {
			return res, fmt.Errorf("recover queue: %w", err)
		}
		if left == 0 {
			res.Skipped = res.Missing
			s.logger.Info("queue reconciliation deferred, quota exhausted",
				"user_id", userID,
				"missing", res.Missing,
			)
			return res, nil
		}
	}

	loaded, err := s.creators.GetByIDs(ctx, missing)
	if err != nil {
		return res, fmt.Errorf("recover queue: %w", err)
	}
	byID := make(map[string]creator.Creator, len(loaded))
	for _, c := range loaded {
		byID[c.ID] = c
	}

	groups := make(map[string][]creator.Creator)
	for _, id := range missing {
		c, ok := byID[id]
		if !ok || !c.HasEmail() {
			res.NoEmail++
			continue
		}
		groups[owner[id]] = append(groups[owner[id]], c)
	}

	for _, c := range campaigns {
		batch := groups[c.ID]
		if len(batch) == 0 {
			continue
		}
		enq, err := s.queue.Enqueue(ctx, queue.EnqueueRequest{
			UserID:     userID,
			Creators:   batch,
			CampaignID: c.ID,
		})
		if err != nil {
			return res, fmt.Errorf("recover queue: %w", err)
		}
		res.Queued += enq.Queued
		res.Skipped += enq.Skipped
	}

	core.RecordRequeued(res.Queued)
	s.logger.Info("queue reconciled",
		"user_id", userID,
		"expected", res.Expected,
		"missing", res.Missing,
		"queued", res.Queued,
		"skipped", res.Skipped,
		"no_email", res.NoEmail,
	)

	return res, nil
}

// RecoverAll reconciles every user with an active campaign and keeps
// going when one user fails.
func (s *Service) RecoverAll(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	users, err := s.campaigns.UsersWithActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("recover all: %w", err)
	}

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Users++
		res, err := s.RecoverQueue(ctx, userID)
		summary.Expected += res.Expected
		summary.Missing += res.Missing
		summary.Queued += res.Queued
		summary.Skipped += res.Skipped
		summary.NoEmail += res.NoEmail
		if err != nil {
			summary.Failed++
			s.logger.Warn("queue reconciliation failed", "user_id", userID, "error", err)
		}
	}

	core.ObserveJob("recover_queue", time.Since(start).Seconds())
	return summary, nil
}
