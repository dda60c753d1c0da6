// AngelaMos | 2026
// service.go

package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/discovery"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
)

const dueBatchSize = 100

type Discoverer interface {
	Discover(ctx context.Context, req discovery.DiscoverRequest) (discovery.Result, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error)
}

type Service struct {
	repo       Repository
	discoverer Discoverer
	enqueuer   Enqueuer
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	discoverer Discoverer,
	enqueuer Enqueuer,
	interval time.Duration,
	logger *slog.Logger,
) *Service {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		discoverer: discoverer,
		enqueuer:   enqueuer,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores the campaign as due now, so the next cron pass runs it
// unless the caller runs it first.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Campaign, error) {
	if userID == "" {
		return nil, fmt.Errorf("create campaign: %w", core.ErrUnauthorized)
	}

	now := s.now()
	c := &Campaign{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           req.Name,
		Platform:       creator.NormalizePlatform(req.Platform),
		Filters:        Filters(req.Filters),
		RequestedCount: req.RequestedCount,
		Recurring:      req.Recurring,
		Active:         true,
		NextRunAt:      &now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("get campaign: %w", core.ErrNotFound)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Campaign, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateRequest,
) (*Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Filters != nil {
		c.Filters = Filters(req.Filters)
	}
	if req.RequestedCount != nil {
		c.RequestedCount = *req.RequestedCount
	}
	if req.Recurring != nil {
		c.Recurring = *req.Recurring
	}
	if req.Active != nil {
		wasActive := c.Active
		c.Active = *req.Active
		if c.Active && !wasActive {
			now := s.now()
			c.NextRunAt = &now
		}
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) RunByID(ctx context.Context, userID, id string) (RunResult, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return RunResult{}, err
	}
	return s.Run(ctx, c)
}

// Run discovers creators for the campaign, adds the ones it has not seen
// before to creator_ids, and enqueues those that have an email. A failed
// run records the error and waits one interval before it is due again.
func (s *Service) Run(ctx context.Context, c *Campaign) (RunResult, error) {
	ctx, span := core.StartSpan(ctx, "campaign.run",
		attribute.String("campaign.id", c.ID),
		attribute.String("user.id", c.UserID),
	)
	defer span.End()

	result := RunResult{CampaignID: c.ID, Results: c.ResultsCount}
	now := s.now()

	found, err := s.discoverer.Discover(ctx, discovery.DiscoverRequest{
		UserID:         c.UserID,
		Platform:       c.Platform,
		Filters:        c.Filters,
		RequestedCount: c.RequestedCount,
		CampaignID:     c.ID,
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		s.recordFailure(ctx, c, now, err)
		return result, fmt.Errorf("run campaign %s: %w", c.ID, err)
	}

	result.Discovered = len(found.Creators)
	result.NetNew = found.NetNew

	have := c.IDSet()
	fresh := make([]creator.Creator, 0, len(found.Creators))
	ids := make([]string, 0, len(found.Creators))
	for _, d := range found.Creators {
		if _, ok := have[d.ID]; ok {
			continue
		}
		have[d.ID] = struct{}{}
		fresh = append(fresh, d.Creator)
		ids = append(ids, d.ID)
	}
	result.NewCreators = len(fresh)

	if len(ids) > 0 {
		count, err := s.repo.AppendCreators(ctx, c.ID, ids)
		if err != nil {
			s.recordFailure(ctx, c, now, err)
			return result, fmt.Errorf("run campaign %s: %w", c.ID, err)
		}
		result.Results = count
	}

	sendable := make([]creator.Creator, 0, len(fresh))
	for _, cr := range fresh {
		if cr.HasEmail() {
			sendable = append(sendable, cr)
		} else {
			result.NoEmail++
		}
	}

	if len(sendable) > 0 {
		enq, err := s.enqueuer.Enqueue(ctx, queue.EnqueueRequest{
			UserID:     c.UserID,
			Creators:   sendable,
			CampaignID: c.ID,
		})
		if err != nil {
			s.recordFailure(ctx, c, now, err)
			return result, fmt.Errorf("run campaign %s: %w", c.ID, err)
		}
		result.Queued = enq.Queued
		result.Skipped = enq.Skipped
	}

	// active is the owner's switch and recovery reads it, so a run never
	// changes it. Only a recurring, active campaign gets a next run.
	run := RunRecord{LastRunAt: now, Active: c.Active}
	if c.Recurring && c.Active {
		next := now.Add(s.interval)
		run.NextRunAt = &next
	}
	if err := s.repo.RecordRun(ctx, c.ID, run); err != nil {
		return result, fmt.Errorf("run campaign %s: %w", c.ID, err)
	}

	s.logger.Info("campaign run complete",
		"campaign_id", c.ID,
		"user_id", c.UserID,
		"discovered", result.Discovered,
		"new_creators", result.NewCreators,
		"queued", result.Queued,
		"skipped", result.Skipped,
	)

	return result, nil
}

func (s *Service) recordFailure(ctx context.Context, c *Campaign, now time.Time, cause error) {
	next := now.Add(s.interval)
	err := s.repo.RecordRun(context.WithoutCancel(ctx), c.ID, RunRecord{
		LastRunAt: now,
		NextRunAt: &next,
		LastError: cause.Error(),
		Active:    c.Active,
	})
	if err != nil {
		s.logger.Error("record campaign failure", "campaign_id", c.ID, "error", err)
	}
	s.logger.Warn("campaign run failed",
		"campaign_id", c.ID,
		"user_id", c.UserID,
		"provider_unavailable", errors.Is(cause, discovery.ErrProviderUnavailable),
		"error", cause,
	)
}

// RunDue runs every active campaign whose next_run_at has passed. One
// campaign failing does not stop the rest.
func (s *Service) RunDue(ctx context.Context, now time.Time) (DueSummary, error) {
	start := time.Now()
	var summary DueSummary

	campaigns, err := s.repo.ListDue(ctx, now, dueBatchSize)
	if err != nil {
		return summary, fmt.Errorf("run due campaigns: %w", err)
	}

	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Campaigns++
		res, err := s.Run(ctx, &campaigns[i])
		summary.Discovered += res.Discovered
		summary.NewCreators += res.NewCreators
		summary.Queued += res.Queued
		summary.Skipped += res.Skipped
		if err != nil {
			summary.Failed++
		}
	}

	core.ObserveJob("run_campaigns", time.Since(start).Seconds())
	s.logger.Info("due campaigns processed",
		"campaigns", summary.Campaigns,
		"queued", summary.Queued,
		"failed", summary.Failed,
	)

	return summary, nil
}
