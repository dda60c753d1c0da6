// AngelaMos | 2026
// service.go

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/events"
)

type EnqueueRequest struct {
	UserID     string
	Creators   []creator.Creator
	CampaignID string
}

type EnqueueResult struct {
	Queued           int      `json:"queued"`
	Skipped          int      `json:"skipped"`
	CreditsUsed      int      `json:"credits_used"`
	SkippedNoEmail   int      `json:"skipped_no_email"`
	SkippedQuota     int      `json:"skipped_quota"`
	SkippedDuplicate int      `json:"skipped_duplicate"`
	ItemIDs          []string `json:"item_ids,omitempty"`
}

func (r *EnqueueResult) Add(other EnqueueResult) {
	r.Queued += other.Queued
	r.Skipped += other.Skipped
	r.CreditsUsed += other.CreditsUsed
	r.SkippedNoEmail += other.SkippedNoEmail
	r.SkippedQuota += other.SkippedQuota
	r.SkippedDuplicate += other.SkippedDuplicate
}

type Service struct {
	store     Store
	creators  creator.Repository
	scheduler *Scheduler
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	store Store,
	creators creator.Repository,
	scheduler *Scheduler,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		creators:  creators,
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Enqueue plans one send per creator. The whole batch runs under the
// user's account lock: creators without an email or already queued are
// dropped, the rest are granted against the remaining daily quota, given
// send times in input order, and inserted. Exactly the number of rows
// written is charged; creators past the quota are skipped, never charged.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	if req.UserID == "" {
		return EnqueueResult{}, fmt.Errorf("enqueue: %w", core.ErrInvalidInput)
	}

	var res EnqueueResult

	candidates := make([]creator.Creator, 0, len(req.Creators))
	seenCreator := make(map[string]struct{}, len(req.Creators))
	seenEmail := make(map[string]struct{}, len(req.Creators))
	for _, c := range req.Creators {
		if !c.HasEmail() {
			res.SkippedNoEmail++
			continue
		}
		email := NormalizeEmail(c.Email)
		if _, dup := seenCreator[c.ID]; dup {
			res.SkippedDuplicate++
			continue
		}
		if _, dup := seenEmail[email]; dup {
			res.SkippedDuplicate++
			continue
		}
		seenCreator[c.ID] = struct{}{}
		seenEmail[email] = struct{}{}
		candidates = append(candidates, c)
	}

	if len(candidates) > 0 {
		err := s.store.WithinUserLock(ctx, req.UserID, func(tx TxStore, acct *account.Account) error {
			txRes, err := s.enqueueLocked(ctx, tx, acct, req, candidates)
			if err != nil {
				return err
			}
			res.Add(txRes)
			res.ItemIDs = txRes.ItemIDs
			return nil
		})
		if err != nil {
			return EnqueueResult{}, fmt.Errorf("enqueue: %w", err)
		}
	}

	res.Skipped = res.SkippedNoEmail + res.SkippedQuota + res.SkippedDuplicate

	core.RecordEnqueued(res.Queued)
	core.RecordSkipped(core.SkipReasonNoEmail, res.SkippedNoEmail)
	core.RecordSkipped(core.SkipReasonQuota, res.SkippedQuota)
	core.RecordSkipped(core.SkipReasonDuplicate, res.SkippedDuplicate)

	if res.Queued > 0 {
		s.publish(ctx, events.Event{
			Type:       events.TypeEnqueued,
			UserID:     req.UserID,
			CampaignID: req.CampaignID,
			Data:       map[string]any{"queued": res.Queued},
		})
	}

	s.logger.Info("creators enqueued",
		"user_id", req.UserID,
		"campaign_id", req.CampaignID,
		"requested", len(req.Creators),
		"queued", res.Queued,
		"skipped_no_email", res.SkippedNoEmail,
		"skipped_quota", res.SkippedQuota,
		"skipped_duplicate", res.SkippedDuplicate,
	)

	return res, nil
}

func (s *Service) enqueueLocked(
	ctx context.Context,
	tx TxStore,
	acct *account.Account,
	req EnqueueRequest,
	candidates []creator.Creator,
) (EnqueueResult, error) {
	var res EnqueueResult

	ids := make([]string, 0, len(candidates))
	emails := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
		emails = append(emails, NormalizeEmail(c.Email))
	}

	queuedCreators, activeEmails, err := tx.Queued(ctx, req.UserID, ids, emails)
	if err != nil {
		return res, err
	}

	fresh := make([]creator.Creator, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := queuedCreators[c.ID]; ok {
			res.SkippedDuplicate++
			continue
		}
		if _, ok := activeEmails[NormalizeEmail(c.Email)]; ok {
			res.SkippedDuplicate++
			continue
		}
		fresh = append(fresh, c)
	}

	grant := account.Grant(acct, len(fresh))
	res.SkippedQuota = len(fresh) - grant
	if grant == 0 {
		return res, nil
	}

	times := s.scheduler.Schedule(acct, grant)
	items := make([]Item, 0, grant)
	for i, c := range fresh[:grant] {
		items = append(items, Item{
			ID:                ItemID(req.UserID, c.ID),
			UserID:            req.UserID,
			CreatorID:         c.ID,
			CreatorEmail:      NormalizeEmail(c.Email),
			CampaignID:        req.CampaignID,
			Status:            StatusScheduled,
			ScheduledSendTime: times[i].UTC(),
		})
	}

	inserted, err := tx.Insert(ctx, items)
	if err != nil {
		return res, err
	}
	res.SkippedDuplicate += grant - len(inserted)

	if err := tx.Charge(ctx, req.UserID, len(inserted)); err != nil {
		return res, err
	}

	res.Queued = len(inserted)
	res.CreditsUsed = len(inserted)
	res.ItemIDs = inserted
	return res, nil
}

// EnqueueByIDs resolves creator ids then enqueues them. Unknown ids count
// as skipped for lack of an email.
func (s *Service) EnqueueByIDs(
	ctx context.Context,
	userID string,
	creatorIDs []string,
	campaignID string,
) (EnqueueResult, error) {
	found, err := s.creators.GetByIDs(ctx, creatorIDs)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue: %w", err)
	}

	byID := make(map[string]creator.Creator, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	ordered := make([]creator.Creator, 0, len(creatorIDs))
	for _, id := range creatorIDs {
		c, ok := byID[id]
		if !ok {
			c = creator.Creator{ID: id}
		}
		ordered = append(ordered, c)
	}

	return s.Enqueue(ctx, EnqueueRequest{UserID: userID, Creators: ordered, CampaignID: campaignID})
}

// RetryFailed puts the user's failed items back on the schedule now.
func (s *Service) RetryFailed(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.ResetFailed(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.logger.Info("failed items rescheduled", "user_id", userID, "count", n)
	return n, nil
}

func (s *Service) MarkReplied(ctx context.Context, ref ReplyRef) (*Item, error) {
	it, err := s.store.MarkReplied(ctx, ref, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeReplied,
		UserID:     it.UserID,
		ItemID:     it.ID,
		CreatorID:  it.CreatorID,
		CampaignID: it.CampaignID,
	})
	return it, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Item, int, error) {
	if params.Status != "" && !params.Status.Valid() {
		return nil, 0, fmt.Errorf("list queue: invalid status: %w", core.ErrInvalidInput)
	}
	return s.store.List(ctx, params)
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	return s.store.Stats(ctx, userID)
}

func (s *Service) CreatorIDs(ctx context.Context, userID string) ([]string, error) {
	return s.store.CreatorIDs(ctx, userID)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", "type", e.Type, "error", err)
	}
}

// Get returns the item only to its owner.
func (s *Service) Get(ctx context.Context, userID, id string) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, fmt.Errorf("get queue item: %w", core.ErrNotFound)
	}
	return it, nil
}
