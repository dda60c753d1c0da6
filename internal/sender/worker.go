// AngelaMos | 2026
// worker.go

package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/events"
	"github.com/carterperez-dev/creator-outreach/internal/mail"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
)

const maxErrorLen = 500

type QueueStore interface {
	ClaimDue(ctx context.Context, params queue.ClaimParams) ([]queue.Item, error)
	MarkSent(ctx context.Context, id, owner string, info queue.SentInfo) error
	MarkFailed(ctx context.Context, id, owner, lastError string, nextRetryAt *time.Time) error
	Release(ctx context.Context, id, owner string) error
}

type CreatorSource interface {
	GetByID(ctx context.Context, id string) (*creator.Creator, error)
}

type AccountSource interface {
	GetByID(ctx context.Context, id string) (*account.Account, error)
}

type Mailboxes interface {
	Select(ctx context.Context, userID string) (*mailbox.Mailbox, error)
	Credentials(m *mailbox.Mailbox) (mail.Credentials, error)
	ReserveSend(ctx context.Context, id string) (bool, error)
	ReleaseSend(ctx context.Context, id string) error
	MarkReconnectRequired(ctx context.Context, m *mailbox.Mailbox, cause error) error
}

type Pacer interface {
	Allow(ctx context.Context, mailboxID string) (bool, time.Duration)
}

type Deps struct {
	Queue     QueueStore
	Creators  CreatorSource
	Accounts  AccountSource
	Mailboxes Mailboxes
	Pacer     Pacer
	Transport mail.Transport
	Composer  mail.Composer
	Publisher events.Publisher
	Logger    *slog.Logger
}

type Summary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

// Worker drains due queue items. Several workers may run at once: each
// claims a disjoint batch under its own lease owner.
type Worker struct {
	deps     Deps
	cfg      config.WorkerConfig
	fromName string
	owner    string
	backoff  *backoff.Backoff
	now      func() time.Time
}

func NewWorker(deps Deps, cfg config.WorkerConfig, fromName string) *Worker {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Composer == nil {
		deps.Composer = mail.DefaultComposer()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 20
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}

	return &Worker{
		deps:     deps,
		cfg:      cfg,
		fromName: fromName,
		owner:    leaseOwner(),
		backoff: &backoff.Backoff{
			Min:    cfg.RetryBase,
			Max:    cfg.RetryMax,
			Factor: 2,
			Jitter: true,
		},
		now: time.Now,
	}
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String()[:8])
}

// SendScheduled claims and processes batches until nothing is due, ctx is
// done, or the batch cap is reached. Skipped items keep their lease for the
// rest of the run so the same run does not claim them again; they are
// released before returning.
func (w *Worker) SendScheduled(ctx context.Context) (Summary, error) {
	ctx, span := core.StartSpan(ctx, "sender.send_scheduled",
		attribute.String("worker.owner", w.owner),
	)
	defer span.End()

	start := time.Now()
	var summary Summary
	var held []queue.Item
	defer func() {
		w.releaseAll(context.WithoutCancel(ctx), held)
	}()

	noMailbox := make(map[string]bool)

	for summary.Batches < w.cfg.MaxBatches {
		if ctx.Err() != nil {
			break
		}

		items, err := w.deps.Queue.ClaimDue(ctx, queue.ClaimParams{
			Owner:      w.owner,
			Now:        w.now(),
			LeaseTTL:   w.cfg.LeaseTTL,
			Limit:      w.cfg.BatchSize,
			MaxRetries: w.cfg.MaxRetries,
		})
		if err != nil {
			core.SetSpanError(ctx, err)
			return summary, fmt.Errorf("claim due: %w", err)
		}
		if len(items) == 0 {
			break
		}
		summary.Batches++

		for i := range items {
			if ctx.Err() != nil {
				held = append(held, items[i:]...)
				break
			}

			switch w.process(ctx, &items[i], noMailbox) {
			case outcomeSent:
				summary.Sent++
			case outcomeFailed:
				summary.Failed++
			default:
				summary.Skipped++
				held = append(held, items[i])
			}
		}

		if len(items) < w.cfg.BatchSize {
			break
		}
	}

	core.ObserveJob("send_emails", time.Since(start).Seconds())
	w.deps.Logger.Info("send run complete",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"batches", summary.Batches,
		"duration", time.Since(start),
	)

	return summary, nil
}

//nolint:gocyclo // linear pipeline with one exit per outcome
func (w *Worker) process(ctx context.Context, it *queue.Item, noMailbox map[string]bool) outcome {
	ctx, span := core.StartSpan(ctx, "sender.send_item",
		attribute.String("queue.item_id", it.ID),
		attribute.String("user.id", it.UserID),
		attribute.Int("queue.retry_count", it.RetryCount),
	)
	defer span.End()

	log := w.deps.Logger.With("item_id", it.ID, "user_id", it.UserID)

	if noMailbox[it.UserID] {
		return w.skip(ctx, core.SkipReasonNoMailbox)
	}

	cr, err := w.deps.Creators.GetByID(ctx, it.CreatorID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return w.fail(ctx, it, fmt.Errorf("creator missing: %w", mail.ErrPermanent))
		}
		log.Warn("load creator failed", "error", err)
		return w.skip(ctx, core.SkipReasonLookup)
	}

	acct, err := w.deps.Accounts.GetByID(ctx, it.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return w.fail(ctx, it, fmt.Errorf("account missing: %w", mail.ErrPermanent))
		}
		log.Warn("load account failed", "error", err)
		return w.skip(ctx, core.SkipReasonLookup)
	}

	mb, err := w.deps.Mailboxes.Select(ctx, it.UserID)
	if err != nil {
		if errors.Is(err, mailbox.ErrNoMailbox) {
			noMailbox[it.UserID] = true
			return w.skip(ctx, core.SkipReasonNoMailbox)
		}
		log.Warn("select mailbox failed", "error", err)
		return w.skip(ctx, core.SkipReasonLookup)
	}
	span.SetAttributes(attribute.String("mailbox.id", mb.ID))

	if w.deps.Pacer != nil {
		if ok, _ := w.deps.Pacer.Allow(ctx, mb.ID); !ok {
			return w.skip(ctx, core.SkipReasonPacing)
		}
	}

	reserved, err := w.deps.Mailboxes.ReserveSend(ctx, mb.ID)
	if err != nil {
		log.Warn("reserve send failed", "mailbox_id", mb.ID, "error", err)
		return w.skip(ctx, core.SkipReasonLookup)
	}
	if !reserved {
		return w.skip(ctx, core.SkipReasonMailbox)
	}

	creds, err := w.deps.Mailboxes.Credentials(mb)
	if err != nil {
		w.releaseSend(ctx, mb.ID)
		w.reconnect(ctx, it, mb, err)
		return w.skip(ctx, core.SkipReasonReconnect)
	}

	msg, err := w.deps.Composer.Compose(ctx, mail.ComposeInput{
		Sender: mail.Sender{Name: w.senderName(acct, mb), Email: mb.Email},
		Recipient: mail.Recipient{
			Email:       it.CreatorEmail,
			Handle:      cr.Handle,
			DisplayName: cr.DisplayName,
			Platform:    cr.Platform,
			Niche:       cr.Niche,
			Followers:   cr.Followers,
		},
		CampaignID: it.CampaignID,
		ThreadID:   it.ProviderThreadID,
	})
	if err != nil {
		w.releaseSend(ctx, mb.ID)
		return w.fail(ctx, it, fmt.Errorf("compose: %w", err))
	}

	receipt, err := w.deps.Transport.Send(ctx, creds, msg)
	switch {
	case err == nil:
		return w.sent(ctx, it, mb, receipt)
	case errors.Is(err, mail.ErrAuthExpired):
		w.releaseSend(ctx, mb.ID)
		w.reconnect(ctx, it, mb, err)
		return w.skip(ctx, core.SkipReasonReconnect)
	default:
		w.releaseSend(ctx, mb.ID)
		core.SetSpanError(ctx, err)
		return w.fail(ctx, it, err)
	}
}

func (w *Worker) sent(
	ctx context.Context,
	it *queue.Item,
	mb *mailbox.Mailbox,
	receipt mail.Receipt,
) outcome {
	sentAt := w.now()
	err := w.deps.Queue.MarkSent(ctx, it.ID, w.owner, queue.SentInfo{
		MailboxID:         mb.ID,
		ProviderMessageID: receipt.MessageID,
		ProviderThreadID:  receipt.ThreadID,
		SentAt:            sentAt,
	})
	if err != nil {
		w.deps.Logger.Error("message sent but not recorded",
			"item_id", it.ID,
			"provider_message_id", receipt.MessageID,
			"error", err,
		)
	}

	core.RecordSend("sent")
	w.publish(ctx, events.Event{
		Type:       events.TypeSent,
		UserID:     it.UserID,
		ItemID:     it.ID,
		CreatorID:  it.CreatorID,
		CampaignID: it.CampaignID,
		Data: map[string]any{
			"mailbox_id":          mb.ID,
			"provider_message_id": receipt.MessageID,
			"provider_thread_id":  receipt.ThreadID,
		},
		OccurredAt: sentAt,
	})

	return outcomeSent
}

// fail records the attempt. Permanent errors and the final allowed attempt
// leave next_retry_at empty so the item is never claimed again.
func (w *Worker) fail(ctx context.Context, it *queue.Item, cause error) outcome {
	attempt := it.RetryCount + 1
	permanent := errors.Is(cause, mail.ErrPermanent)

	var next *time.Time
	if !permanent && attempt < w.cfg.MaxRetries {
		t := w.now().Add(w.backoff.ForAttempt(float64(it.RetryCount)))
		next = &t
	}

	lastError := truncateError(cause.Error(), maxErrorLen)

	if err := w.deps.Queue.MarkFailed(ctx, it.ID, w.owner, lastError, next); err != nil {
		w.deps.Logger.Error("record failure", "item_id", it.ID, "error", err)
	}

	w.deps.Logger.Warn("send failed",
		"item_id", it.ID,
		"user_id", it.UserID,
		"attempt", attempt,
		"permanent", next == nil,
		"error", cause,
	)

	core.RecordSend("failed")
	w.publish(ctx, events.Event{
		Type:       events.TypeFailed,
		UserID:     it.UserID,
		ItemID:     it.ID,
		CreatorID:  it.CreatorID,
		CampaignID: it.CampaignID,
		Data: map[string]any{
			"retry_count": attempt,
			"final":       next == nil,
			"error":       lastError,
		},
		OccurredAt: w.now(),
	})

	return outcomeFailed
}

func (w *Worker) reconnect(ctx context.Context, it *queue.Item, mb *mailbox.Mailbox, cause error) {
	if err := w.deps.Mailboxes.MarkReconnectRequired(ctx, mb, cause); err != nil {
		w.deps.Logger.Error("mark mailbox reconnect", "mailbox_id", mb.ID, "error", err)
	}
	w.publish(ctx, events.Event{
		Type:   events.TypeReconnect,
		UserID: it.UserID,
		Data: map[string]any{
			"mailbox_id": mb.ID,
			"email":      mb.Email,
			"code":       "MAILBOX_RECONNECT_REQUIRED",
		},
		OccurredAt: w.now(),
	})
}

func (w *Worker) skip(ctx context.Context, reason string) outcome {
	core.AddSpanEvent(ctx, "item.skipped", attribute.String("skip.reason", reason))
	core.RecordSkipped(reason, 1)
	return outcomeSkipped
}

func (w *Worker) releaseSend(ctx context.Context, mailboxID string) {
	if err := w.deps.Mailboxes.ReleaseSend(ctx, mailboxID); err != nil {
		w.deps.Logger.Warn("release mailbox slot", "mailbox_id", mailboxID, "error", err)
	}
}

func (w *Worker) releaseAll(ctx context.Context, items []queue.Item) {
	for i := range items {
		if err := w.deps.Queue.Release(ctx, items[i].ID, w.owner); err != nil {
			w.deps.Logger.Warn("release item", "item_id", items[i].ID, "error", err)
		}
	}
}

func (w *Worker) publish(ctx context.Context, event events.Event) {
	if err := w.deps.Publisher.Publish(ctx, event); err != nil {
		w.deps.Logger.Warn("publish event",
			"type", event.Type,
			"item_id", event.ItemID,
			"error", err,
		)
	}
}

func (w *Worker) senderName(acct *account.Account, mb *mailbox.Mailbox) string {
	switch {
	case mb.DisplayName != "":
		return mb.DisplayName
	case acct.Name != "":
		return acct.Name
	default:
		return w.fromName
	}
}

// truncateError cuts s to at most n bytes on a rune boundary. last_error
// is a TEXT column and Postgres rejects invalid UTF-8.
func truncateError(s string, n int) string {
	if len(s) <= n {
		return strings.ToValidUTF8(s, "?")
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.ToValidUTF8(s[:n], "?")
}
