// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
)

const (
	SignatureHeader = "X-Signature"
	maxBodyBytes    = 1 << 20
)

type Enricher interface {
	ApplyEnrichment(ctx context.Context, creatorID, email string) error
}

type PlanApplier interface {
	ApplyPlan(ctx context.Context, userID, plan string) (*account.Account, error)
}

type ReplyMarker interface {
	MarkReplied(ctx context.Context, ref queue.ReplyRef) (*queue.Item, error)
}

type EnrichmentRequest struct {
	CreatorID string `json:"creator_id" validate:"required"`
	Email     string `json:"email"      validate:"omitempty,email"`
}

type BillingRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Plan   string `json:"plan"    validate:"required"`
}

type ReplyRequest struct {
	QueueItemID string `json:"queue_item_id" validate:"required_without=ThreadID"`
	ThreadID    string `json:"thread_id"     validate:"required_without=QueueItemID"`
}

type Handler struct {
	enricher  Enricher
	plans     PlanApplier
	replies   ReplyMarker
	secrets   config.WebhookConfig
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(
	enricher Enricher,
	plans PlanApplier,
	replies ReplyMarker,
	secrets config.WebhookConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		enricher:  enricher,
		plans:     plans,
		replies:   replies,
		secrets:   secrets,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/enrichment", h.Enrichment)
		r.Post("/billing", h.Billing)
		r.Post("/replies", h.Replies)
	})
}

func (h *Handler) Enrichment(w http.ResponseWriter, r *http.Request) {
	var req EnrichmentRequest
	if !h.decode(w, r, h.secrets.EnrichmentSecret, &req) {
		return
	}

	if err := h.enricher.ApplyEnrichment(r.Context(), req.CreatorID, req.Email); err != nil {
		h.writeError(w, err, "creator")
		return
	}

	core.OK(w, map[string]any{"creator_id": req.CreatorID, "email_found": req.Email != ""})
}

func (h *Handler) Billing(w http.ResponseWriter, r *http.Request) {
	var req BillingRequest
	if !h.decode(w, r, h.secrets.BillingSecret, &req) {
		return
	}

	acct, err := h.plans.ApplyPlan(r.Context(), req.UserID, req.Plan)
	if err != nil {
		h.writeError(w, err, "account")
		return
	}

	core.OK(w, account.ToQuotaResponse(acct))
}

func (h *Handler) Replies(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if !h.decode(w, r, h.secrets.ReplySecret, &req) {
		return
	}

	it, err := h.replies.MarkReplied(r.Context(), queue.ReplyRef{
		ItemID:   req.QueueItemID,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		h.writeError(w, err, "queue item")
		return
	}

	core.OK(w, it)
}

// decode verifies the HMAC over the raw body before anything is parsed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, secret string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if !core.VerifySignature(secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", "path", r.URL.Path)
		core.Unauthorized(w, "invalid signature")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}
