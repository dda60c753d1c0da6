// AngelaMos | 2026
// handler.go

package queue

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/queue", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Enqueue)
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Post("/retry", h.Retry)
		r.Get("/{itemID}", h.Get)
	})
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var body EnqueueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(body); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.EnqueueByIDs(
		r.Context(),
		middleware.GetUserID(r.Context()),
		body.CreatorIDs,
		body.CampaignID,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		UserID:     middleware.GetUserID(r.Context()),
		Status:     Status(r.URL.Query().Get("status")),
		CampaignID: r.URL.Query().Get("campaign_id"),
		Page:       core.QueryInt(r, "page", 1),
		PageSize:   core.QueryInt(r, "page_size", 20),
	}

	items, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, items, params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "itemID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, it)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RetryFailed(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, RetryResponse{Rescheduled: n})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "queue item")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, account.ErrQuotaExceeded):
		core.Conflict(w, "daily send quota exceeded")
	default:
		core.InternalServerError(w, err)
	}
}
