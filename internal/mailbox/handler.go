// AngelaMos | 2026
// handler.go

package mailbox

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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
	r.Route("/mailboxes", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Connect)
		r.Get("/{mailboxID}", h.Get)
		r.Put("/{mailboxID}", h.Update)
		r.Delete("/{mailboxID}", h.Disconnect)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponseList(boxes))
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.Connect(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.Created(w, ToResponse(m))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "mailboxID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponse(m))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "mailboxID"),
		req,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponse(m))
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := h.service.Disconnect(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "mailboxID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "mailbox")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrDuplicateKey):
		core.Conflict(w, "mailbox already connected")
	default:
		core.InternalServerError(w, err)
	}
}
