// AngelaMos | 2026
// handler.go

package campaign

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/discovery"
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
	r.Route("/campaigns", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{campaignID}", h.Get)
		r.Put("/{campaignID}", h.Update)
		r.Delete("/{campaignID}", h.Delete)
		r.Post("/{campaignID}/run", h.Run)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponseList(campaigns))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	c, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.Created(w, ToResponse(c))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "campaignID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponse(c))
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

	c, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "campaignID"),
		req,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToResponse(c))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "campaignID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.RunByID(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "campaignID"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "campaign")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, discovery.ErrProviderUnavailable):
		core.JSON(w, http.StatusBadGateway, core.Response{
			Success: false,
			Error: &core.ErrorBody{
				Code:    "PROVIDER_UNAVAILABLE",
				Message: "creator search is temporarily unavailable",
			},
		})
	default:
		core.InternalServerError(w, err)
	}
}
