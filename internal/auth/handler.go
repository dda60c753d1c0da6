// AngelaMos | 2026
// handler.go

package auth

import (
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

// RegisterRoutes mounts signup and login unauthenticated. /auth/me reports
// the caller's plan and sending timezone.
func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticator).Get("/me", h.Me)
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !core.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	switch {
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case err != nil:
		core.InternalServerError(w, err)
	default:
		core.Created(w, resp)
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !core.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.UnauthorizedError("invalid email or password"))
	case err != nil:
		core.InternalServerError(w, err)
	default:
		core.OK(w, resp)
	}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.service.CurrentAccount(r.Context(), middleware.GetUserID(r.Context()))
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	case err != nil:
		core.InternalServerError(w, err)
	default:
		core.OK(w, me)
	}
}
