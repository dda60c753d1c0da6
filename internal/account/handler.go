// AngelaMos | 2026
// handler.go

package account

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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/accounts", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
		r.Delete("/me", h.DeleteMe)
		r.Get("/me/quota", h.GetQuota)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListAccounts)
		r.Get("/{accountID}", h.GetAccount)
		r.Put("/{accountID}/plan", h.UpdatePlan)
		r.Put("/{accountID}/role", h.UpdateRole)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(a))
}

func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToQuotaResponse(a))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !core.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	a, err := h.service.UpdateMe(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(a))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params := ListAccountsParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Plan:     r.URL.Query().Get("plan"),
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, ToAccountResponseList(accounts), params.Page, params.PageSize, total)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(a))
}

// UpdatePlan is the manual counterpart of the billing webhook.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if !core.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	a, err := h.service.ApplyPlan(r.Context(), chi.URLParam(r, "accountID"), req.Plan)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(a))
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !core.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	a, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "accountID"), req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(a))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}
