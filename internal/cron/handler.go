// AngelaMos | 2026
// handler.go

package cron

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/middleware"
)

type Handler struct {
	runner *Runner
	jobs   []Job
	secret string
}

func NewHandler(runner *Runner, jobs []Job, secret string) *Handler {
	return &Handler{runner: runner, jobs: jobs, secret: secret}
}

// RegisterRoutes mounts /cron/<job> for GET and POST. External schedulers
// differ in which verb they send.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(h.secret))

		for _, job := range h.jobs {
			handle := h.handle(job)
			r.Get("/"+job.Name, handle)
			r.Post("/"+job.Name, handle)
		}
	})
}

func (h *Handler) handle(job Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.runner.Run(r.Context(), job)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		core.OK(w, out)
	}
}
