// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a plain ping function, such as an AMQP connection
// check, to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// NamedChecker is one dependency checked by /readyz. An Optional
// dependency that fails degrades the report without failing readiness:
// the queue keeps working when only event fan-out is down.
type NamedChecker struct {
	Name     string
	Checker  Checker
	Optional bool
}

const (
	StatusOK           = "ok"
	StatusDegraded     = "degraded"
	StatusUnavailable  = "unavailable"
	StatusNotReady     = "not_ready"
	StatusShuttingDown = "shutting_down"
)

type Handler struct {
	checkers []NamedChecker
	timeout  time.Duration
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(checkers ...NamedChecker) *Handler {
	h := &Handler{checkers: checkers, timeout: 5 * time.Second}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusShuttingDown})
		return
	}
	writeStatus(w, http.StatusOK, StatusResponse{Status: StatusOK})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.shutdown.Load():
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusShuttingDown})
		return
	case !h.ready.Load():
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusNotReady})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := h.checkAll(ctx)

	status, code := StatusOK, http.StatusOK
	for i, c := range checks {
		if c.Healthy {
			continue
		}
		if !h.checkers[i].Optional {
			status, code = StatusUnavailable, http.StatusServiceUnavailable
			break
		}
		status = StatusDegraded
	}

	writeStatus(w, code, ReadinessResponse{Status: status, Checks: checks})
}

func (h *Handler) checkAll(ctx context.Context) []HealthCheck {
	checks := make([]HealthCheck, len(h.checkers))

	var g errgroup.Group
	for i, nc := range h.checkers {
		g.Go(func() error {
			checks[i] = runCheck(ctx, nc)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // results land in checks

	return checks
}

func runCheck(ctx context.Context, nc NamedChecker) HealthCheck {
	check := HealthCheck{Name: nc.Name, Optional: nc.Optional}
	if nc.Checker == nil {
		check.Message = nc.Name + " checker not configured"
		return check
	}

	start := time.Now()
	err := nc.Checker.Ping(ctx)
	check.Latency = time.Since(start).String()
	check.Healthy = err == nil
	if err != nil {
		check.Message = "ping failed"
	}
	return check
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
