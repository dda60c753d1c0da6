// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okChecker(context.Context) error   { return nil }
func downChecker(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(
		NamedChecker{Name: "database", Checker: CheckerFunc(okChecker)},
		NamedChecker{Name: "redis", Checker: CheckerFunc(okChecker)},
	)

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Checks, 2)
	assert.Equal(t, "database", body.Checks[0].Name)
	assert.Equal(t, "redis", body.Checks[1].Name)
}

func TestReadinessDegradedWhenBrokerDown(t *testing.T) {
	h := NewHandler(
		NamedChecker{Name: "database", Checker: CheckerFunc(okChecker)},
		NamedChecker{Name: "broker", Checker: CheckerFunc(downChecker), Optional: true},
	)

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, body.Status)
	assert.False(t, body.Checks[1].Healthy)
	assert.True(t, body.Checks[1].Optional)
	assert.Equal(t, "ping failed", body.Checks[1].Message)
}

func TestReadinessUnavailableWhenDatabaseDown(t *testing.T) {
	h := NewHandler(
		NamedChecker{Name: "database", Checker: CheckerFunc(downChecker)},
		NamedChecker{Name: "broker", Checker: CheckerFunc(downChecker), Optional: true},
	)

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnavailable, body.Status)
}

func TestReadinessMissingChecker(t *testing.T) {
	h := NewHandler(NamedChecker{Name: "redis"})

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis checker not configured", body.Checks[0].Message)
}

func TestNotReady(t *testing.T) {
	h := NewHandler()
	h.SetReady(false)

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusNotReady, body.Status)
}

func TestShutdownFlipsLiveness(t *testing.T) {
	h := NewHandler()
	h.SetShutdown(true)

	rec, body := serve(t, h, "/livez")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}
