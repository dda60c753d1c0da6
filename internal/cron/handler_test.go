// AngelaMos | 2026
// handler_test.go

package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/recovery"
	"github.com/carterperez-dev/creator-outreach/internal/sender"
)

const secret = "cron-secret"

type fakeServices struct {
	sendCalls   int
	sendErr     error
	resetErr    error
	resetAt     time.Time
	mailboxesAt time.Time
}

func (f *fakeServices) RunDue(context.Context, time.Time) (campaign.DueSummary, error) {
	return campaign.DueSummary{Campaigns: 2, Queued: 7}, nil
}

func (f *fakeServices) ResetDaily(_ context.Context, now time.Time) (account.ResetSummary, error) {
	f.resetAt = now
	return account.ResetSummary{Accounts: 4}, f.resetErr
}

func (f *fakeServices) SendScheduled(context.Context) (sender.Summary, error) {
	f.sendCalls++
	return sender.Summary{Sent: 3, Skipped: 1}, f.sendErr
}

func (f *fakeServices) RecoverAll(context.Context) (recovery.Summary, error) {
	return recovery.Summary{Users: 1, Queued: 2}, nil
}

type fakeMailboxes struct{ at time.Time }

func (f *fakeMailboxes) ResetDaily(_ context.Context, now time.Time) (int64, error) {
	f.at = now
	return 5, nil
}

type fixture struct {
	mr        *miniredis.Miniredis
	lock      *core.JobLock
	svc       *fakeServices
	mailboxes *fakeMailboxes
	router    chi.Router
}

var fixedNow = time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:        mr,
		lock:      core.NewJobLock(client),
		svc:       &fakeServices{},
		mailboxes: &fakeMailboxes{},
		router:    chi.NewRouter(),
	}

	jobs := NewJobs(Services{
		Campaigns: f.svc,
		Quotas:    f.svc,
		Mailboxes: f.mailboxes,
		Sender:    f.svc,
		Recovery:  f.svc,
	}, func() time.Time { return fixedNow })

	NewHandler(NewRunner(f.lock, time.Minute, nil), jobs, secret).RegisterRoutes(f.router)
	return f
}

func (f *fixture) call(t *testing.T, method, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body core.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	data, _ := body.Data.(map[string]any)
	return rec, data
}

func TestCronRequiresSecret(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.call(t, http.MethodPost, "/cron/send-emails", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.call(t, http.MethodPost, "/cron/send-emails", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.svc.sendCalls)
}

func TestCronRunsJobOnGetAndPost(t *testing.T) {
	f := newFixture(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec, data := f.call(t, method, "/cron/send-emails", secret)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, data["skipped"])
		summary := data["summary"].(map[string]any)
		assert.InDelta(t, 3, summary["sent"], 0)
	}
	assert.Equal(t, 2, f.svc.sendCalls)
	assert.False(t, f.mr.Exists("outreach:lock:send-emails"))
}

func TestCronSkipsWhenJobIsRunning(t *testing.T) {
	f := newFixture(t)

	_, err := f.lock.Acquire(context.Background(), JobSendEmails, time.Minute)
	require.NoError(t, err)

	rec, data := f.call(t, http.MethodPost, "/cron/send-emails", secret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data["skipped"])
	assert.Zero(t, f.svc.sendCalls)
}

func TestCronResetQuotasCoversAccountsAndMailboxes(t *testing.T) {
	f := newFixture(t)

	rec, data := f.call(t, http.MethodPost, "/cron/reset-quotas", secret)
	require.Equal(t, http.StatusOK, rec.Code)

	summary := data["summary"].(map[string]any)
	assert.InDelta(t, 4, summary["accounts_reset"], 0)
	assert.InDelta(t, 5, summary["mailboxes_reset"], 0)
	assert.Equal(t, fixedNow, f.svc.resetAt)
	assert.Equal(t, fixedNow, f.mailboxes.at)
}

func TestCronResetQuotasResetsMailboxesWhenAccountResetFails(t *testing.T) {
	f := newFixture(t)
	f.svc.resetErr = errors.New("accounts table locked")

	rec, _ := f.call(t, http.MethodPost, "/cron/reset-quotas", secret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, fixedNow, f.mailboxes.at)
}

func TestCronJobFailureReturns500AndReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.svc.sendErr = errors.New("smtp down")

	rec, _ := f.call(t, http.MethodPost, "/cron/send-emails", secret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, f.mr.Exists("outreach:lock:send-emails"))
}

func TestCronRoutesEveryJob(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{JobRunCampaigns, JobResetQuotas, JobSendEmails, JobRecoverQueue} {
		rec, _ := f.call(t, http.MethodGet, "/cron/"+name, secret)
		assert.Equal(t, http.StatusOK, rec.Code, name)
	}
}
