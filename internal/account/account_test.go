// AngelaMos | 2026
// account_test.go

package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/creator-outreach/internal/auth"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/middleware"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Create(ctx context.Context, a *Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*Account)
	return a, args.Error(1)
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*Account)
	return a, args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, a *Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockRepo) UpdatePlan(ctx context.Context, id, plan string, quota int) error {
	return m.Called(ctx, id, plan, quota).Error(0)
}

func (m *mockRepo) UpdateRole(ctx context.Context, id, role string) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *mockRepo) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) List(ctx context.Context, p ListAccountsParams) ([]Account, int, error) {
	args := m.Called(ctx, p)
	list, _ := args.Get(0).([]Account)
	return list, args.Int(1), args.Error(2)
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id string) (*Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*Account)
	return a, args.Error(1)
}

func (m *mockRepo) AddUsage(ctx context.Context, id string, amount int) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ResetDailyBatch(ctx context.Context, today time.Time, limit int) (int64, error) {
	args := m.Called(ctx, today, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) ResetMonthlyBatch(ctx context.Context, monthStart time.Time, limit int) (int64, error) {
	args := m.Called(ctx, monthStart, limit)
	return args.Get(0).(int64), args.Error(1)
}

func TestRemainingAndGrant(t *testing.T) {
	tests := []struct {
		name      string
		acct      Account
		requested int
		remaining int
		granted   int
	}{
		{"fits", Account{Plan: PlanPro, EmailQuotaDaily: 150, EmailUsedToday: 100}, 20, 50, 20},
		{"partial", Account{Plan: PlanPro, EmailQuotaDaily: 150, EmailUsedToday: 140}, 20, 10, 10},
		{"exhausted", Account{Plan: PlanFree, EmailQuotaDaily: 10, EmailUsedToday: 10}, 5, 0, 0},
		{"downgraded below usage", Account{Plan: PlanFree, EmailQuotaDaily: 10, EmailUsedToday: 40}, 5, 0, 0},
		{"unlimited", Account{Plan: PlanEnterprise, EmailUsedToday: 100000}, 5000, Unlimited, 5000},
		{"nothing requested", Account{Plan: PlanPro, EmailQuotaDaily: 150}, 0, 150, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.remaining, tt.acct.Remaining())
			assert.Equal(t, tt.granted, Grant(&tt.acct, tt.requested))
		})
	}
}

func TestDailyQuotaFor(t *testing.T) {
	q, err := DailyQuotaFor(PlanGrowth)
	require.NoError(t, err)
	assert.Equal(t, 300, q)

	_, err = DailyQuotaFor("platinum")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&Account{}).Location())
	assert.Equal(t, time.UTC, (&Account{Timezone: "Mars/Olympus"}).Location())
}

func TestLedgerRemaining(t *testing.T) {
	repo := &mockRepo{}
	ledger := NewLedger(repo, nil)

	repo.On("GetByID", mock.Anything, "u1").
		Return(&Account{Plan: PlanBasic, EmailQuotaDaily: 50, EmailUsedToday: 48}, nil).Once()
	repo.On("GetByID", mock.Anything, "u2").
		Return(&Account{Plan: PlanEnterprise, EmailUsedToday: 9000}, nil).Once()
	repo.On("GetByID", mock.Anything, "ghost").Return(nil, core.ErrNotFound).Once()

	left, err := ledger.Remaining(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	left, err = ledger.Remaining(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, Unlimited, left)

	_, err = ledger.Remaining(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerIncrement(t *testing.T) {
	repo := &mockRepo{}
	ledger := NewLedger(repo, nil)

	repo.On("AddUsage", mock.Anything, "u1", 3).Return(true, nil).Once()
	repo.On("AddUsage", mock.Anything, "u1", 8).Return(false, nil).Once()

	ok, err := ledger.Increment(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Increment(context.Background(), "u1", 8)
	require.NoError(t, err)
	assert.False(t, ok, "over-quota increments are refused, not clamped")
	repo.AssertExpectations(t)
}

func TestResetDailyDrainsBatches(t *testing.T) {
	repo := &mockRepo{}
	ledger := NewLedger(repo, nil)
	now := time.Date(2026, 3, 1, 0, 2, 0, 0, time.UTC)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(resetBatchSize), nil).Twice()
	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(3), nil).Once()
	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(0), nil).Once()
	repo.On("ResetMonthlyBatch", mock.Anything, today, resetBatchSize).Return(int64(7), nil).Once()
	repo.On("ResetMonthlyBatch", mock.Anything, today, resetBatchSize).Return(int64(0), nil).Once()

	summary, err := ledger.ResetDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), summary.Accounts)
	assert.Equal(t, int64(7), summary.MonthlyResets)
	assert.True(t, summary.MonthlyApplied)
	repo.AssertExpectations(t)
}

func TestResetDailyRevisitsAccountsPassedOverByAShortBatch(t *testing.T) {
	repo := &mockRepo{}
	ledger := NewLedger(repo, nil)
	now := time.Date(2026, 3, 14, 0, 0, 5, 0, time.UTC)
	today := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	// The first batch misses the one account whose row an enqueue holds;
	// the next batch picks it up once the enqueue commits.
	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(41), nil).Once()
	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(1), nil).Once()
	repo.On("ResetDailyBatch", mock.Anything, today, resetBatchSize).Return(int64(0), nil).Once()
	repo.On("ResetMonthlyBatch", mock.Anything, mock.Anything, resetBatchSize).Return(int64(0), nil)

	summary, err := ledger.ResetDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), summary.Accounts)
	repo.AssertExpectations(t)
}

func TestResetDailyIsNoOpWhenAlreadyReset(t *testing.T) {
	repo := &mockRepo{}
	ledger := NewLedger(repo, nil)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	repo.On("ResetDailyBatch", mock.Anything, mock.Anything, resetBatchSize).Return(int64(0), nil)
	repo.On("ResetMonthlyBatch", mock.Anything, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), resetBatchSize).
		Return(int64(0), nil)

	summary, err := ledger.ResetDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, summary.Accounts)
	assert.False(t, summary.MonthlyApplied)
}

func TestApplyPlanKeepsUsage(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, "UTC", nil)

	repo.On("UpdatePlan", mock.Anything, "u1", PlanScale, 750).Return(nil).Once()
	repo.On("GetByID", mock.Anything, "u1").
		Return(&Account{ID: "u1", Plan: PlanScale, EmailQuotaDaily: 750, EmailUsedToday: 42}, nil)

	a, err := svc.ApplyPlan(context.Background(), "u1", PlanScale)
	require.NoError(t, err)
	assert.Equal(t, 750, a.EmailQuotaDaily)
	assert.Equal(t, 42, a.EmailUsedToday)

	_, err = svc.ApplyPlan(context.Background(), "u1", "platinum")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	repo.AssertNumberOfCalls(t, "UpdatePlan", 1)
}

func TestCreateStartsOnFreePlan(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, "Europe/Berlin", nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *Account) bool {
		return a.Plan == PlanFree && a.EmailQuotaDaily == 10 &&
			a.Email == "ana@example.com" && a.Timezone == "Europe/Berlin" &&
			a.BusinessHoursOnly
	})).Return(nil).Once()

	info, err := svc.Create(context.Background(), auth.NewAccount{
		Email:        "Ana@Example.com",
		PasswordHash: "hash",
		Name:         "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, PlanFree, info.Plan)
	assert.Equal(t, RoleUser, info.Role)
	assert.Equal(t, "Europe/Berlin", info.Timezone)

	off := false
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *Account) bool {
		return a.Timezone == "Asia/Tokyo" && !a.BusinessHoursOnly
	})).Return(nil).Once()

	info, err = svc.Create(context.Background(), auth.NewAccount{
		Email:             "kenji@example.com",
		Name:              "Kenji",
		Timezone:          "Asia/Tokyo",
		BusinessHoursOnly: &off,
	})
	require.NoError(t, err)
	assert.False(t, info.BusinessHoursOnly)
}

func TestGetQuotaHandler(t *testing.T) {
	repo := &mockRepo{}
	repo.On("GetByID", mock.Anything, "u1").
		Return(&Account{ID: "u1", Plan: PlanBasic, EmailQuotaDaily: 50, EmailUsedToday: 12}, nil)

	r := chi.NewRouter()
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, "u1")))
		})
	}
	NewHandler(NewService(repo, "UTC", nil)).RegisterRoutes(r, withUser)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/me/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data QuotaResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 38, body.Data.Remaining)
	assert.Equal(t, 50, body.Data.DailyLimit)
	assert.False(t, body.Data.Unlimited)
}
