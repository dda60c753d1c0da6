// AngelaMos | 2026
// service_test.go

package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/creator/creatortest"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
	"github.com/carterperez-dev/creator-outreach/internal/queue/queuetest"
)

var fixedNow = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func newAccount(id, plan string, quota, used int) *account.Account {
	return &account.Account{
		ID:                id,
		Plan:              plan,
		EmailQuotaDaily:   quota,
		EmailUsedToday:    used,
		BusinessHoursOnly: true,
		Timezone:          "UTC",
	}
}

func newTestService(store queue.Store, creators creator.Repository) *queue.Service {
	scheduler := queue.NewScheduler(config.OutreachConfig{WindowStartHour: 9, WindowEndHour: 17, MinGapMinutes: 10})
	scheduler.SetClock(func() time.Time { return fixedNow })

	svc := queue.NewService(store, creators, scheduler, nil, nil)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func makeCreators(prefix string, n int) []creator.Creator {
	out := make([]creator.Creator, n)
	for i := range out {
		out[i] = creator.Creator{
			ID:       fmt.Sprintf("%s-%02d", prefix, i),
			Platform: "instagram",
			Handle:   fmt.Sprintf("%s%02d", prefix, i),
			Email:    fmt.Sprintf("%s%02d@example.com", prefix, i),
		}
	}
	return out
}

func TestEnqueueSkipsPastQuotaWithoutCharging(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanBasic, 50, 47))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	res, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{
		UserID:   "u1",
		Creators: makeCreators("c", 10),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Queued)
	assert.Equal(t, 7, res.Skipped)
	assert.Equal(t, 7, res.SkippedQuota)
	assert.Equal(t, 3, res.CreditsUsed)

	acct, ok := store.Account("u1")
	require.True(t, ok)
	assert.Equal(t, 50, acct.EmailUsedToday)

	items := store.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "c-00", items[0].CreatorID)
	assert.Equal(t, "c-02", items[2].CreatorID)
}

func TestEnqueueAssignsIncreasingTimesInInputOrder(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	_, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: makeCreators("c", 5)})
	require.NoError(t, err)

	items := store.Items()
	require.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, fmt.Sprintf("c-%02d", i), it.CreatorID)
		assert.Equal(t, queue.StatusScheduled, it.Status)
		assert.Equal(t, queue.ItemID("u1", it.CreatorID), it.ID)
	}
	assert.Equal(t, time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), items[0].ScheduledSendTime)
	assert.Equal(t, time.Date(2026, time.March, 2, 10, 36, 0, 0, time.UTC), items[1].ScheduledSendTime)
}

func TestEnqueueSkipsCreatorsWithoutEmail(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	creators := makeCreators("c", 3)
	creators[1].Email = "  "

	res, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: creators})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 1, res.SkippedNoEmail)
	assert.Equal(t, 1, res.Skipped)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())
	creators := makeCreators("c", 4)

	first, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: creators})
	require.NoError(t, err)
	second, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: creators})
	require.NoError(t, err)

	assert.Equal(t, 4, first.Queued)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 4, second.SkippedDuplicate)
	assert.Len(t, store.Items(), 4)

	acct, _ := store.Account("u1")
	assert.Equal(t, 4, acct.EmailUsedToday)
}

func TestEnqueueRejectsSecondActiveItemForSameEmail(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	a := creator.Creator{ID: "a", Email: "Shared@Example.com"}
	b := creator.Creator{ID: "b", Email: "shared@example.com"}

	_, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: []creator.Creator{a}})
	require.NoError(t, err)
	res, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: []creator.Creator{b}})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Queued)
	assert.Equal(t, 1, res.SkippedDuplicate)
}

func TestEnqueueUnlimitedPlan(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanEnterprise, 0, 5000))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	res, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "u1", Creators: makeCreators("c", 25)})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Queued)
	assert.Equal(t, 0, res.SkippedQuota)
}

func TestConcurrentEnqueueNeverOversells(t *testing.T) {
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanBasic, 50, 20))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		queued int
	)
	for g := range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{
				UserID:   "u1",
				Creators: makeCreators(fmt.Sprintf("g%d", g), 5),
			})
			assert.NoError(t, err)
			mu.Lock()
			queued += res.CreditsUsed
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 30, queued)
	assert.Len(t, store.Items(), 30)

	acct, _ := store.Account("u1")
	assert.Equal(t, 50, acct.EmailUsedToday)
}

func TestEnqueueUnknownAccount(t *testing.T) {
	svc := newTestService(queuetest.NewMemoryStore(), creatortest.NewMemoryRepository())

	_, err := svc.Enqueue(context.Background(), queue.EnqueueRequest{UserID: "ghost", Creators: makeCreators("c", 1)})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEnqueueByIDsResolvesCreators(t *testing.T) {
	ctx := context.Background()
	creators := creatortest.NewMemoryRepository()
	_, err := creators.InsertNew(ctx, []creator.Creator{{ID: "k1", Platform: "x", Handle: "k1"}})
	require.NoError(t, err)
	require.NoError(t, creators.SetEmail(ctx, "k1", "k1@example.com", true))

	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creators)

	res, err := svc.EnqueueByIDs(ctx, "u1", []string{"k1", "missing"}, "camp")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Queued)
	assert.Equal(t, 1, res.SkippedNoEmail)
	assert.Equal(t, "camp", store.Items()[0].CampaignID)
}

func TestRetryFailedAndReplied(t *testing.T) {
	ctx := context.Background()
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	_, err := svc.Enqueue(ctx, queue.EnqueueRequest{UserID: "u1", Creators: makeCreators("c", 2)})
	require.NoError(t, err)

	claimed, err := store.ClaimDue(ctx, queue.ClaimParams{
		Owner: "w1", Now: fixedNow.Add(24 * time.Hour), LeaseTTL: time.Minute, Limit: 10, MaxRetries: 3,
	})
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	require.NoError(t, store.MarkFailed(ctx, claimed[0].ID, "w1", "smtp timeout", nil))
	require.NoError(t, store.MarkSent(ctx, claimed[1].ID, "w1", queue.SentInfo{ProviderThreadID: "t-1", SentAt: fixedNow}))

	n, err := svc.RetryFailed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	retried, err := svc.Get(ctx, "u1", claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusScheduled, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)

	replied, err := svc.MarkReplied(ctx, queue.ReplyRef{ThreadID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, queue.StatusReplied, replied.Status)
	require.NotNil(t, replied.RepliedAt)

	stats, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Scheduled: 1, Replied: 1, Total: 2}, stats)

	_, err = svc.Get(ctx, "someone-else", claimed[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClaimDueHonoursLeases(t *testing.T) {
	ctx := context.Background()
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	_, err := svc.Enqueue(ctx, queue.EnqueueRequest{UserID: "u1", Creators: makeCreators("c", 3)})
	require.NoError(t, err)

	later := fixedNow.Add(24 * time.Hour)
	first, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "a", Now: later, LeaseTTL: 5 * time.Minute, Limit: 10, MaxRetries: 3})
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "b", Now: later, LeaseTTL: 5 * time.Minute, Limit: 10, MaxRetries: 3})
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.ErrorIs(t, store.Release(ctx, first[0].ID, "b"), queue.ErrLeaseLost)

	expired, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "b", Now: later.Add(6 * time.Minute), LeaseTTL: 5 * time.Minute, Limit: 10, MaxRetries: 3})
	require.NoError(t, err)
	assert.Len(t, expired, 3)
}

func TestClaimDueSkipsExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	store := queuetest.NewMemoryStore(newAccount("u1", account.PlanPro, 150, 0))
	svc := newTestService(store, creatortest.NewMemoryRepository())

	_, err := svc.Enqueue(ctx, queue.EnqueueRequest{UserID: "u1", Creators: makeCreators("c", 1)})
	require.NoError(t, err)

	now := fixedNow.Add(24 * time.Hour)
	claimed, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "w", Now: now, LeaseTTL: time.Minute, Limit: 1, MaxRetries: 1})
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	retryAt := now.Add(time.Minute)
	require.NoError(t, store.MarkFailed(ctx, claimed[0].ID, "w", "boom", &retryAt))

	again, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "w", Now: now.Add(time.Hour), LeaseTTL: time.Minute, Limit: 1, MaxRetries: 1})
	require.NoError(t, err)
	assert.Empty(t, again)

	allowed, err := store.ClaimDue(ctx, queue.ClaimParams{Owner: "w", Now: now.Add(time.Hour), LeaseTTL: time.Minute, Limit: 1, MaxRetries: 2})
	require.NoError(t, err)
	assert.Len(t, allowed, 1)
}
