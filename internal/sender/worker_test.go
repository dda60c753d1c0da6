// AngelaMos | 2026
// worker_test.go

package sender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/creator/creatortest"
	"github.com/carterperez-dev/creator-outreach/internal/events"
	"github.com/carterperez-dev/creator-outreach/internal/mail"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox/mailboxtest"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
	"github.com/carterperez-dev/creator-outreach/internal/queue/queuetest"
)

var runAt = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, creds mail.Credentials, msg mail.Message) (mail.Receipt, error) {
	args := m.Called(ctx, creds, msg)
	return args.Get(0).(mail.Receipt), args.Error(1)
}

type accountMap map[string]*account.Account

func (a accountMap) GetByID(_ context.Context, id string) (*account.Account, error) {
	acct, ok := a[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	return acct, nil
}

type fixture struct {
	store     *queuetest.MemoryStore
	creators  *creatortest.MemoryRepository
	mailboxes *mailbox.Service
	boxRepo   *mailboxtest.MemoryRepository
	transport *mockTransport
	publisher *events.MemoryPublisher
	worker    *Worker
}

func newFixture(t *testing.T, cfg config.WorkerConfig) *fixture {
	t.Helper()

	cipher, err := core.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	f := &fixture{
		store:     queuetest.NewMemoryStore(&account.Account{ID: "u1", Plan: account.PlanPro, EmailQuotaDaily: 500}),
		creators:  creatortest.NewMemoryRepository(),
		boxRepo:   mailboxtest.NewMemoryRepository(),
		transport: &mockTransport{},
		publisher: &events.MemoryPublisher{},
	}
	f.mailboxes = mailbox.NewService(f.boxRepo, cipher, 50, nil)

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 5 * time.Minute
		cfg.RetryMax = time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}

	f.worker = NewWorker(Deps{
		Queue:     f.store,
		Creators:  f.creators,
		Accounts:  accountMap{"u1": {ID: "u1", Name: "Acme Studio"}},
		Mailboxes: f.mailboxes,
		Pacer:     mailbox.NewPacer(nil, 0),
		Transport: f.transport,
		Publisher: f.publisher,
	}, cfg, "Outreach")
	f.worker.now = func() time.Time { return runAt }

	return f
}

func (f *fixture) connect(t *testing.T, limit int) *mailbox.Mailbox {
	t.Helper()
	m, err := f.mailboxes.Connect(context.Background(), "u1", mailbox.ConnectRequest{
		Email:       "team@acme.test",
		Provider:    "gmail",
		AccessToken: "tok",
		DailyLimit:  limit,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) seed(t *testing.T, n int, at time.Time) []queue.Item {
	t.Helper()
	ctx := context.Background()

	items := make([]queue.Item, n)
	creators := make([]creator.Creator, n)
	for i := range items {
		c := creator.Creator{
			ID:       fmt.Sprintf("c-%02d", i),
			Platform: "instagram",
			Handle:   fmt.Sprintf("creator%02d", i),
			Email:    fmt.Sprintf("creator%02d@example.com", i),
		}
		creators[i] = c
		items[i] = queue.Item{
			ID:                queue.ItemID("u1", c.ID),
			UserID:            "u1",
			CreatorID:         c.ID,
			CreatorEmail:      c.Email,
			Status:            queue.StatusScheduled,
			ScheduledSendTime: at.Add(time.Duration(i) * time.Minute),
		}
	}

	_, err := f.creators.InsertNew(ctx, creators)
	require.NoError(t, err)

	err = f.store.WithinUserLock(ctx, "u1", func(tx queue.TxStore, _ *account.Account) error {
		_, err := tx.Insert(ctx, items)
		return err
	})
	require.NoError(t, err)
	return items
}

func itemByID(items []queue.Item, id string) queue.Item {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return queue.Item{}
}

func TestSendScheduledSendsDueItems(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	mb := f.connect(t, 50)
	seeded := f.seed(t, 3, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.MatchedBy(func(c mail.Credentials) bool {
		return c.AccessToken == "tok" && c.MailboxID == mb.ID
	}), mock.Anything).Return(mail.Receipt{MessageID: "m-1", ThreadID: "t-1"}, nil)

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Sent)
	assert.Zero(t, sum.Failed)
	assert.Zero(t, sum.Skipped)

	items := f.store.Items()
	for _, s := range seeded {
		it := itemByID(items, s.ID)
		assert.Equal(t, queue.StatusSent, it.Status)
		assert.Equal(t, mb.ID, it.MailboxID)
		assert.Equal(t, "t-1", it.ProviderThreadID)
		assert.Empty(t, it.LeaseOwner)
	}

	stored, err := f.boxRepo.GetByID(context.Background(), mb.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.SentToday)
	assert.Len(t, f.publisher.OfType(events.TypeSent), 3)

	msg := f.transport.Calls[0].Arguments.Get(2).(mail.Message)
	assert.Equal(t, "Acme Studio", msg.FromName)
	assert.Equal(t, "team@acme.test", msg.FromEmail)
}

func TestSendScheduledIgnoresFutureItems(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 50)
	f.seed(t, 2, runAt.Add(time.Hour))

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	f.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNoMailboxSkipsAndReleases(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.seed(t, 4, runAt.Add(-time.Minute*10))

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Skipped)
	assert.Equal(t, 1, sum.Batches)

	for _, it := range f.store.Items() {
		assert.Equal(t, queue.StatusScheduled, it.Status)
		assert.Empty(t, it.LeaseOwner)
		assert.Zero(t, it.RetryCount)
	}
}

func TestMailboxCapSkips(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 2)
	f.seed(t, 5, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{MessageID: "m"}, nil)

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 3, sum.Skipped)

	stats, err := f.store.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 3, stats.Scheduled)
}

func TestAuthExpiredMarksMailboxAndLeavesQueue(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	mb := f.connect(t, 50)
	f.seed(t, 2, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{}, fmt.Errorf("gmail send: status 401: %w", mail.ErrAuthExpired)).Once()

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, 2, sum.Skipped)

	stored, err := f.boxRepo.GetByID(context.Background(), mb.ID)
	require.NoError(t, err)
	assert.Equal(t, mailbox.StatusReconnectRequired, stored.Status)
	assert.Equal(t, 0, stored.SentToday)

	for _, it := range f.store.Items() {
		assert.Equal(t, queue.StatusScheduled, it.Status)
		assert.Zero(t, it.RetryCount)
		assert.Empty(t, it.LeaseOwner)
	}
	assert.Len(t, f.publisher.OfType(events.TypeReconnect), 1)
	f.transport.AssertNumberOfCalls(t, "Send", 1)
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{MaxRetries: 3, RetryBase: 5 * time.Minute, RetryMax: time.Hour})
	mb := f.connect(t, 50)
	seeded := f.seed(t, 1, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{}, errors.New("gmail send: status 503"))

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	it := itemByID(f.store.Items(), seeded[0].ID)
	assert.Equal(t, queue.StatusFailed, it.Status)
	assert.Equal(t, 1, it.RetryCount)
	assert.Contains(t, it.LastError, "503")
	require.NotNil(t, it.NextRetryAt)
	assert.False(t, it.NextRetryAt.Before(runAt.Add(5*time.Minute)))
	assert.False(t, it.NextRetryAt.After(runAt.Add(time.Hour)))

	stored, err := f.boxRepo.GetByID(context.Background(), mb.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.SentToday)
	assert.Len(t, f.publisher.OfType(events.TypeFailed), 1)
}

func TestFailureKeepsLastErrorValidUTF8(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 50)
	seeded := f.seed(t, 1, runAt.Add(-time.Hour))

	body := strings.Repeat("a", maxErrorLen-1) + "é€ï"
	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{}, errors.New(body))

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	it := itemByID(f.store.Items(), seeded[0].ID)
	assert.Equal(t, 1, it.RetryCount)
	assert.True(t, utf8.ValidString(it.LastError))
	assert.LessOrEqual(t, len(it.LastError), maxErrorLen)
	assert.Equal(t, strings.Repeat("a", maxErrorLen-1), it.LastError)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short", 10))
	assert.Equal(t, "ab", truncateError("abé", 3))
	assert.Equal(t, "abé", truncateError("abéd", 4))
	assert.Equal(t, "a?b", truncateError("a\xffb", 10))
}

func TestPermanentFailureIsFinal(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 50)
	seeded := f.seed(t, 1, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{}, fmt.Errorf("status 400: %w", mail.ErrPermanent))

	_, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)

	it := itemByID(f.store.Items(), seeded[0].ID)
	assert.Equal(t, queue.StatusFailed, it.Status)
	assert.Nil(t, it.NextRetryAt)
}

func TestRetryExhaustion(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{MaxRetries: 2, RetryBase: time.Minute, RetryMax: time.Minute * 2})
	f.connect(t, 50)
	seeded := f.seed(t, 1, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{}, errors.New("timeout"))

	_, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)

	it := itemByID(f.store.Items(), seeded[0].ID)
	require.NotNil(t, it.NextRetryAt)

	f.worker.now = func() time.Time { return runAt.Add(3 * time.Hour) }
	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	it = itemByID(f.store.Items(), seeded[0].ID)
	assert.Equal(t, 2, it.RetryCount)
	assert.Nil(t, it.NextRetryAt)

	f.worker.now = func() time.Time { return runAt.Add(24 * time.Hour) }
	sum, err = f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestMissingCreatorFailsPermanently(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 50)

	ctx := context.Background()
	orphan := queue.Item{
		ID:                queue.ItemID("u1", "ghost"),
		UserID:            "u1",
		CreatorID:         "ghost",
		CreatorEmail:      "ghost@example.com",
		Status:            queue.StatusScheduled,
		ScheduledSendTime: runAt.Add(-time.Minute),
	}
	require.NoError(t, f.store.WithinUserLock(ctx, "u1", func(tx queue.TxStore, _ *account.Account) error {
		_, err := tx.Insert(ctx, []queue.Item{orphan})
		return err
	}))

	sum, err := f.worker.SendScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	it := itemByID(f.store.Items(), orphan.ID)
	assert.Nil(t, it.NextRetryAt)
	f.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchCap(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{BatchSize: 2, MaxBatches: 2})
	f.connect(t, 50)
	f.seed(t, 7, runAt.Add(-time.Hour))

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{MessageID: "m"}, nil)

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Sent)
	assert.Equal(t, 2, sum.Batches)
}

func TestPacingSkips(t *testing.T) {
	f := newFixture(t, config.WorkerConfig{})
	f.connect(t, 50)
	f.seed(t, 3, runAt.Add(-time.Hour))
	f.worker.deps.Pacer = mailbox.NewPacer(nil, 1)

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(mail.Receipt{MessageID: "m"}, nil)

	sum, err := f.worker.SendScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 2, sum.Skipped)
}
