package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringUser, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiringUser), args.Error(1)
}

type sentMessage struct {
	userID int64
	text   string
}

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	attempts []sentMessage
	fail     map[int64]bool
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts = append(n.attempts, sentMessage{userID: userID, text: text})
	if n.fail[userID] {
		return errors.New("chat not found")
	}
	n.sent = append(n.sent, sentMessage{userID: userID, text: text})
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newService(repo SubscriptionRepository, n Notifier) *ReminderService {
	s := NewReminderService(repo, n, 0, time.UTC, newNoopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestSweep_OneDayBucketFirstAndDeduplicated(t *testing.T) {
	soon := now.Add(5 * time.Hour)
	later := now.Add(60 * time.Hour)

	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(24*time.Hour)).
		Return([]models.ExpiringUser{{UserID: 1, SubscriptionExpiry: soon}}, nil)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(72*time.Hour)).
		Return([]models.ExpiringUser{
			{UserID: 1, SubscriptionExpiry: soon},
			{UserID: 2, SubscriptionExpiry: later},
		}, nil)

	n := &recordingNotifier{}
	sent, err := newService(repo, n).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, n.sent, 2)
	assert.Equal(t, int64(1), n.sent[0].userID)
	assert.Equal(t, "❗️ Ваша подписка на VPN истекает менее чем через 24 часа (19.10.2026 в 17:00).\n\n"+
		"Не забудьте продлить ее, чтобы не потерять доступ!", n.sent[0].text)
	assert.Equal(t, int64(2), n.sent[1].userID)
	assert.Equal(t, "🔔 Напоминаем, что ваша подписка на VPN истекает через 3 дня (22.10.2026 в 00:00).\n\n"+
		"Вы можете продлить ее в главном меню бота.", n.sent[1].text)
}

func TestSweep_FailedSendDoesNotStopRun(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(24*time.Hour)).
		Return([]models.ExpiringUser{
			{UserID: 1, SubscriptionExpiry: now.Add(time.Hour)},
			{UserID: 2, SubscriptionExpiry: now.Add(2 * time.Hour)},
		}, nil)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(72*time.Hour)).
		Return([]models.ExpiringUser{{UserID: 1, SubscriptionExpiry: now.Add(time.Hour)}}, nil)

	n := &recordingNotifier{fail: map[int64]bool{1: true}}
	sent, err := newService(repo, n).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, n.sent, 1)
	assert.Equal(t, int64(2), n.sent[0].userID)
}

func TestSweep_FailedOneDaySendIsNotRetriedWithThreeDayText(t *testing.T) {
	soon := now.Add(5 * time.Hour)
	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(24*time.Hour)).
		Return([]models.ExpiringUser{{UserID: 1, SubscriptionExpiry: soon}}, nil)
	repo.On("FindExpiringBetween", mock.Anything, now, now.Add(72*time.Hour)).
		Return([]models.ExpiringUser{{UserID: 1, SubscriptionExpiry: soon}}, nil)

	n := &recordingNotifier{fail: map[int64]bool{1: true}}
	sent, err := newService(repo, n).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	require.Len(t, n.attempts, 1)
	assert.Contains(t, n.attempts[0].text, "менее чем через 24 часа")
	assert.Empty(t, n.sent)
}

func TestSweep_NoUsers(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, mock.Anything, mock.Anything).Return([]models.ExpiringUser{}, nil)

	sent, err := newService(repo, &recordingNotifier{}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSweep_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	n := &recordingNotifier{}
	_, err := newService(repo, n).Sweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, n.sent)
}

func TestSweep_PacesSends(t *testing.T) {
	users := []models.ExpiringUser{
		{UserID: 1, SubscriptionExpiry: now.Add(time.Hour)},
		{UserID: 2, SubscriptionExpiry: now.Add(time.Hour)},
		{UserID: 3, SubscriptionExpiry: now.Add(time.Hour)},
	}
	repo := new(MockRepository)
	repo.On("FindExpiringBetween", mock.Anything, mock.Anything, mock.Anything).Return(users, nil)

	s := NewReminderService(repo, &recordingNotifier{}, 50*time.Millisecond, time.UTC, newNoopLogger())
	start := time.Now()
	sent, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

type countingRepository struct {
	calls atomic.Int32
}

func (r *countingRepository) FindExpiringBetween(context.Context, time.Time, time.Time) ([]models.ExpiringUser, error) {
	r.calls.Add(1)
	return nil, nil
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &countingRepository{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newService(repo, &recordingNotifier{}).Run(ctx, time.Millisecond, time.Hour)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return repo.calls.Load() >= int32(len(windows))
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CancelBeforeFirstRun(t *testing.T) {
	repo := &countingRepository{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newService(repo, &recordingNotifier{}).Run(ctx, time.Hour, time.Hour)
	assert.Zero(t, repo.calls.Load())
}
