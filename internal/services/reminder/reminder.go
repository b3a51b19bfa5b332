// Package reminder периодически напоминает пользователям об окончании
// подписки. Отметка об отправке живет только в рамках одного прогона.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/metrics"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

const expiryLayout = "02.01.2006 в 15:04"

// SubscriptionRepository поиск истекающих подписок.
type SubscriptionRepository interface {
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringUser, error)
}

// Notifier отправляет сообщение пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

type window struct {
	name    string
	horizon time.Duration
	text    func(expiry time.Time) string
}

var windows = []window{
	{
		name:    "1d",
		horizon: 24 * time.Hour,
		text: func(expiry time.Time) string {
			return fmt.Sprintf("❗️ Ваша подписка на VPN истекает менее чем через 24 часа (%s).\n\n"+
				"Не забудьте продлить ее, чтобы не потерять доступ!", expiry.Format(expiryLayout))
		},
	},
	{
		name:    "3d",
		horizon: 72 * time.Hour,
		text: func(expiry time.Time) string {
			return fmt.Sprintf("🔔 Напоминаем, что ваша подписка на VPN истекает через 3 дня (%s).\n\n"+
				"Вы можете продлить ее в главном меню бота.", expiry.Format(expiryLayout))
		},
	},
}

// ReminderService рассылает напоминания.
type ReminderService struct {
	repo     SubscriptionRepository
	notifier Notifier
	limiter  *rate.Limiter
	location *time.Location
	now      func() time.Time
	log      *slog.Logger
}

// NewReminderService создает новый экземпляр ReminderService. Между
// отправками выдерживается не меньше sendInterval.
func NewReminderService(repo SubscriptionRepository, notifier Notifier, sendInterval time.Duration,
	location *time.Location, log *slog.Logger) *ReminderService {
	if location == nil {
		location = time.Local
	}
	return &ReminderService{
		repo:     repo,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Every(sendInterval), 1),
		location: location,
		now:      time.Now,
		log:      log,
	}
}

// Run выполняет первый прогон через firstDelay, затем каждые interval до
// отмены ctx.
func (s *ReminderService) Run(ctx context.Context, firstDelay, interval time.Duration) {
	timer := time.NewTimer(firstDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReminderService) sweep(ctx context.Context) {
	sent, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("reminder sweep failed", sl.Err(err))
		return
	}
	s.log.Info("reminder sweep finished", slog.Int("sent", sent))
}

// Sweep один прогон: сначала окно 24 часа, затем 3 дня. Пользователь
// получает не больше одного напоминания за прогон. Возвращает число
// отправленных сообщений.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	const op = "reminder.Sweep"
	log := s.log.With(slog.String("op", op))

	now := s.now()
	buckets := make([][]models.ExpiringUser, len(windows))
	for i, w := range windows {
		users, err := s.repo.FindExpiringBetween(ctx, now, now.Add(w.horizon))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		buckets[i] = users
	}

	// Пользователь считается обработанным после первой попытки, даже
	// неудачной: иначе он попадет в окно 3 дня с неверным текстом.
	handled := make(map[int64]struct{})
	sent := 0
	for i, w := range windows {
		for _, u := range buckets[i] {
			if _, ok := handled[u.UserID]; ok {
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return sent, fmt.Errorf("%s: %w", op, err)
			}
			handled[u.UserID] = struct{}{}
			text := w.text(u.SubscriptionExpiry.In(s.location))
			if err := s.notifier.Notify(ctx, u.UserID, text); err != nil {
				log.Warn("failed to send reminder",
					slog.Int64("user_id", u.UserID), slog.String("window", w.name), sl.Err(err))
				continue
			}
			sent++
			metrics.Reminders.WithLabelValues(w.name).Inc()
		}
	}
	return sent, nil
}
