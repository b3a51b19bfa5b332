// Package ledger ведет пользователей, их балансы и журнал движений.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Repository операции над пользователями.
type Repository interface {
	RegisterUser(ctx context.Context, userID int64, username string, referrerID *int64) (bool, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CountReferrals(ctx context.Context, userID int64) (int, error)
	CreditMainBalance(ctx context.Context, userID int64, amount money.Amount) error
	ListProfilesWithServers(ctx context.Context, userID int64) ([]models.ProfileWithServer, error)
	ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error)
}

// EntriesLimit сколько последних записей журнала отдается пользователю.
const EntriesLimit = 50

// Profile выданный доступ в виде для пользователя, без данных панели.
type Profile struct {
	ID         int64     `json:"id"`
	Server     string    `json:"server"`
	Label      string    `json:"label"`
	Descriptor string    `json:"descriptor"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notifier сообщает пользователю о зачислении.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// LedgerService регистрирует пользователей и начисляет на баланс.
type LedgerService struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

// NewLedgerService создает новый экземпляр LedgerService.
func NewLedgerService(repo Repository, notifier Notifier, log *slog.Logger) *LedgerService {
	return &LedgerService{repo: repo, notifier: notifier, log: log}
}

// Register создает пользователя при первом обращении. Повторный вызов ничего
// не меняет, самоприглашение игнорируется.
func (s *LedgerService) Register(ctx context.Context, userID int64, username string, referrerID *int64) (bool, error) {
	const op = "ledger.Register"

	if referrerID != nil && *referrerID == userID {
		referrerID = nil
	}
	created, err := s.repo.RegisterUser(ctx, userID, username, referrerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("user registered", slog.Int64("user_id", userID), slog.Bool("referred", referrerID != nil))
	}
	return created, nil
}

// Account сводка балансов и подписки пользователя.
func (s *LedgerService) Account(ctx context.Context, userID int64) (models.Account, error) {
	const op = "ledger.Account"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	referrals, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Account{
		UserID:             user.ID,
		Main:               user.MainBalance,
		Referral:           user.ReferralBalance,
		ReferralCount:      referrals,
		SubscriptionType:   user.SubscriptionType,
		SubscriptionExpiry: user.SubscriptionExpiry,
	}, nil
}

// CreditMain пополняет основной баланс по решению оператора.
func (s *LedgerService) CreditMain(ctx context.Context, userID int64, amount money.Amount) error {
	const op = "ledger.CreditMain"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	if amount <= 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.CreditMainBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("main balance credited", slog.String("amount", amount.String()))

	text := fmt.Sprintf("✅ Ваш баланс пополнен на %s ₽", amount)
	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		log.Warn("failed to notify user", sl.Err(err))
	}
	return nil
}

// Profiles возвращает выданные пользователю доступы вместе со строками
// подключения.
func (s *LedgerService) Profiles(ctx context.Context, userID int64) ([]Profile, error) {
	const op = "ledger.Profiles"

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.repo.ListProfilesWithServers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profiles := make([]Profile, 0, len(rows))
	for _, p := range rows {
		profiles = append(profiles, Profile{
			ID:         p.ID,
			Server:     p.Server.Name,
			Label:      p.Label,
			Descriptor: p.Descriptor,
			CreatedAt:  p.CreatedAt,
		})
	}
	return profiles, nil
}

// Entries последние движения по балансам пользователя.
func (s *LedgerService) Entries(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	const op = "ledger.Entries"

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := s.repo.ListLedgerEntries(ctx, userID, EntriesLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}
