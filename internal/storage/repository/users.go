package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// RegisterUser создает пользователя при первом обращении. Реферер
// сохраняется, только если он существует и не совпадает с пользователем.
// Возвращает false, если пользователь уже был.
func (s *Storage) RegisterUser(ctx context.Context, userID int64, username string, referrerID *int64) (bool, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, username, referrer_id)
			  VALUES ($1, $2, (SELECT user_id FROM users WHERE user_id = $3 AND user_id <> $1))
			  ON CONFLICT (user_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, userID, username, referrerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, username, referrer_id, main_balance, referral_balance,
			      subscription_type, subscription_expiry, has_used_trial, created_at
			  FROM users
			  WHERE user_id = $1`
	var (
		u          models.User
		referrerID sql.NullInt64
		subType    sql.NullString
		expiry     sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Username, &referrerID,
		&u.MainBalance, &u.ReferralBalance, &subType, &expiry, &u.HasUsedTrial, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if referrerID.Valid {
		u.ReferrerID = &referrerID.Int64
	}
	u.SubscriptionType = subType.String
	if expiry.Valid {
		u.SubscriptionExpiry = &expiry.Time
	}
	return &u, nil
}

// GetBalances возвращает основной и реферальный балансы.
func (s *Storage) GetBalances(ctx context.Context, userID int64) (models.Balances, error) {
	const op = "storage.GetBalances"
	select {
	case <-ctx.Done():
		return models.Balances{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var b models.Balances
	err := s.DB.QueryRowContext(ctx,
		`SELECT main_balance, referral_balance FROM users WHERE user_id = $1`, userID).
		Scan(&b.Main, &b.Referral)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Balances{}, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return models.Balances{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// CountReferrals возвращает число приглашенных пользователем.
func (s *Storage) CountReferrals(ctx context.Context, userID int64) (int, error) {
	const op = "storage.CountReferrals"

	var count int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE referrer_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CreditMainBalance пополняет основной баланс по решению оператора.
func (s *Storage) CreditMainBalance(ctx context.Context, userID int64, amount money.Amount) error {
	const op = "storage.CreditMainBalance"
	return s.changeBalances(ctx, op, models.LedgerEntry{UserID: userID, Kind: models.EntryCredit, MainDelta: amount})
}

// CreditReferralBalance начисляет реферальный бонус.
func (s *Storage) CreditReferralBalance(ctx context.Context, userID int64, amount money.Amount) error {
	const op = "storage.CreditReferralBalance"
	return s.changeBalances(ctx, op, models.LedgerEntry{UserID: userID, Kind: models.EntryReferralBonus, ReferralDelta: amount})
}

// DebitBalances списывает fromReferral с реферального и fromMain с основного
// баланса одной операцией. Возвращает false, если средств уже не хватает.
func (s *Storage) DebitBalances(ctx context.Context, userID int64, fromReferral, fromMain money.Amount) (bool, error) {
	const op = "storage.DebitBalances"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	debited := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET referral_balance = referral_balance - $2,
			     main_balance = main_balance - $3
			 WHERE user_id = $1 AND referral_balance >= $2 AND main_balance >= $3`,
			userID, fromReferral, fromMain)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		debited = true
		return insertLedgerEntry(ctx, tx, models.LedgerEntry{
			UserID:        userID,
			Kind:          models.EntryPurchase,
			MainDelta:     -fromMain,
			ReferralDelta: -fromReferral,
		})
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return debited, nil
}

// RefundBalances возвращает ранее списанные суммы.
func (s *Storage) RefundBalances(ctx context.Context, userID int64, toReferral, toMain money.Amount) error {
	const op = "storage.RefundBalances"
	return s.changeBalances(ctx, op, models.LedgerEntry{
		UserID:        userID,
		Kind:          models.EntryRefund,
		MainDelta:     toMain,
		ReferralDelta: toReferral,
	})
}

// ClaimTrial отмечает пробный период использованным. false, если уже был.
func (s *Storage) ClaimTrial(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.ClaimTrial"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET has_used_trial = TRUE WHERE user_id = $1 AND NOT has_used_trial`, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ReleaseTrial снимает отметку пробного периода после неудачной выдачи.
func (s *Storage) ReleaseTrial(ctx context.Context, userID int64) error {
	const op = "storage.ReleaseTrial"
	return s.execUserUpdate(ctx, op,
		`UPDATE users SET has_used_trial = FALSE WHERE user_id = $1`, userID)
}

// FindExpiringBetween возвращает пользователей, чья подписка истекает в (from, to].
func (s *Storage) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringUser, error) {
	const op = "storage.FindExpiringBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, subscription_expiry
			  FROM users
			  WHERE subscription_expiry > $1 AND subscription_expiry <= $2
			  ORDER BY subscription_expiry`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ExpiringUser
	for rows.Next() {
		var u models.ExpiringUser
		if err := rows.Scan(&u.UserID, &u.SubscriptionExpiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) execUserUpdate(ctx context.Context, op, query string, args ...any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}
