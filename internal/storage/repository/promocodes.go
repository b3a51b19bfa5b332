package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

const uniqueViolation = "23505"

// CreatePromoCode добавляет промокод.
func (s *Storage) CreatePromoCode(ctx context.Context, p models.PromoCode) (*models.PromoCode, error) {
	const op = "storage.CreatePromoCode"

	created := models.PromoCode{Code: p.Code, DiscountPercent: p.DiscountPercent, MaxUses: p.MaxUses}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO promocodes (code, discount_percent, max_uses, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING uses_count, is_active, created_at`,
		p.Code, p.DiscountPercent, p.MaxUses).Scan(&created.UsesCount, &created.IsActive, &created.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("%s: %w", op, models.ErrPromoCodeExists)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// ListPromoCodes возвращает все промокоды, новые первыми.
func (s *Storage) ListPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	const op = "storage.ListPromoCodes"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT code, discount_percent, max_uses, uses_count, is_active, created_at
		 FROM promocodes ORDER BY created_at DESC, code`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PromoCode
	for rows.Next() {
		var p models.PromoCode
		if err := rows.Scan(&p.Code, &p.DiscountPercent, &p.MaxUses, &p.UsesCount, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ClaimPromoCode атомарно расходует одно применение промокода и возвращает
// скидку в процентах. Неактивный или исчерпанный код дает ErrInvalidPromoCode.
func (s *Storage) ClaimPromoCode(ctx context.Context, code string) (int, error) {
	const op = "storage.ClaimPromoCode"

	var percent int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE promocodes SET uses_count = uses_count + 1
		 WHERE code = $1 AND is_active AND uses_count < max_uses
		 RETURNING discount_percent`, code).Scan(&percent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrInvalidPromoCode)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return percent, nil
}

// ReleasePromoCode возвращает применение, если покупка не состоялась.
func (s *Storage) ReleasePromoCode(ctx context.Context, code string) error {
	const op = "storage.ReleasePromoCode"

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE promocodes SET uses_count = uses_count - 1 WHERE code = $1 AND uses_count > 0`, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
