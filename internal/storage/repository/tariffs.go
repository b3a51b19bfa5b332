package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// GetTariff возвращает активный тариф по ключу.
func (s *Storage) GetTariff(ctx context.Context, key string) (*models.Tariff, error) {
	const op = "storage.GetTariff"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var t models.Tariff
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, key, name, price, days, gb, is_active
		 FROM tariffs
		 WHERE key = $1 AND is_active`, key).
		Scan(&t.ID, &t.Key, &t.Name, &t.Price, &t.Days, &t.GB, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w: %s", op, models.ErrUnknownTariff, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}
