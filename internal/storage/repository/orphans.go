package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// ListOrphans возвращает очередь сверки, старые записи первыми.
func (s *Storage) ListOrphans(ctx context.Context) ([]models.Orphan, error) {
	const op = "storage.ListOrphans"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, server_id, server_name, inbound_id, client_id, created_at
		 FROM orphans
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.Orphan{}
	for rows.Next() {
		var o models.Orphan
		if err := rows.Scan(&o.ID, &o.UserID, &o.ServerID, &o.ServerName, &o.InboundID, &o.ClientID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetOrphan возвращает запись очереди сверки вместе с сервером.
func (s *Storage) GetOrphan(ctx context.Context, id int64) (*models.Orphan, *models.Server, error) {
	const op = "storage.GetOrphan"

	var (
		o   models.Orphan
		srv models.Server
	)
	err := scanServer(s.DB.QueryRowContext(ctx,
		`SELECT `+serverColumns+`,
		        o.id, o.user_id, o.server_id, o.server_name, o.inbound_id, o.client_id, o.created_at
		 FROM orphans o
		 JOIN servers s ON s.id = o.server_id
		 WHERE o.id = $1`, id), &srv,
		&o.ID, &o.UserID, &o.ServerID, &o.ServerName, &o.InboundID, &o.ClientID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", op, models.ErrOrphanNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return &o, &srv, nil
}

// DeleteOrphan убирает запись из очереди сверки.
func (s *Storage) DeleteOrphan(ctx context.Context, id int64) error {
	const op = "storage.DeleteOrphan"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM orphans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrOrphanNotFound)
	}
	return nil
}
