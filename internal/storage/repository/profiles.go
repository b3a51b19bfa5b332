package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// SaveEntitlement сохраняет профиль и продлевает подписку в одной транзакции.
// Новая дата окончания: max(now, текущая) + days. Возвращает ее.
func (s *Storage) SaveEntitlement(ctx context.Context, p models.Profile, tariffKey string, days int, now time.Time) (time.Time, error) {
	const op = "storage.SaveEntitlement"
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var expiry time.Time
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE users
			 SET subscription_expiry = GREATEST(COALESCE(subscription_expiry, $2), $2) + make_interval(days => $3),
			     subscription_type = $4
			 WHERE user_id = $1
			 RETURNING subscription_expiry`,
			p.UserID, now, days, tariffKey).Scan(&expiry)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, server_id, client_id, label, descriptor, inbound_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.UserID, p.ServerID, p.ClientID, p.Label, p.Descriptor, p.InboundID, now)
		return err
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return expiry, nil
}

// ListProfilesWithServers возвращает профили пользователя вместе с серверами.
func (s *Storage) ListProfilesWithServers(ctx context.Context, userID int64) ([]models.ProfileWithServer, error) {
	const op = "storage.ListProfilesWithServers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + serverColumns + `,
			      p.id, p.user_id, p.server_id, p.client_id, p.label, p.descriptor, p.inbound_id, p.created_at
			  FROM profiles p
			  JOIN servers s ON s.id = p.server_id
			  WHERE p.user_id = $1
			  ORDER BY p.id`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ProfileWithServer
	for rows.Next() {
		var ps models.ProfileWithServer
		err := scanServer(rows, &ps.Server,
			&ps.ID, &ps.UserID, &ps.ServerID, &ps.ClientID, &ps.Label, &ps.Descriptor, &ps.InboundID, &ps.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RevokeLocal удаляет профили пользователя, сбрасывает подписку и
// записывает неудаленные на панелях клиенты в очередь сверки. profileIDs
// перечисляет профили, которые вызывающий видел при отзыве. Профили, появившиеся
// позже (параллельная выдача), тоже удаляются и попадают в очередь сверки той
// же транзакцией. Возвращает такие записи.
func (s *Storage) RevokeLocal(ctx context.Context, userID int64, profileIDs []int64, orphans []models.Orphan) ([]models.Orphan, error) {
	const op = "storage.RevokeLocal"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if profileIDs == nil {
		profileIDs = []int64{}
	}

	var late []models.Orphan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		late = nil
		for _, o := range orphans {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO orphans (user_id, server_id, server_name, inbound_id, client_id)
				 VALUES ($1, $2, $3, $4, $5)`,
				o.UserID, o.ServerID, o.ServerName, o.InboundID, o.ClientID); err != nil {
				return err
			}
		}

		rows, err := tx.QueryContext(ctx,
			`WITH gone AS (
			     DELETE FROM profiles
			     WHERE user_id = $1 AND NOT (id = ANY($2::bigint[]))
			     RETURNING user_id, server_id, inbound_id, client_id
			 )
			 INSERT INTO orphans (user_id, server_id, server_name, inbound_id, client_id)
			 SELECT g.user_id, g.server_id, s.name, g.inbound_id, g.client_id
			 FROM gone g JOIN servers s ON s.id = g.server_id
			 RETURNING id, user_id, server_id, server_name, inbound_id, client_id, created_at`,
			userID, profileIDs)
		if err != nil {
			return err
		}
		for rows.Next() {
			var o models.Orphan
			if err := rows.Scan(&o.ID, &o.UserID, &o.ServerID, &o.ServerName, &o.InboundID, &o.ClientID, &o.CreatedAt); err != nil {
				_ = rows.Close()
				return err
			}
			late = append(late, o)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM profiles WHERE user_id = $1 AND id = ANY($2::bigint[])`, userID, profileIDs); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET subscription_expiry = NULL, subscription_type = NULL WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return late, nil
}
