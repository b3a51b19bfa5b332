package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// changeBalances применяет движение и пишет его в журнал одной транзакцией.
func (s *Storage) changeBalances(ctx context.Context, op string, e models.LedgerEntry) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := s.withTx(ctx, func(tx *sql.Tx) error {
		return applyLedgerEntry(ctx, tx, e)
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// applyLedgerEntry меняет балансы на дельты записи и добавляет ее в журнал.
func applyLedgerEntry(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET main_balance = main_balance + $2, referral_balance = referral_balance + $3
		 WHERE user_id = $1`,
		e.UserID, e.MainDelta, e.ReferralDelta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	return insertLedgerEntry(ctx, tx, e)
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, kind, main_delta, referral_delta, invoice_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, e.Kind, e.MainDelta, e.ReferralDelta, e.InvoiceID)
	return err
}

// ListLedgerEntries возвращает последние limit записей журнала пользователя,
// новые первыми.
func (s *Storage) ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error) {
	const op = "storage.ListLedgerEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, kind, main_delta, referral_delta, invoice_id, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.LedgerEntry
	for rows.Next() {
		var (
			e         models.LedgerEntry
			invoiceID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.MainDelta, &e.ReferralDelta, &invoiceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if invoiceID.Valid {
			e.InvoiceID = &invoiceID.Int64
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
