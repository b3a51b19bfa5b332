package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// CreateInvoice сохраняет новый счет в статусе waiting.
func (s *Storage) CreateInvoice(ctx context.Context, inv models.Invoice) error {
	const op = "storage.CreateInvoice"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var tariffKey sql.NullString
	if inv.TariffKey != "" {
		tariffKey = sql.NullString{String: inv.TariffKey, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO invoices (invoice_id, user_id, tariff_key, amount, currency, status, payment_type, pay_url)
		 VALUES ($1, $2, $3, $4, $5, 'waiting', $6, $7)`,
		inv.ID, inv.UserID, tariffKey, inv.Amount, inv.Currency, string(inv.Type), inv.PayURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetInvoice возвращает счет по id.
func (s *Storage) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	const op = "storage.GetInvoice"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		inv       models.Invoice
		tariffKey sql.NullString
		paidAt    sql.NullTime
		status    string
		payType   string
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT invoice_id, user_id, tariff_key, amount::float8, currency, status, payment_type,
		        pay_url, created_at, paid_at
		 FROM invoices
		 WHERE invoice_id = $1`, id).
		Scan(&inv.ID, &inv.UserID, &tariffKey, &inv.Amount, &inv.Currency, &status, &payType,
			&inv.PayURL, &inv.CreatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inv.TariffKey = tariffKey.String
	inv.Status = models.InvoiceStatus(status)
	inv.Type = models.PaymentType(payType)
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}

// MarkInvoicePaid переводит счет waiting→paid. Возвращает false, если счет
// уже оплачен: переход выполняется не более одного раза.
func (s *Storage) MarkInvoicePaid(ctx context.Context, id int64) (bool, error) {
	const op = "storage.MarkInvoicePaid"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE invoices SET status = 'paid', paid_at = NOW()
		 WHERE invoice_id = $1 AND status = 'waiting'`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// SettleTopUp отмечает счет пополнения оплаченным и зачисляет credit на
// основной баланс в одной транзакции. false, если счет уже оплачен.
func (s *Storage) SettleTopUp(ctx context.Context, id, userID int64, credit money.Amount) (bool, error) {
	const op = "storage.SettleTopUp"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	settled := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE invoices SET status = 'paid', paid_at = NOW()
			 WHERE invoice_id = $1 AND status = 'waiting'`, id)
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

		err = applyLedgerEntry(ctx, tx, models.LedgerEntry{
			UserID:    userID,
			Kind:      models.EntryTopUp,
			MainDelta: credit,
			InvoiceID: &id,
		})
		if err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return settled, nil
}
