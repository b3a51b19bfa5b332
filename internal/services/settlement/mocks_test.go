package settlement

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-entitlements/internal/cryptopay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/provisioning"
)

// memLedger хранилище в памяти с теми же условными обновлениями, что и в базе.
type memLedger struct {
	mu       sync.Mutex
	invoices map[int64]*models.Invoice
	balances map[int64]models.Balances
}

func newMemLedger() *memLedger {
	return &memLedger{invoices: map[int64]*models.Invoice{}, balances: map[int64]models.Balances{}}
}

func (l *memLedger) GetInvoice(_ context.Context, id int64) (*models.Invoice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invoices[id]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (l *memLedger) MarkInvoicePaid(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invoices[id]
	if !ok || inv.Status != models.InvoiceWaiting {
		return false, nil
	}
	inv.Status = models.InvoicePaid
	return true, nil
}

func (l *memLedger) SettleTopUp(ctx context.Context, id, userID int64, credit money.Amount) (bool, error) {
	ok, _ := l.MarkInvoicePaid(ctx, id)
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[userID]
	b.Main += credit
	l.balances[userID] = b
	return true, nil
}

func (l *memLedger) GetBalances(_ context.Context, userID int64) (models.Balances, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[userID]
	if !ok {
		return models.Balances{}, models.ErrUserNotFound
	}
	return b, nil
}

func (l *memLedger) DebitBalances(_ context.Context, userID int64, fromReferral, fromMain money.Amount) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[userID]
	if b.Referral < fromReferral || b.Main < fromMain {
		return false, nil
	}
	b.Referral -= fromReferral
	b.Main -= fromMain
	l.balances[userID] = b
	return true, nil
}

func (l *memLedger) RefundBalances(_ context.Context, userID int64, toReferral, toMain money.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[userID]
	b.Referral += toReferral
	b.Main += toMain
	l.balances[userID] = b
	return nil
}

// memDiscounts промокоды в памяти: код -> скидка и оставшиеся применения.
type memDiscounts struct {
	mu      sync.Mutex
	percent map[string]int
	left    map[string]int
}

func newMemDiscounts() *memDiscounts {
	return &memDiscounts{percent: map[string]int{}, left: map[string]int{}}
}

func (d *memDiscounts) Apply(_ context.Context, code string, price money.Amount) (money.Amount, error) {
	if code == "" {
		return price, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.left[code] <= 0 {
		return 0, models.ErrInvalidPromoCode
	}
	d.left[code]--
	return models.Discounted(price, d.percent[code]), nil
}

func (d *memDiscounts) Release(_ context.Context, code string) {
	if code == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.left[code]++
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) GetInvoice(ctx context.Context, id int64) (*cryptopay.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptopay.Invoice), args.Error(1)
}

func (m *MockProcessor) Rate(ctx context.Context, source, target string) (float64, error) {
	args := m.Called(ctx, source, target)
	return args.Get(0).(float64), args.Error(1)
}

type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, userID int64, tariffKey string, amount *money.Amount) (provisioning.Result, error) {
	args := m.Called(ctx, userID, tariffKey, amount)
	return args.Get(0).(provisioning.Result), args.Error(1)
}

type MockTariffs struct {
	mock.Mock
}

func (m *MockTariffs) Tariff(ctx context.Context, key string) (*models.Tariff, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tariff), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID int64, text string) error {
	return m.Called(ctx, userID, text).Error(0)
}

func (m *MockNotifier) Escalate(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
