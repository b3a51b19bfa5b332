package provisioning

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/panel"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) SaveEntitlement(ctx context.Context, p models.Profile, tariffKey string, days int, now time.Time) (time.Time, error) {
	args := m.Called(ctx, p, tariffKey, days, now)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockRepository) CreditReferralBalance(ctx context.Context, userID int64, amount money.Amount) error {
	return m.Called(ctx, userID, amount).Error(0)
}

func (m *MockRepository) ClaimTrial(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ReleaseTrial(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
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

type MockSelector struct {
	mock.Mock
}

func (m *MockSelector) Select(ctx context.Context) (models.Server, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Server), args.Error(1)
}

type MockPanels struct {
	mock.Mock
}

func (m *MockPanels) CreateClient(ctx context.Context, server models.Server, req panel.CreateRequest) (panel.Created, error) {
	args := m.Called(ctx, server, req)
	return args.Get(0).(panel.Created), args.Error(1)
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
