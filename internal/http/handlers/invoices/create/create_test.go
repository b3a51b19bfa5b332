package create

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateSubscriptionInvoice(ctx context.Context, userID int64, tariffKey, asset, promoCode string) (*models.Invoice, error) {
	args := m.Called(ctx, userID, tariffKey, asset, promoCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockService) CreateTopUpInvoice(ctx context.Context, userID int64, asset string, amount float64) (*models.Invoice, error) {
	args := m.Called(ctx, userID, asset, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "счет на подписку",
			body: `{"user_id":42,"payment_type":"subscription","asset":"USDT","tariff_key":"month_1"}`,
			setupMock: func(m *MockService) {
				m.On("CreateSubscriptionInvoice", mock.Anything, int64(42), "month_1", "USDT", "").
					Return(&models.Invoice{ID: 555, PayURL: "https://t.me/pay/555"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"pay_url":"https://t.me/pay/555"`,
		},
		{
			name: "счет на подписку с промокодом",
			body: `{"user_id":42,"payment_type":"subscription","asset":"USDT","tariff_key":"month_1","promo_code":"SPRING"}`,
			setupMock: func(m *MockService) {
				m.On("CreateSubscriptionInvoice", mock.Anything, int64(42), "month_1", "USDT", "SPRING").
					Return(&models.Invoice{ID: 556, Amount: 110.5}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"invoice_id":556`,
		},
		{
			name: "счет на пополнение",
			body: `{"user_id":42,"payment_type":"balance_topup","asset":"TON","amount":2.5}`,
			setupMock: func(m *MockService) {
				m.On("CreateTopUpInvoice", mock.Anything, int64(42), "TON", 2.5).
					Return(&models.Invoice{ID: 77}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"invoice_id":77`,
		},
		{
			name:           "подписка без тарифа",
			body:           `{"user_id":42,"payment_type":"subscription","asset":"USDT"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `TariffKey`,
		},
		{
			name:           "неизвестный тип",
			body:           `{"user_id":42,"payment_type":"gift","asset":"USDT"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Type must be one of`,
		},
		{
			name: "неподдерживаемая валюта",
			body: `{"user_id":42,"payment_type":"balance_topup","asset":"DOGE","amount":1}`,
			setupMock: func(m *MockService) {
				m.On("CreateTopUpInvoice", mock.Anything, int64(42), "DOGE", 1.0).
					Return(nil, models.ErrUnsupportedAsset)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `unsupported asset`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rr := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
