package credit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreditMain(ctx context.Context, userID int64, amount money.Amount) error {
	return m.Called(ctx, userID, amount).Error(0)
}

func TestCreditHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "зачислено",
			body: `{"amount":250.5}`,
			setupMock: func(m *MockService) {
				m.On("CreditMain", mock.Anything, int64(42), money.Amount(25050)).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"amount":250.50`,
		},
		{
			name: "пользователь не найден",
			body: `{"amount":10}`,
			setupMock: func(m *MockService) {
				m.On("CreditMain", mock.Anything, int64(42), money.Amount(1000)).Return(models.ErrUserNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user not found`,
		},
		{
			name:           "нулевая сумма",
			body:           `{"amount":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Amount is too small`,
		},
		{
			name:           "сумма не число",
			body:           `{"amount":"много"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Post("/users/{id}/credit", New(logger, svc).ServeHTTP)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users/42/credit", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
