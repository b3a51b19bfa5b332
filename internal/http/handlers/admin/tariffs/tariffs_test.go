package tariffs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Refresh(ctx context.Context, key string) (*models.Tariff, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tariff), args.Error(1)
}

func TestRefreshHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		key            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "новая цена",
			key:  "month_1",
			setupMock: func(m *MockService) {
				m.On("Refresh", mock.Anything, "month_1").
					Return(&models.Tariff{Key: "month_1", Price: 15000, Days: 31, IsActive: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"price":150.00`,
		},
		{
			name: "тариф снят с продажи",
			key:  "forever",
			setupMock: func(m *MockService) {
				m.On("Refresh", mock.Anything, "forever").Return(nil, models.ErrUnknownTariff)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `unknown tariff`,
		},
		{
			name: "кеш недоступен",
			key:  "month_1",
			setupMock: func(m *MockService) {
				m.On("Refresh", mock.Anything, "month_1").
					Return(nil, fmt.Errorf("catalog.Invalidate: %w", context.DeadlineExceeded))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `internal error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Post("/tariffs/{key}/refresh", New(logger, svc).ServeHTTP)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/tariffs/"+tt.key+"/refresh", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
