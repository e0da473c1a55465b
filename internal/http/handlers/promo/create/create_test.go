package create

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/promo"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, req models.DummyPromoCode) (*models.PromoCode, error) {
	args := m.Called(ctx, req)
	if p := args.Get(0); p != nil {
		return p.(*models.PromoCode), args.Error(1)
	}
	return nil, args.Error(1)
}

const validBody = `{
	"code": "save20",
	"discount_type": "PERCENTAGE",
	"discount_value": "20",
	"valid_from": "2026-01-01T00:00:00Z",
	"valid_until": "2026-12-31T00:00:00Z",
	"is_active": true,
	"applicable_for": ["ALL"]
}`

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name: "создан",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(&models.PromoCode{ID: 1, Code: "SAVE20"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "дубликат",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("x: %w", promo.ErrPromoExists))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "нарушены ограничения",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("x: %w", promo.ErrInvalidPromo))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "пустой список услуг",
			body:           `{"code":"X","discount_type":"PERCENTAGE","valid_from":"2026-01-01T00:00:00Z","valid_until":"2026-12-31T00:00:00Z","applicable_for":[]}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "битый json",
			body:           `{`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/admin/promo-codes", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
