package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/discount"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Validate(ctx context.Context, req models.PromoValidationRequest) (models.PromoValidation, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.PromoValidation), args.Error(1)
}

func matchReq(code string, value string, service models.ServiceType) any {
	want := decimal.RequireFromString(value)
	return mock.MatchedBy(func(req models.PromoValidationRequest) bool {
		return req.Code == code && req.OrderValue.Equal(want) && req.ServiceType == service && req.AccountID == "acc-1"
	})
}

func TestValidateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedValid  *bool
	}{
		{
			name: "скидка рассчитана",
			body: `{"code":"SAVE20","order_value":"50.00","service_type":"SINGLE_APPEAL"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, matchReq("SAVE20", "50", models.ServiceSingleAppeal)).Return(models.PromoValidation{
					Valid: true,
					Discount: &models.Discount{
						Code:           "SAVE20",
						DiscountAmount: decimal.NewFromInt(10),
						FinalAmount:    decimal.NewFromInt(40),
						OriginalAmount: decimal.NewFromInt(50),
					},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedValid:  boolPtr(true),
		},
		{
			name: "отказ возвращается с 200",
			body: `{"code":"OLD","order_value":10,"service_type":"HPI_CHECK"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, matchReq("OLD", "10", models.ServiceHpiCheck)).
					Return(models.PromoValidation{Valid: false, Error: models.RejectExpired}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedValid:  boolPtr(false),
		},
		{
			name: "отрицательная сумма",
			body: `{"code":"SAVE20","order_value":"-1","service_type":"ALL"}`,
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, mock.Anything).
					Return(models.PromoValidation{}, fmt.Errorf("x: %w", discount.ErrInvalidOrderValue))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "нет кода",
			body:           `{"order_value":"10","service_type":"ALL"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/promo-codes/validate", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, "acc-1"))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedValid != nil {
				var body struct {
					Data models.PromoValidation `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, *tt.expectedValid, body.Data.Valid)
			}
			svc.AssertExpectations(t)
		})
	}
}

func boolPtr(b bool) *bool { return &b }
