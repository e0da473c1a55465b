package create

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/appeal"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, accountID string, req models.DummyAppeal) (*appeal.CreateResult, error) {
	args := m.Called(ctx, accountID, req)
	if res := args.Get(0); res != nil {
		return res.(*appeal.CreateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

const validBody = `{"ticket_number":"PCN1","vehicle_registration":"AB12CDE","fine_amount":"65","issue_date":"2026-05-01","reason":"signage"}`

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		accountID      string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "trial grants appeal",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "acc-1", mock.AnythingOfType("models.DummyAppeal")).Return(&appeal.CreateResult{
					Appeal:   &models.Appeal{ID: 1, VehicleRegistration: "AB12CDE"},
					Decision: models.Decision{Access: models.AccessGranted, Reason: models.ReasonTrialUsed},
				}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"reason":"trial_used"`,
		},
		{
			name:      "payment required carries trial registration",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "acc-1", mock.Anything).Return(&appeal.CreateResult{
					Decision: models.Decision{Access: models.AccessDenied, Reason: models.ReasonPaymentRequired, TrialRegistration: "XY99ZZZ"},
				}, nil)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `"trial_registration":"XY99ZZZ"`,
		},
		{
			name:      "plan limit reached",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "acc-1", mock.Anything).Return(&appeal.CreateResult{
					Rejection: &models.Rejection{Reason: models.RejectAppealLimitReached, Message: "limit"},
				}, nil)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `"reason":"AppealLimitReached"`,
		},
		{
			name:      "invalid dates",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "acc-1", mock.Anything).
					Return(nil, fmt.Errorf("appeal.Create: %w: issue date", appeal.ErrInvalidAppeal))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "missing required fields",
			body:           `{"ticket_number":"PCN1"}`,
			accountID:      "acc-1",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "bad json",
			body:           `{"ticket_number":`,
			accountID:      "acc-1",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no account in context",
			body:           validBody,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:      "storage failure",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "acc-1", mock.Anything).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/appeals", bytes.NewBufferString(tt.body))
			if tt.accountID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, tt.accountID))
			}
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			svc.AssertExpectations(t)
		})
	}
}
