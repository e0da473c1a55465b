package outcome

import (
	"bytes"
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

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/appeal"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) UpdateOutcome(ctx context.Context, accountID string, id int, outcome models.AppealOutcome) error {
	return m.Called(ctx, accountID, id, outcome).Error(0)
}

func TestOutcomeHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name: "успешное обновление",
			url:  "/appeals/5/outcome",
			body: `{"outcome":"successful"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateOutcome", mock.Anything, "acc-1", 5, models.OutcomeSuccessful).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "неизвестный результат",
			url:  "/appeals/5/outcome",
			body: `{"outcome":"won"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateOutcome", mock.Anything, "acc-1", 5, models.AppealOutcome("won")).
					Return(fmt.Errorf("x: %w", appeal.ErrInvalidAppeal))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "чужая апелляция",
			url:  "/appeals/6/outcome",
			body: `{"outcome":"unsuccessful"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateOutcome", mock.Anything, "acc-1", 6, models.OutcomeUnsuccessful).
					Return(fmt.Errorf("x: %w", appeal.ErrAppealNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "некорректный id",
			url:            "/appeals/abc/outcome",
			body:           `{"outcome":"successful"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "пустое тело",
			url:            "/appeals/5/outcome",
			body:           `{}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Patch("/appeals/{id}/outcome", New(logger, svc).ServeHTTP)

			req := httptest.NewRequest(http.MethodPatch, tt.url, bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, "acc-1"))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
