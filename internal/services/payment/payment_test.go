package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/clearride/internal/config"
	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/paymentprovider"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *RepoMock) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepoMock) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *RepoMock) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	return m.Called(ctx, id, sessionID).Error(0)
}

func (m *RepoMock) CompletePayment(ctx context.Context, paymentID string, grant models.Grant, now time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, grant, now)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) FailPayment(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}

type DiscountsMock struct{ mock.Mock }

func (m *DiscountsMock) Validate(ctx context.Context, req models.PromoValidationRequest) (models.PromoValidation, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.PromoValidation), args.Error(1)
}

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) CreateCheckoutSession(ctx context.Context, req paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.CheckoutSession), args.Error(1)
}

func (m *ProviderMock) ParseWebhook(payload []byte, signature string) (*paymentprovider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Event), args.Error(1)
}

type MetricsMock struct{ mock.Mock }

func (m *MetricsMock) PaymentFinished(product, status string) {
	m.Called(product, status)
}

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *RepoMock
	discounts *DiscountsMock
	provider  *ProviderMock
	metrics   *MetricsMock
	svc       *PaymentService
}

func newFixture() *fixture {
	f := &fixture{
		repo:      new(RepoMock),
		discounts: new(DiscountsMock),
		provider:  new(ProviderMock),
		metrics:   new(MetricsMock),
	}
	catalogue := NewCatalogue(config.Pricing{
		SingleAppealPrice: 499,
		AnnualPlanPrice:   2999,
		HpiCheckPrice:     999,
		BulkHpiPrice:      3999,
		BulkHpiPackSize:   5,
	}, "gbp")
	f.svc = New(f.repo, f.discounts, f.provider, catalogue, clock.NewFixed(testNow),
		slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics)
	return f
}

func TestCatalogue_Price(t *testing.T) {
	c := NewCatalogue(config.Pricing{SingleAppealPrice: 499, AnnualPlanPrice: 2999, HpiCheckPrice: 999, BulkHpiPrice: 3999}, "gbp")

	price, err := c.Price(models.ServiceHpiCheck, 3)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("29.97").Equal(price), price.String())

	price, err = c.Price(models.ServiceAnnualPlan, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("29.99").Equal(price))

	_, err = c.Price(models.ServiceAll, 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPaymentService_Checkout_OpensSession(t *testing.T) {
	f := newFixture()
	f.repo.On("GetAccountByID", mock.Anything, "acc-1").Return(&models.Account{ID: "acc-1", Email: "d@example.co.uk"}, nil)
	f.discounts.On("Validate", mock.Anything, mock.MatchedBy(func(r models.PromoValidationRequest) bool {
		return r.Code == "SPRING20" && r.OrderValue.Equal(decimal.RequireFromString("29.99")) &&
			r.ServiceType == models.ServiceAnnualPlan && r.AccountID == "acc-1"
	})).Return(models.PromoValidation{Valid: true, Discount: &models.Discount{
		PromoCodeID:    4,
		Code:           "SPRING20",
		DiscountAmount: decimal.RequireFromString("6.00"),
		FinalAmount:    decimal.RequireFromString("23.99"),
		OriginalAmount: decimal.RequireFromString("29.99"),
	}}, nil)
	f.repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Status == models.PaymentPending && p.PromoCodeID != nil && *p.PromoCodeID == 4 &&
			p.FinalAmount.Equal(decimal.RequireFromString("23.99")) && p.Currency == "gbp"
	})).Return(nil)
	f.provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(r paymentprovider.CheckoutRequest) bool {
		return r.AmountPence == 2399 && r.Currency == "gbp" && r.Email == "d@example.co.uk" && r.PaymentID != ""
	})).Return(&paymentprovider.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil)
	f.repo.On("SetPaymentSession", mock.Anything, mock.AnythingOfType("string"), "cs_1").Return(nil)

	res, err := f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{
		Product: models.ServiceAnnualPlan, PromoCode: "SPRING20",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Rejection)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", res.CheckoutURL)
	assert.Equal(t, "cs_1", res.Payment.ProviderSessionID)
	assert.Equal(t, 1, res.Payment.Quantity)
	f.repo.AssertNotCalled(t, "CompletePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertExpectations(t)
}

func TestPaymentService_Checkout_ZeroTotalCompletesWithoutProvider(t *testing.T) {
	f := newFixture()
	f.repo.On("GetAccountByID", mock.Anything, "acc-1").Return(&models.Account{ID: "acc-1"}, nil)
	f.discounts.On("Validate", mock.Anything, mock.Anything).Return(models.PromoValidation{Valid: true, Discount: &models.Discount{
		PromoCodeID:    9,
		DiscountAmount: decimal.RequireFromString("9.99"),
		FinalAmount:    decimal.Zero,
		OriginalAmount: decimal.RequireFromString("9.99"),
	}}, nil)
	f.repo.On("CreatePayment", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("CompletePayment", mock.Anything, mock.AnythingOfType("string"), models.Grant{HpiCredits: 1}, testNow).Return(true, nil)
	f.metrics.On("PaymentFinished", "HPI_CHECK", "completed").Return()

	res, err := f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{
		Product: models.ServiceHpiCheck, Quantity: 1, PromoCode: "FREEHPI",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, res.Payment.Status)
	assert.Empty(t, res.CheckoutURL)
	f.provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	f.metrics.AssertExpectations(t)
}

func TestPaymentService_Checkout_PromoRejected(t *testing.T) {
	f := newFixture()
	f.repo.On("GetAccountByID", mock.Anything, "acc-1").Return(&models.Account{ID: "acc-1"}, nil)
	f.discounts.On("Validate", mock.Anything, mock.Anything).
		Return(models.PromoValidation{Valid: false, Error: models.RejectExpired}, nil)

	res, err := f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{
		Product: models.ServiceSingleAppeal, PromoCode: "old10",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, models.RejectExpired, res.Rejection.Reason)
	assert.Nil(t, res.Payment)
	f.repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestPaymentService_Checkout_Errors(t *testing.T) {
	f := newFixture()
	f.repo.On("GetAccountByID", mock.Anything, "missing").Return(nil, fmt.Errorf("x: %w", storage.ErrNotFound))

	_, err := f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{Product: "GOLD"})
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{Product: models.ServiceHpiCheck, Quantity: 101})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.Checkout(context.Background(), "missing", models.DummyCheckout{Product: models.ServiceHpiCheck})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPaymentService_Checkout_ProviderFailureMarksPaymentFailed(t *testing.T) {
	f := newFixture()
	f.repo.On("GetAccountByID", mock.Anything, "acc-1").Return(&models.Account{ID: "acc-1"}, nil)
	f.repo.On("CreatePayment", mock.Anything, mock.Anything).Return(nil)
	f.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("stripe unavailable"))
	f.repo.On("FailPayment", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

	_, err := f.svc.Checkout(context.Background(), "acc-1", models.DummyCheckout{Product: models.ServiceBulkHpi, Quantity: 2})
	assert.Error(t, err)
	f.repo.AssertCalled(t, "FailPayment", mock.Anything, mock.AnythingOfType("string"))
}

func TestGrantFor(t *testing.T) {
	tests := []struct {
		name    string
		product models.ServiceType
		qty     int
		want    models.Grant
	}{
		{name: "hpi checks", product: models.ServiceHpiCheck, qty: 3, want: models.Grant{HpiCredits: 3}},
		{name: "bulk hpi", product: models.ServiceBulkHpi, qty: 2, want: models.Grant{HpiCredits: 10}},
		{
			name: "single appeal", product: models.ServiceSingleAppeal, qty: 1,
			want: models.Grant{
				AppealCredits:     1,
				SubscriptionType:  models.SubscriptionSingleAppeal,
				SubscriptionStart: testNow,
				SubscriptionEnd:   testNow.Add(365 * 24 * time.Hour),
			},
		},
		{
			name: "annual plan", product: models.ServiceAnnualPlan, qty: 1,
			want: models.Grant{
				SubscriptionType:  models.SubscriptionAnnualPlan,
				SubscriptionStart: testNow,
				SubscriptionEnd:   time.Date(2027, 5, 10, 12, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GrantFor(&models.Payment{Product: tt.product, Quantity: tt.qty}, testNow, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := GrantFor(&models.Payment{Product: models.ServiceAll, Quantity: 1}, testNow, 5)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	pending := &models.Payment{ID: "pay-1", AccountID: "acc-1", Product: models.ServiceAnnualPlan, Quantity: 1, Status: models.PaymentPending}

	t.Run("confirm grants once", func(t *testing.T) {
		f := newFixture()
		f.provider.On("ParseWebhook", []byte("body"), "sig").Return(&paymentprovider.Event{
			ID: "evt_1", Type: "checkout.session.completed", Kind: paymentprovider.EventPaymentSucceeded, PaymentID: "pay-1",
		}, nil)
		f.repo.On("GetPayment", mock.Anything, "pay-1").Return(pending, nil)
		f.repo.On("CompletePayment", mock.Anything, "pay-1", mock.Anything, testNow).Return(true, nil).Once()
		f.repo.On("CompletePayment", mock.Anything, "pay-1", mock.Anything, testNow).Return(false, nil).Once()
		f.metrics.On("PaymentFinished", "ANNUAL_PLAN", "completed").Return().Once()

		require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))
		require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))
		f.metrics.AssertNumberOfCalls(t, "PaymentFinished", 1)
	})

	t.Run("expired session fails payment", func(t *testing.T) {
		f := newFixture()
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&paymentprovider.Event{
			ID: "evt_2", Kind: paymentprovider.EventPaymentFailed, PaymentID: "pay-1",
		}, nil)
		f.repo.On("GetPayment", mock.Anything, "pay-1").Return(pending, nil)
		f.repo.On("FailPayment", mock.Anything, "pay-1").Return(true, nil)
		f.metrics.On("PaymentFinished", "ANNUAL_PLAN", "failed").Return()

		require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))
		f.metrics.AssertExpectations(t)
	})

	t.Run("ignored event", func(t *testing.T) {
		f := newFixture()
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&paymentprovider.Event{
			ID: "evt_3", Type: "customer.created", Kind: paymentprovider.EventIgnored,
		}, nil)

		require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))
		f.repo.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture()
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("parse: %w", paymentprovider.ErrInvalidSignature))

		err := f.svc.HandleWebhook(context.Background(), []byte("body"), "bad")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newFixture()
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&paymentprovider.Event{
			ID: "evt_4", Kind: paymentprovider.EventPaymentSucceeded, PaymentID: "nope",
		}, nil)
		f.repo.On("GetPayment", mock.Anything, "nope").Return(nil, fmt.Errorf("x: %w", storage.ErrNotFound))

		err := f.svc.HandleWebhook(context.Background(), []byte("body"), "sig")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}
