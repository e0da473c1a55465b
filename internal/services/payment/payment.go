// Package payment оформляет заказы на платные услуги и применяет подтверждённые оплаты.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/clearride/internal/config"
	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/paymentprovider"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

// singleAppealWindow срок действия разовой апелляции.
const singleAppealWindow = 365 * 24 * time.Hour

var (
	// ErrUnknownProduct продукт отсутствует в каталоге.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidQuantity количество вне допустимого диапазона.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrAccountNotFound учётная запись не найдена.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPaymentNotFound заказ не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvalidSignature вебхук не прошёл проверку подписи.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Repository хранилище заказов.
type Repository interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	SetPaymentSession(ctx context.Context, id, sessionID string) error
	CompletePayment(ctx context.Context, paymentID string, grant models.Grant, now time.Time) (bool, error)
	FailPayment(ctx context.Context, paymentID string) (bool, error)
}

// Discounts проверка промокода.
type Discounts interface {
	Validate(ctx context.Context, req models.PromoValidationRequest) (models.PromoValidation, error)
}

// Metrics счётчики оплат.
type Metrics interface {
	PaymentFinished(product, status string)
}

// Catalogue цены продуктов.
type Catalogue struct {
	prices   map[models.ServiceType]decimal.Decimal
	packSize int
	currency string
}

// NewCatalogue строит каталог из цен в пенсах.
func NewCatalogue(p config.Pricing, currency string) Catalogue {
	pence := func(v int64) decimal.Decimal { return decimal.New(v, -2) }
	packSize := p.BulkHpiPackSize
	if packSize <= 0 {
		packSize = 1
	}
	return Catalogue{
		prices: map[models.ServiceType]decimal.Decimal{
			models.ServiceSingleAppeal: pence(p.SingleAppealPrice),
			models.ServiceAnnualPlan:   pence(p.AnnualPlanPrice),
			models.ServiceHpiCheck:     pence(p.HpiCheckPrice),
			models.ServiceBulkHpi:      pence(p.BulkHpiPrice),
		},
		packSize: packSize,
		currency: currency,
	}
}

// Price стоимость qty единиц продукта.
func (c Catalogue) Price(product models.ServiceType, qty int) (decimal.Decimal, error) {
	unit, ok := c.prices[product]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownProduct, product)
	}
	return unit.Mul(decimal.NewFromInt(int64(qty))), nil
}

// PaymentService бизнес-логика заказов.
type PaymentService struct {
	repo      Repository
	discounts Discounts
	provider  paymentprovider.Provider
	catalogue Catalogue
	clock     clock.Clock
	log       *slog.Logger
	metrics   Metrics
}

// New создаёт PaymentService.
func New(repo Repository, discounts Discounts, provider paymentprovider.Provider, catalogue Catalogue,
	clk clock.Clock, log *slog.Logger, metrics Metrics) *PaymentService {
	return &PaymentService{
		repo:      repo,
		discounts: discounts,
		provider:  provider,
		catalogue: catalogue,
		clock:     clk,
		log:       log,
		metrics:   metrics,
	}
}

// Checkout создаёт заказ. Если итоговая сумма после скидки нулевая, заказ подтверждается сразу,
// иначе открывается сессия оплаты у провайдера. Отклонённый промокод возвращается в CheckoutResult.Rejection.
func (s *PaymentService) Checkout(ctx context.Context, accountID string, req models.DummyCheckout) (*models.CheckoutResult, error) {
	const op = "payment.Checkout"

	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > 100 {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidQuantity, qty)
	}
	original, err := s.catalogue.Price(req.Product, qty)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	p := &models.Payment{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Product:        req.Product,
		Quantity:       qty,
		OriginalAmount: original,
		DiscountAmount: decimal.Zero,
		FinalAmount:    original,
		Currency:       s.catalogue.currency,
		Status:         models.PaymentPending,
		CreatedAt:      now,
	}

	if req.PromoCode != "" {
		v, err := s.discounts.Validate(ctx, models.PromoValidationRequest{
			Code:        req.PromoCode,
			OrderValue:  original,
			ServiceType: req.Product,
			AccountID:   accountID,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !v.Valid {
			return &models.CheckoutResult{Rejection: &models.Rejection{
				Reason:  v.Error,
				Message: fmt.Sprintf("promo code %s cannot be applied", models.NormalizePromoCode(req.PromoCode)),
			}}, nil
		}
		id := v.Discount.PromoCodeID
		p.PromoCodeID = &id
		p.DiscountAmount = v.Discount.DiscountAmount
		p.FinalAmount = v.Discount.FinalAmount
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment created",
		slog.String("payment_id", p.ID),
		slog.String("account_id", accountID),
		slog.String("product", string(p.Product)),
		slog.String("final_amount", p.FinalAmount.StringFixed(2)))

	if p.FinalAmount.IsZero() {
		if _, err := s.complete(ctx, p); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.Status = models.PaymentCompleted
		completedAt := s.clock.Now()
		p.CompletedAt = &completedAt
		return &models.CheckoutResult{Payment: p}, nil
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutRequest{
		PaymentID:   p.ID,
		Description: describe(p.Product, qty),
		AmountPence: p.FinalAmount.Shift(2).Round(0).IntPart(),
		Currency:    p.Currency,
		Email:       account.Email,
	})
	if err != nil {
		if _, failErr := s.repo.FailPayment(ctx, p.ID); failErr != nil {
			s.log.Error("failed to mark payment failed", slog.String("payment_id", p.ID), sl.Err(failErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetPaymentSession(ctx, p.ID, sess.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.ProviderSessionID = sess.ID
	return &models.CheckoutResult{Payment: p, CheckoutURL: sess.URL}, nil
}

// Confirm применяет оплату. Повторное подтверждение того же заказа ничего не меняет и возвращает false.
func (s *PaymentService) Confirm(ctx context.Context, paymentID string) (bool, error) {
	const op = "payment.Confirm"
	p, err := s.payment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	applied, err := s.complete(ctx, p)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return applied, nil
}

// Fail отмечает заказ неоплаченным.
func (s *PaymentService) Fail(ctx context.Context, paymentID string) (bool, error) {
	const op = "payment.Fail"
	p, err := s.payment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	failed, err := s.repo.FailPayment(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if failed {
		s.metrics.PaymentFinished(string(p.Product), string(models.PaymentFailed))
		s.log.Info("payment failed", slog.String("payment_id", p.ID))
	}
	return failed, nil
}

// HandleWebhook проверяет вебхук провайдера и применяет событие к заказу.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "payment.HandleWebhook"
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, paymentprovider.ErrInvalidSignature) {
			return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	if event.Kind != paymentprovider.EventIgnored && event.PaymentID == "" {
		log.Warn("webhook event without payment reference")
		return nil
	}

	switch event.Kind {
	case paymentprovider.EventPaymentSucceeded:
		applied, err := s.Confirm(ctx, event.PaymentID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !applied {
			log.Info("duplicate payment confirmation ignored", slog.String("payment_id", event.PaymentID))
		}
	case paymentprovider.EventPaymentFailed:
		if _, err := s.Fail(ctx, event.PaymentID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	default:
		log.Debug("webhook event ignored")
	}
	return nil
}

func (s *PaymentService) complete(ctx context.Context, p *models.Payment) (bool, error) {
	now := s.clock.Now()
	grant, err := GrantFor(p, now, s.catalogue.packSize)
	if err != nil {
		return false, err
	}
	applied, err := s.repo.CompletePayment(ctx, p.ID, grant, now)
	if err != nil {
		return false, err
	}
	if applied {
		s.metrics.PaymentFinished(string(p.Product), string(models.PaymentCompleted))
		s.log.Info("payment completed",
			slog.String("payment_id", p.ID),
			slog.String("account_id", p.AccountID),
			slog.String("product", string(p.Product)))
	}
	return applied, nil
}

func (s *PaymentService) payment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// GrantFor вычисляет, что получает учётная запись за оплаченный заказ.
// С текущим тарифом grant совмещается в models.Grant.Apply при подтверждении.
func GrantFor(p *models.Payment, now time.Time, packSize int) (models.Grant, error) {
	switch p.Product {
	case models.ServiceHpiCheck:
		return models.Grant{HpiCredits: p.Quantity}, nil
	case models.ServiceBulkHpi:
		return models.Grant{HpiCredits: packSize * p.Quantity}, nil
	case models.ServiceSingleAppeal:
		return models.Grant{
			AppealCredits:     p.Quantity,
			SubscriptionType:  models.SubscriptionSingleAppeal,
			SubscriptionStart: now,
			SubscriptionEnd:   now.Add(singleAppealWindow),
		}, nil
	case models.ServiceAnnualPlan:
		return models.Grant{
			SubscriptionType:  models.SubscriptionAnnualPlan,
			SubscriptionStart: now,
			SubscriptionEnd:   now.AddDate(1, 0, 0),
		}, nil
	default:
		return models.Grant{}, fmt.Errorf("%w: %q", ErrUnknownProduct, p.Product)
	}
}

func describe(product models.ServiceType, qty int) string {
	var name string
	switch product {
	case models.ServiceSingleAppeal:
		name = "ClearRide single appeal"
	case models.ServiceAnnualPlan:
		name = "ClearRide annual plan"
	case models.ServiceHpiCheck:
		name = "ClearRide HPI check"
	case models.ServiceBulkHpi:
		name = "ClearRide HPI check bundle"
	default:
		name = string(product)
	}
	if qty > 1 {
		return fmt.Sprintf("%s x%d", name, qty)
	}
	return name
}
