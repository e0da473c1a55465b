// Package discount проверяет промокод для заказа и рассчитывает скидку.
package discount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

// ErrInvalidOrderValue сумма заказа отрицательна.
var ErrInvalidOrderValue = errors.New("order value must not be negative")

// PromoRepository чтение промокодов и счётчиков их применения.
type PromoRepository interface {
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	CountPromoUsages(ctx context.Context, promoCodeID int) (int, error)
	CountPromoUsagesByAccount(ctx context.Context, promoCodeID int, accountID string) (int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Metrics учёт результатов проверки.
type Metrics interface {
	PromoValidation(result string)
}

var hundred = decimal.NewFromInt(100)

// PromoCacheKey ключ кеша для промокода.
func PromoCacheKey(code string) string {
	return "promo:" + code
}

// Calculator проверяет промокоды. Ничего не изменяет: применение записывается при подтверждении оплаты.
type Calculator struct {
	repo     PromoRepository
	cache    Cache
	cacheTTL time.Duration
	clock    clock.Clock
	log      *slog.Logger
	metrics  Metrics
}

// New создаёт Calculator.
func New(repo PromoRepository, cache Cache, cacheTTL time.Duration, clk clock.Clock, log *slog.Logger, metrics Metrics) *Calculator {
	return &Calculator{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clk,
		log:      log,
		metrics:  metrics,
	}
}

// Validate проверяет промокод req.Code для заказа и рассчитывает скидку.
// Отказ возвращается как PromoValidation с Valid == false, ошибка только при сбое хранилища.
func (c *Calculator) Validate(ctx context.Context, req models.PromoValidationRequest) (models.PromoValidation, error) {
	const op = "discount.Validate"
	if req.OrderValue.IsNegative() {
		return models.PromoValidation{}, fmt.Errorf("%s: %w", op, ErrInvalidOrderValue)
	}

	code := models.NormalizePromoCode(req.Code)
	if code == "" {
		return c.reject(models.RejectNotFound), nil
	}
	promo, err := c.lookup(ctx, code)
	if err != nil {
		return models.PromoValidation{}, fmt.Errorf("%s: %w", op, err)
	}
	if promo == nil {
		return c.reject(models.RejectNotFound), nil
	}

	if !promo.IsActive {
		return c.reject(models.RejectInactive), nil
	}
	now := c.clock.Now()
	if now.Before(promo.ValidFrom) {
		return c.reject(models.RejectNotYetValid), nil
	}
	if now.After(promo.ValidUntil) {
		return c.reject(models.RejectExpired), nil
	}
	if !promo.AppliesTo(req.ServiceType) {
		return c.reject(models.RejectServiceMismatch), nil
	}

	if promo.UsageLimit != nil {
		total, err := c.repo.CountPromoUsages(ctx, promo.ID)
		if err != nil {
			return models.PromoValidation{}, fmt.Errorf("%s: %w", op, err)
		}
		if total >= *promo.UsageLimit {
			return c.reject(models.RejectUsageLimitReached), nil
		}
	}
	if promo.PerUserLimit != nil && req.AccountID != "" {
		used, err := c.repo.CountPromoUsagesByAccount(ctx, promo.ID, req.AccountID)
		if err != nil {
			return models.PromoValidation{}, fmt.Errorf("%s: %w", op, err)
		}
		if used >= *promo.PerUserLimit {
			return c.reject(models.RejectPerUserLimitReached), nil
		}
	}

	if promo.MinOrderValue.Valid && req.OrderValue.LessThan(promo.MinOrderValue.Decimal) {
		return c.reject(models.RejectMinimumOrderNotMet), nil
	}

	amount := Amount(promo, req.OrderValue)
	c.metrics.PromoValidation("valid")
	return models.PromoValidation{
		Valid: true,
		Discount: &models.Discount{
			PromoCodeID:    promo.ID,
			Code:           promo.Code,
			DiscountAmount: amount,
			FinalAmount:    req.OrderValue.Sub(amount),
			OriginalAmount: req.OrderValue,
		},
	}, nil
}

// Amount рассчитывает скидку промокода для суммы заказа.
// Процентная скидка округляется до пенса и ограничивается MaxDiscount.
// Результат никогда не превышает сумму заказа.
func Amount(promo *models.PromoCode, orderValue decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercentage:
		amount = orderValue.Mul(promo.DiscountValue).Div(hundred).Round(2)
		if promo.MaxDiscount.Valid && amount.GreaterThan(promo.MaxDiscount.Decimal) {
			amount = promo.MaxDiscount.Decimal
		}
	default:
		amount = promo.DiscountValue
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, orderValue)
}

func (c *Calculator) lookup(ctx context.Context, code string) (*models.PromoCode, error) {
	key := PromoCacheKey(code)
	var cached models.PromoCode
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.log.Warn("failed to read promo code from cache", slog.String("key", key), sl.Err(err))
	} else if found {
		return &cached, nil
	}

	promo, err := c.repo.GetPromoCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := c.cache.Set(ctx, key, promo, c.cacheTTL); err != nil {
		c.log.Warn("failed to cache promo code", slog.String("key", key), sl.Err(err))
	}
	return promo, nil
}

func (c *Calculator) reject(reason models.RejectionReason) models.PromoValidation {
	c.metrics.PromoValidation(string(reason))
	return models.PromoValidation{Valid: false, Error: reason}
}
