// Package promo реализует администрирование промокодов.
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/discount"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

var (
	// ErrInvalidPromo параметры промокода нарушают ограничения.
	ErrInvalidPromo = errors.New("invalid promo code")
	// ErrPromoNotFound промокод не найден.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoExists промокод с таким кодом уже существует.
	ErrPromoExists = errors.New("promo code already exists")
	// ErrPromoInUse промокод уже применялся, его можно только деактивировать.
	ErrPromoInUse = errors.New("promo code has usages and can only be deactivated")
)

var (
	codePattern    = regexp.MustCompile(`^[A-Z0-9_-]+$`)
	hundredPercent = decimal.NewFromInt(100)
)

// Repository хранилище промокодов.
type Repository interface {
	CreatePromoCode(ctx context.Context, p *models.PromoCode) error
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	UpdatePromoCode(ctx context.Context, p *models.PromoCode) error
	DeletePromoCode(ctx context.Context, code string) error
}

// Service управляет промокодами и сбрасывает их кеш при изменении.
type Service struct {
	repo  Repository
	cache discount.Cache
	log   *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, cache discount.Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create проверяет и сохраняет новый промокод.
func (s *Service) Create(ctx context.Context, req models.DummyPromoCode) (*models.PromoCode, error) {
	const op = "promo.Create"
	p, err := build(models.NormalizePromoCode(req.Code), req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.CreatePromoCode(ctx, p); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo code created", slog.String("code", p.Code), slog.Int("id", p.ID))
	return p, nil
}

// Get возвращает промокод по коду.
func (s *Service) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "promo.Get"
	p, err := s.repo.GetPromoCodeByCode(ctx, models.NormalizePromoCode(code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Update перезаписывает параметры промокода code.
func (s *Service) Update(ctx context.Context, code string, req models.DummyPromoCode) (*models.PromoCode, error) {
	const op = "promo.Update"
	p, err := build(models.NormalizePromoCode(code), req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdatePromoCode(ctx, p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, p.Code)
	s.log.Info("promo code updated", slog.String("code", p.Code), slog.Bool("active", p.IsActive))
	return p, nil
}

// Remove удаляет промокод. Промокод с историей применения не удаляется.
func (s *Service) Remove(ctx context.Context, code string) error {
	const op = "promo.Remove"
	code = models.NormalizePromoCode(code)
	if err := s.repo.DeletePromoCode(ctx, code); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		case errors.Is(err, storage.ErrInUse):
			return fmt.Errorf("%s: %w", op, ErrPromoInUse)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, code)
	s.log.Info("promo code removed", slog.String("code", code))
	return nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	key := discount.PromoCacheKey(code)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate promo cache", slog.String("key", key), sl.Err(err))
	}
}

func build(code string, req models.DummyPromoCode) (*models.PromoCode, error) {
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code must contain only A-Z, 0-9, _ and -", ErrInvalidPromo)
	}
	switch req.DiscountType {
	case models.DiscountPercentage:
		if req.DiscountValue.GreaterThan(hundredPercent) {
			return nil, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidPromo)
		}
	case models.DiscountFixedAmount:
		if req.MaxDiscount.Valid {
			return nil, fmt.Errorf("%w: max discount applies to percentage codes only", ErrInvalidPromo)
		}
	default:
		return nil, fmt.Errorf("%w: unknown discount type %q", ErrInvalidPromo, req.DiscountType)
	}
	if req.DiscountValue.IsNegative() {
		return nil, fmt.Errorf("%w: discount value must not be negative", ErrInvalidPromo)
	}
	if req.MinOrderValue.Valid && req.MinOrderValue.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: min order value must not be negative", ErrInvalidPromo)
	}
	if req.MaxDiscount.Valid && req.MaxDiscount.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: max discount must not be negative", ErrInvalidPromo)
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return nil, fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidPromo)
	}
	if len(req.ApplicableFor) == 0 {
		return nil, fmt.Errorf("%w: applicable_for must not be empty", ErrInvalidPromo)
	}
	applicable := make([]models.ServiceType, 0, len(req.ApplicableFor))
	for _, st := range req.ApplicableFor {
		st = models.ServiceType(models.NormalizePromoCode(string(st)))
		switch st {
		case models.ServiceAll, models.ServiceSingleAppeal, models.ServiceAnnualPlan,
			models.ServiceHpiCheck, models.ServiceBulkHpi:
			applicable = append(applicable, st)
		default:
			return nil, fmt.Errorf("%w: unknown service type %q", ErrInvalidPromo, st)
		}
	}

	return &models.PromoCode{
		Code:          code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderValue: req.MinOrderValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		PerUserLimit:  req.PerUserLimit,
		ValidFrom:     req.ValidFrom.UTC(),
		ValidUntil:    req.ValidUntil.UTC(),
		IsActive:      req.IsActive,
		ApplicableFor: applicable,
	}, nil
}
