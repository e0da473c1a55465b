package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/clearride/internal/models"
)

const promoColumns = `id, code, discount_type, discount_value, min_order_value, max_discount,
	usage_limit, per_user_limit, valid_from, valid_until, is_active, applicable_for, created_at, updated_at`

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	var (
		p            models.PromoCode
		usageLimit   sql.NullInt64
		perUserLimit sql.NullInt64
		applicable   string
	)
	err := row.Scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MinOrderValue, &p.MaxDiscount,
		&usageLimit, &perUserLimit, &p.ValidFrom, &p.ValidUntil, &p.IsActive, &applicable,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.UsageLimit = nullIntPtr(usageLimit)
	p.PerUserLimit = nullIntPtr(perUserLimit)
	p.ApplicableFor = models.SplitServiceTypes(applicable)
	return &p, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// CreatePromoCode сохраняет промокод. Занятый код возвращает ErrAlreadyExists.
func (s *Storage) CreatePromoCode(ctx context.Context, p *models.PromoCode) error {
	const op = "storage.CreatePromoCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO promo_codes (code, discount_type, discount_value, min_order_value, max_discount,
				usage_limit, per_user_limit, valid_from, valid_until, is_active, applicable_for)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id, created_at, updated_at`
	err := s.DB.QueryRowContext(ctx, query, p.Code, p.DiscountType, p.DiscountValue, p.MinOrderValue,
		p.MaxDiscount, p.UsageLimit, p.PerUserLimit, p.ValidFrom, p.ValidUntil, p.IsActive,
		models.JoinServiceTypes(p.ApplicableFor)).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPromoCodeByCode возвращает промокод по нормализованному коду.
func (s *Storage) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCodeByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code)
	p, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// UpdatePromoCode перезаписывает параметры промокода с кодом p.Code.
func (s *Storage) UpdatePromoCode(ctx context.Context, p *models.PromoCode) error {
	const op = "storage.UpdatePromoCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE promo_codes
			  SET discount_type = $2, discount_value = $3, min_order_value = $4, max_discount = $5,
			      usage_limit = $6, per_user_limit = $7, valid_from = $8, valid_until = $9,
			      is_active = $10, applicable_for = $11, updated_at = NOW()
			  WHERE code = $1
			  RETURNING id, created_at, updated_at`
	err := s.DB.QueryRowContext(ctx, query, p.Code, p.DiscountType, p.DiscountValue, p.MinOrderValue,
		p.MaxDiscount, p.UsageLimit, p.PerUserLimit, p.ValidFrom, p.ValidUntil, p.IsActive,
		models.JoinServiceTypes(p.ApplicableFor)).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeletePromoCode удаляет промокод, если он ни разу не применялся.
// Промокод с историей применения возвращает ErrInUse.
func (s *Storage) DeletePromoCode(ctx context.Context, code string) error {
	const op = "storage.DeletePromoCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM promo_codes
			  WHERE code = $1
			    AND NOT EXISTS (SELECT 1 FROM promo_usages u WHERE u.promo_code_id = promo_codes.id)`
	res, err := s.DB.ExecContext(ctx, query, code)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, ErrInUse)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = $1)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, ErrInUse)
	}
	return fmt.Errorf("%s: %w", op, ErrNotFound)
}

// CountPromoUsages возвращает общее число применений промокода.
func (s *Storage) CountPromoUsages(ctx context.Context, promoCodeID int) (int, error) {
	const op = "storage.CountPromoUsages"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM promo_usages WHERE promo_code_id = $1`, promoCodeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CountPromoUsagesByAccount возвращает число применений промокода учётной записью.
func (s *Storage) CountPromoUsagesByAccount(ctx context.Context, promoCodeID int, accountID string) (int, error) {
	const op = "storage.CountPromoUsagesByAccount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM promo_usages WHERE promo_code_id = $1 AND account_id = $2`,
		promoCodeID, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
