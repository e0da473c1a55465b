package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/clearride/internal/models"
)

const paymentColumns = `id, account_id, product, quantity, original_amount, discount_amount, final_amount,
	currency, promo_code_id, status, provider_session_id, created_at, completed_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p         models.Payment
		promoID   sql.NullInt64
		sessionID sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&p.ID, &p.AccountID, &p.Product, &p.Quantity, &p.OriginalAmount, &p.DiscountAmount,
		&p.FinalAmount, &p.Currency, &promoID, &p.Status, &sessionID, &p.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}
	p.PromoCodeID = nullIntPtr(promoID)
	p.ProviderSessionID = sessionID.String
	if completed.Valid {
		t := completed.Time
		p.CompletedAt = &t
	}
	return &p, nil
}

// CreatePayment сохраняет заказ в статусе pending.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) error {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (id, account_id, product, quantity, original_amount, discount_amount,
				final_amount, currency, promo_code_id, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.DB.ExecContext(ctx, query, p.ID, p.AccountID, p.Product, p.Quantity, p.OriginalAmount,
		p.DiscountAmount, p.FinalAmount, p.Currency, p.PromoCodeID, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPayment возвращает заказ по идентификатору.
func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPayment(s.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SetPaymentSession привязывает к заказу идентификатор сессии платёжного провайдера.
func (s *Storage) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	const op = "storage.SetPaymentSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE payments SET provider_session_id = $2 WHERE id = $1`, id, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// CompletePayment в одной транзакции переводит заказ из pending в completed,
// применяет grant к учётной записи (см. models.Grant.Apply) и записывает применение промокода.
// Возвращает false, если заказ уже не в статусе pending: повторное подтверждение ничего не меняет.
func (s *Storage) CompletePayment(ctx context.Context, paymentID string, grant models.Grant, now time.Time) (bool, error) {
	const op = "storage.CompletePayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		accountID      string
		promoID        sql.NullInt64
		discountAmount string
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE payments SET status = 'completed', completed_at = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING account_id, promo_code_id, discount_amount::text`,
		paymentID, now).Scan(&accountID, &promoID, &discountAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// строка учётной записи блокируется до конца транзакции, grant применяется к актуальному состоянию
	acc, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	grant.Apply(acc, now)

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
		 SET hpi_credits = $2, appeal_credits = $3, subscription_type = $4,
		     subscription_start = $5, subscription_end = $6, is_active = $7
		 WHERE id = $1`,
		acc.ID, acc.HpiCredits, acc.AppealCredits, acc.SubscriptionType,
		acc.SubscriptionStart, acc.SubscriptionEnd, acc.IsActive)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if promoID.Valid {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promo_usages (promo_code_id, account_id, payment_id, discount_amount, created_at)
			 VALUES ($1, $2, $3, $4::numeric, $5)`,
			promoID.Int64, accountID, paymentID, discountAmount, now)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// FailPayment переводит заказ из pending в failed. Возвращает false, если статус уже другой.
func (s *Storage) FailPayment(ctx context.Context, paymentID string) (bool, error) {
	const op = "storage.FailPayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE payments SET status = 'failed' WHERE id = $1 AND status = 'pending'`, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}
