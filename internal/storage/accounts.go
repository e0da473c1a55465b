package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/clearride/internal/models"
)

const accountColumns = `id, email, password_hash, role, subscription_type, subscription_start,
	subscription_end, is_active, appeal_trial_used, appeal_trial_used_at, appeal_trial_reg,
	hpi_credits, appeal_credits, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		acc      models.Account
		subEnd   sql.NullTime
		trialAt  sql.NullTime
		trialReg sql.NullString
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.SubscriptionType,
		&acc.SubscriptionStart, &subEnd, &acc.IsActive, &acc.AppealTrialUsed, &trialAt, &trialReg,
		&acc.HpiCredits, &acc.AppealCredits, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if subEnd.Valid {
		t := subEnd.Time
		acc.SubscriptionEnd = &t
	}
	if trialAt.Valid {
		t := trialAt.Time
		acc.AppealTrialUsedAt = &t
	}
	acc.AppealTrialReg = trialReg.String
	return &acc, nil
}

// CreateAccount сохраняет новую учётную запись. Занятый email возвращает ErrAlreadyExists.
func (s *Storage) CreateAccount(ctx context.Context, acc *models.Account) error {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (id, email, password_hash, role, subscription_type,
				subscription_start, subscription_end, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query, acc.ID, acc.Email, acc.PasswordHash, acc.Role,
		acc.SubscriptionType, acc.SubscriptionStart, acc.SubscriptionEnd, acc.IsActive).Scan(&acc.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccountByID возвращает учётную запись по идентификатору.
func (s *Storage) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	const op = "storage.GetAccountByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// GetAccountByEmail возвращает учётную запись по email.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// ConsumeAppealTrial отмечает пробную апелляцию использованной для номера reg.
// Возвращает false, если пробный доступ уже был израсходован.
func (s *Storage) ConsumeAppealTrial(ctx context.Context, accountID, reg string, now time.Time) (bool, error) {
	const op = "storage.ConsumeAppealTrial"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET appeal_trial_used = TRUE, appeal_trial_used_at = $2, appeal_trial_reg = $3
			  WHERE id = $1 AND appeal_trial_used = FALSE`
	res, err := s.DB.ExecContext(ctx, query, accountID, now, reg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// ConsumeHpiCredit списывает один HPI кредит. Возвращает остаток и false, если кредитов нет.
func (s *Storage) ConsumeHpiCredit(ctx context.Context, accountID string) (int, bool, error) {
	return s.consumeCredit(ctx, "storage.ConsumeHpiCredit",
		`UPDATE accounts SET hpi_credits = hpi_credits - 1
		 WHERE id = $1 AND hpi_credits >= 1
		 RETURNING hpi_credits`, accountID)
}

// ConsumeAppealCredit списывает один оплаченный кредит на апелляцию.
func (s *Storage) ConsumeAppealCredit(ctx context.Context, accountID string) (int, bool, error) {
	return s.consumeCredit(ctx, "storage.ConsumeAppealCredit",
		`UPDATE accounts SET appeal_credits = appeal_credits - 1
		 WHERE id = $1 AND appeal_credits >= 1
		 RETURNING appeal_credits`, accountID)
}

// RestoreAppealCredit возвращает списанный кредит на апелляцию.
func (s *Storage) RestoreAppealCredit(ctx context.Context, accountID string) error {
	const op = "storage.RestoreAppealCredit"
	res, err := s.DB.ExecContext(ctx,
		`UPDATE accounts SET appeal_credits = appeal_credits + 1 WHERE id = $1`, accountID)
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

func (s *Storage) consumeCredit(ctx context.Context, op, query, accountID string) (int, bool, error) {
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var remaining int
	err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, true, nil
}

// CountAppealsSince возвращает число апелляций учётной записи, поданных начиная с since.
func (s *Storage) CountAppealsSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	const op = "storage.CountAppealsSince"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appeals WHERE account_id = $1 AND created_at >= $2`,
		accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// FindSubscriptionsEndingBetween находит активные записи тарифа subType,
// окно которых заканчивается в интервале [from, to).
func (s *Storage) FindSubscriptionsEndingBetween(ctx context.Context, subType models.SubscriptionType,
	from, to time.Time) ([]models.ReminderInfo, error) {
	const op = "storage.FindSubscriptionsEndingBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, subscription_type, subscription_end
			  FROM accounts
			  WHERE subscription_type = $1 AND is_active = TRUE
			    AND subscription_end >= $2 AND subscription_end < $3
			  ORDER BY subscription_end`
	rows, err := s.DB.QueryContext(ctx, query, subType, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.ReminderInfo
	for rows.Next() {
		var info models.ReminderInfo
		if err := rows.Scan(&info.AccountID, &info.Email, &info.SubscriptionType, &info.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
