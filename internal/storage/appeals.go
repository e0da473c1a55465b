package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/clearride/internal/models"
)

const appealColumns = `id, account_id, ticket_number, vehicle_registration, fine_amount, issue_date,
	due_date, reason, description, status, ai_generated, outcome, created_at`

func scanAppeal(row rowScanner) (*models.Appeal, error) {
	var (
		a   models.Appeal
		due sql.NullTime
	)
	err := row.Scan(&a.ID, &a.AccountID, &a.TicketNumber, &a.VehicleRegistration, &a.FineAmount,
		&a.IssueDate, &due, &a.Reason, &a.Description, &a.Status, &a.AIGenerated, &a.Outcome, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		t := due.Time
		a.DueDate = &t
	}
	return &a, nil
}

// CreateAppeal сохраняет апелляцию и заполняет её ID и время создания.
func (s *Storage) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	const op = "storage.CreateAppeal"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO appeals (account_id, ticket_number, vehicle_registration, fine_amount,
				issue_date, due_date, reason, description, status, ai_generated, outcome, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING id`
	err := s.DB.QueryRowContext(ctx, query, a.AccountID, a.TicketNumber, a.VehicleRegistration,
		a.FineAmount, a.IssueDate, a.DueDate, a.Reason, a.Description, a.Status, a.AIGenerated,
		a.Outcome, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAppeal возвращает апелляцию, принадлежащую учётной записи.
func (s *Storage) GetAppeal(ctx context.Context, accountID string, id int) (*models.Appeal, error) {
	const op = "storage.GetAppeal"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE id = $1 AND account_id = $2`, id, accountID)
	a, err := scanAppeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// ListAppeals возвращает апелляции учётной записи, новые первыми.
func (s *Storage) ListAppeals(ctx context.Context, accountID string) ([]*models.Appeal, error) {
	const op = "storage.ListAppeals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE account_id = $1 ORDER BY created_at DESC, id DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := make([]*models.Appeal, 0)
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateAppealOutcome сохраняет результат апелляции, о котором сообщил водитель.
func (s *Storage) UpdateAppealOutcome(ctx context.Context, accountID string, id int, outcome models.AppealOutcome) error {
	const op = "storage.UpdateAppealOutcome"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE appeals SET outcome = $3 WHERE id = $1 AND account_id = $2`, id, accountID, outcome)
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

// CreateHpiCheck сохраняет запрос HPI-проверки.
func (s *Storage) CreateHpiCheck(ctx context.Context, c *models.HpiCheck) error {
	const op = "storage.CreateHpiCheck"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO hpi_checks (account_id, registration, source, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		c.AccountID, c.Registration, c.Source, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
