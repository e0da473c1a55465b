// Package appeal реализует подачу апелляций по штрафам и работу с ними.
package appeal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/letter"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

const dateLayout = "2006-01-02"

var (
	// ErrInvalidAppeal данные апелляции некорректны.
	ErrInvalidAppeal = errors.New("invalid appeal")
	// ErrAppealNotFound апелляция не найдена или принадлежит другой учётной записи.
	ErrAppealNotFound = errors.New("appeal not found")
	// ErrAccountNotFound учётная запись не найдена.
	ErrAccountNotFound = errors.New("account not found")
)

// Repository хранилище апелляций и учётных записей.
type Repository interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	CreateAppeal(ctx context.Context, a *models.Appeal) error
	GetAppeal(ctx context.Context, accountID string, id int) (*models.Appeal, error)
	ListAppeals(ctx context.Context, accountID string) ([]*models.Appeal, error)
	UpdateAppealOutcome(ctx context.Context, accountID string, id int, outcome models.AppealOutcome) error
}

// Entitlements проверки прав на подачу апелляции.
type Entitlements interface {
	SubmitAppealWithLimitCheck(ctx context.Context, account *models.Account) (*models.Rejection, error)
	ResolveAppealAccess(ctx context.Context, account *models.Account, targetRegistration string) (models.Decision, error)
	ConsumeAppealCredit(ctx context.Context, account *models.Account) (models.Decision, error)
	RefundAppealCredit(ctx context.Context, account *models.Account) error
}

// CreateResult итог подачи апелляции. Appeal заполнена только при разрешённом доступе.
// Rejection заполнен, если превышен лимит тарифа.
type CreateResult struct {
	Appeal    *models.Appeal
	Decision  models.Decision
	Rejection *models.Rejection
}

// Service бизнес-логика апелляций.
type Service struct {
	repo         Repository
	entitlements Entitlements
	clock        clock.Clock
	log          *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, entitlements Entitlements, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		entitlements: entitlements,
		clock:        clk,
		log:          log,
	}
}

// Create подаёт апелляцию. Сначала проверяется лимит тарифа, затем право на бесплатную
// апелляцию, затем оплаченный кредит. Апелляция сохраняется только если обе проверки пройдены.
func (s *Service) Create(ctx context.Context, accountID string, req models.DummyAppeal) (*CreateResult, error) {
	const op = "appeal.Create"

	appeal, err := s.build(accountID, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rejection, err := s.entitlements.SubmitAppealWithLimitCheck(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rejection != nil {
		s.log.Info("appeal rejected by plan limit",
			slog.String("account_id", accountID), slog.String("reason", string(rejection.Reason)))
		return &CreateResult{Rejection: rejection}, nil
	}

	decision, err := s.entitlements.ResolveAppealAccess(ctx, account, appeal.VehicleRegistration)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !decision.Granted() {
		credit, err := s.entitlements.ConsumeAppealCredit(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !credit.Granted() {
			return &CreateResult{Decision: decision}, nil
		}
		decision = credit
	}

	if err := s.repo.CreateAppeal(ctx, appeal); err != nil {
		if decision.Reason == models.ReasonPrepaidCredit {
			if refundErr := s.entitlements.RefundAppealCredit(ctx, account); refundErr != nil {
				s.log.Error("failed to refund appeal credit",
					slog.String("account_id", accountID), sl.Err(refundErr))
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("appeal submitted",
		slog.String("account_id", accountID),
		slog.Int("appeal_id", appeal.ID),
		slog.String("reason", string(decision.Reason)))
	return &CreateResult{Appeal: appeal, Decision: decision}, nil
}

// List возвращает апелляции учётной записи.
func (s *Service) List(ctx context.Context, accountID string) ([]*models.Appeal, error) {
	const op = "appeal.List"
	appeals, err := s.repo.ListAppeals(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return appeals, nil
}

// UpdateOutcome сохраняет результат, о котором сообщил водитель.
func (s *Service) UpdateOutcome(ctx context.Context, accountID string, id int, outcome models.AppealOutcome) error {
	const op = "appeal.UpdateOutcome"
	switch outcome {
	case models.OutcomePending, models.OutcomeSuccessful, models.OutcomeUnsuccessful:
	default:
		return fmt.Errorf("%s: %w: unknown outcome %q", op, ErrInvalidAppeal, outcome)
	}
	if err := s.repo.UpdateAppealOutcome(ctx, accountID, id, outcome); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrAppealNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Letter формирует PDF письмо по сохранённой апелляции.
func (s *Service) Letter(ctx context.Context, accountID string, id int) ([]byte, *models.Appeal, error) {
	const op = "appeal.Letter"
	appeal, err := s.repo.GetAppeal(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrAppealNotFound)
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	doc, err := letter.Render(appeal, account.Email, s.clock.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, appeal, nil
}

func (s *Service) account(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) build(accountID string, req models.DummyAppeal) (*models.Appeal, error) {
	reg := models.NormalizeRegistration(req.VehicleRegistration)
	if reg == "" {
		return nil, fmt.Errorf("%w: vehicle registration is empty", ErrInvalidAppeal)
	}
	if req.FineAmount.IsNegative() {
		return nil, fmt.Errorf("%w: fine amount must not be negative", ErrInvalidAppeal)
	}
	issueDate, err := time.Parse(dateLayout, req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: issue date: %v", ErrInvalidAppeal, err)
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: due date: %v", ErrInvalidAppeal, err)
		}
		if d.Before(issueDate) {
			return nil, fmt.Errorf("%w: due date is before issue date", ErrInvalidAppeal)
		}
		dueDate = &d
	}

	return &models.Appeal{
		AccountID:           accountID,
		TicketNumber:        req.TicketNumber,
		VehicleRegistration: reg,
		FineAmount:          req.FineAmount.Round(2),
		IssueDate:           issueDate,
		DueDate:             dueDate,
		Reason:              req.Reason,
		Description:         req.Description,
		Status:              models.AppealSubmitted,
		AIGenerated:         req.AIGenerated,
		Outcome:             models.OutcomePending,
		CreatedAt:           s.clock.Now(),
	}, nil
}
