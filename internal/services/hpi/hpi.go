// Package hpi оформляет запросы HPI-проверки истории автомобиля.
package hpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

var (
	// ErrInvalidRegistration пустой номер автомобиля.
	ErrInvalidRegistration = errors.New("invalid vehicle registration")
	// ErrAccountNotFound учётная запись не найдена.
	ErrAccountNotFound = errors.New("account not found")
)

// Repository хранилище учётных записей и HPI-проверок.
type Repository interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	CreateHpiCheck(ctx context.Context, c *models.HpiCheck) error
}

// Entitlements проверки прав на HPI.
type Entitlements interface {
	ResolveHpiAccess(account *models.Account) models.Decision
	ConsumeHpiCredit(ctx context.Context, account *models.Account) (models.Decision, error)
}

// Service бизнес-логика HPI-проверок.
type Service struct {
	repo         Repository
	entitlements Entitlements
	clock        clock.Clock
	log          *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, entitlements Entitlements, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, entitlements: entitlements, clock: clk, log: log}
}

// Request оформляет HPI-проверку. Годовой план даёт проверку без списания,
// иначе списывается один кредит. При отказе проверка не сохраняется.
func (s *Service) Request(ctx context.Context, accountID, registration string) (*models.HpiCheck, models.Decision, error) {
	const op = "hpi.Request"

	reg := models.NormalizeRegistration(registration)
	if reg == "" {
		return nil, models.Decision{}, fmt.Errorf("%s: %w", op, ErrInvalidRegistration)
	}

	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.Decision{}, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return nil, models.Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	source := models.HpiSourceSubscription
	decision := s.entitlements.ResolveHpiAccess(account)
	if !decision.Granted() {
		decision, err = s.entitlements.ConsumeHpiCredit(ctx, account)
		if err != nil {
			return nil, models.Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		if !decision.Granted() {
			return nil, decision, nil
		}
		source = models.HpiSourceCredit
	}

	check := &models.HpiCheck{
		AccountID:    accountID,
		Registration: reg,
		Source:       source,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.CreateHpiCheck(ctx, check); err != nil {
		return nil, models.Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("hpi check requested",
		slog.String("account_id", accountID),
		slog.String("source", string(source)))
	return check, decision, nil
}
