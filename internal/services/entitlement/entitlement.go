// Package entitlement решает, может ли учётная запись выполнить платное действие
// (подать апелляцию, запросить HPI-проверку) без дополнительной оплаты.
//
// Решения возвращаются значениями models.Decision и models.Rejection.
// Ошибка возвращается только при сбое хранилища.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/models"
)

// AccountRepository операции хранилища, нужные для проверки прав.
type AccountRepository interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	// ConsumeAppealTrial атомарно расходует пробную апелляцию, false если она уже израсходована.
	ConsumeAppealTrial(ctx context.Context, accountID, reg string, now time.Time) (bool, error)
	// ConsumeHpiCredit атомарно списывает один HPI кредит, false если кредитов нет.
	ConsumeHpiCredit(ctx context.Context, accountID string) (int, bool, error)
	// ConsumeAppealCredit атомарно списывает один кредит на апелляцию.
	ConsumeAppealCredit(ctx context.Context, accountID string) (int, bool, error)
	RestoreAppealCredit(ctx context.Context, accountID string) error
	CountAppealsSince(ctx context.Context, accountID string, since time.Time) (int, error)
}

// Metrics учёт принятых решений.
type Metrics interface {
	EntitlementDecision(action, access, reason string)
}

const (
	actionAppeal = "appeal"
	actionHpi    = "hpi"
)

// Resolver проверяет права доступа к платным действиям.
type Resolver struct {
	repo    AccountRepository
	clock   clock.Clock
	log     *slog.Logger
	metrics Metrics
}

// New создаёт Resolver.
func New(repo AccountRepository, clk clock.Clock, log *slog.Logger, metrics Metrics) *Resolver {
	return &Resolver{
		repo:    repo,
		clock:   clk,
		log:     log,
		metrics: metrics,
	}
}

// ResolveAppealAccess решает, можно ли подать апелляцию по автомобилю targetRegistration бесплатно.
//
// Порядок проверки: действующий годовой план, затем неизрасходованная пробная апелляция,
// иначе требуется оплата. Пробная апелляция выдаётся один раз на учётную запись,
// независимо от номера автомобиля. При успешном списании пробы account обновляется на месте.
func (r *Resolver) ResolveAppealAccess(ctx context.Context, account *models.Account, targetRegistration string) (models.Decision, error) {
	const op = "entitlement.ResolveAppealAccess"
	now := r.clock.Now()

	if account.HasActiveAnnualPlan(now) {
		return r.record(actionAppeal, models.Decision{
			Access: models.AccessGranted,
			Reason: models.ReasonActiveSubscription,
		}), nil
	}

	if !account.AppealTrialUsed {
		reg := models.NormalizeRegistration(targetRegistration)
		won, err := r.repo.ConsumeAppealTrial(ctx, account.ID, reg, now)
		if err != nil {
			return models.Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		if won {
			account.AppealTrialUsed = true
			account.AppealTrialUsedAt = &now
			account.AppealTrialReg = reg
			r.log.Info("appeal trial consumed",
				slog.String("account_id", account.ID),
				slog.String("registration", reg))
			return r.record(actionAppeal, models.Decision{
				Access:            models.AccessGranted,
				Reason:            models.ReasonTrialUsed,
				TrialRegistration: reg,
			}), nil
		}

		// Проба ушла конкурирующему запросу: перечитываем, чтобы вернуть номер, на который она потрачена.
		fresh, err := r.repo.GetAccountByID(ctx, account.ID)
		if err != nil {
			return models.Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		*account = *fresh
	}

	return r.record(actionAppeal, models.Decision{
		Access:            models.AccessDenied,
		Reason:            models.ReasonPaymentRequired,
		TrialRegistration: account.AppealTrialReg,
	}), nil
}

// ResolveHpiAccess разрешает HPI-проверку без оплаты только при действующем годовом плане.
// Кредиты здесь не учитываются, их списывает ConsumeHpiCredit.
func (r *Resolver) ResolveHpiAccess(account *models.Account) models.Decision {
	if account.HasActiveAnnualPlan(r.clock.Now()) {
		return r.record(actionHpi, models.Decision{
			Access: models.AccessGranted,
			Reason: models.ReasonActiveSubscription,
		})
	}
	return r.record(actionHpi, models.Decision{
		Access: models.AccessDenied,
		Reason: models.ReasonPaymentRequired,
	})
}

// ConsumeHpiCredit списывает один предоплаченный HPI кредит.
func (r *Resolver) ConsumeHpiCredit(ctx context.Context, account *models.Account) (models.Decision, error) {
	const op = "entitlement.ConsumeHpiCredit"
	remaining, ok, err := r.repo.ConsumeHpiCredit(ctx, account.ID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		account.HpiCredits = remaining
	}
	return r.record(actionHpi, creditDecision(remaining, ok)), nil
}

// ConsumeAppealCredit списывает один оплаченный кредит на апелляцию.
func (r *Resolver) ConsumeAppealCredit(ctx context.Context, account *models.Account) (models.Decision, error) {
	const op = "entitlement.ConsumeAppealCredit"
	remaining, ok, err := r.repo.ConsumeAppealCredit(ctx, account.ID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		account.AppealCredits = remaining
	}
	return r.record(actionAppeal, creditDecision(remaining, ok)), nil
}

// RefundAppealCredit возвращает кредит, списанный под апелляцию, которую не удалось сохранить.
func (r *Resolver) RefundAppealCredit(ctx context.Context, account *models.Account) error {
	const op = "entitlement.RefundAppealCredit"
	if err := r.repo.RestoreAppealCredit(ctx, account.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	account.AppealCredits++
	r.log.Info("appeal credit refunded", slog.String("account_id", account.ID))
	return nil
}

func creditDecision(remaining int, ok bool) models.Decision {
	if !ok {
		return models.Decision{
			Access: models.AccessDenied,
			Reason: models.ReasonInsufficientCredits,
		}
	}
	return models.Decision{
		Access:           models.AccessGranted,
		Reason:           models.ReasonPrepaidCredit,
		CreditsRemaining: &remaining,
	}
}

// SubmitAppealWithLimitCheck проверяет лимит апелляций тарифа за последние 365 дней.
// nil означает, что лимит не превышен.
func (r *Resolver) SubmitAppealWithLimitCheck(ctx context.Context, account *models.Account) (*models.Rejection, error) {
	const op = "entitlement.SubmitAppealWithLimitCheck"
	now := r.clock.Now()
	if account.SubscriptionType == models.SubscriptionAnnualPlan {
		return nil, nil
	}

	count, err := r.repo.CountAppealsSince(ctx, account.ID, limitWindowStart(account, now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return CheckAppealLimit(account, count, now), nil
}

// limitWindowStart начало окна, в котором считаются апелляции.
// Для разовой апелляции окно не раньше оплаты: апелляции пробного периода в него не попадают.
func limitWindowStart(account *models.Account, now time.Time) time.Time {
	since := now.Add(-models.AppealLimitWindow)
	if account.SubscriptionType == models.SubscriptionSingleAppeal && account.SubscriptionStart.After(since) {
		return account.SubscriptionStart
	}
	return since
}

// CheckAppealLimit применяет лимит тарифа к уже посчитанному числу апелляций за 365 дней.
func CheckAppealLimit(account *models.Account, appealsInWindow int, now time.Time) *models.Rejection {
	switch account.SubscriptionType {
	case models.SubscriptionAnnualPlan:
		return nil
	case models.SubscriptionFreeTrial:
		if account.SubscriptionElapsed(now) {
			return &models.Rejection{
				Reason:  models.RejectSubscriptionExpired,
				Message: "free trial period has ended",
			}
		}
	}
	if appealsInWindow >= 1 {
		return &models.Rejection{
			Reason:  models.RejectAppealLimitReached,
			Message: fmt.Sprintf("%s allows one appeal in 365 days", account.SubscriptionType),
		}
	}
	return nil
}

func (r *Resolver) record(action string, d models.Decision) models.Decision {
	r.metrics.EntitlementDecision(action, string(d.Access), string(d.Reason))
	return d
}
