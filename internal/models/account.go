// Package models содержит доменные структуры ClearRide: учётную запись водителя,
// апелляции по штрафам, промокоды, платежи и результаты проверки прав доступа.
package models

import "time"

// SubscriptionType тариф учётной записи.
type SubscriptionType string

const (
	// SubscriptionFreeTrial пробный период, выдаётся при регистрации.
	SubscriptionFreeTrial SubscriptionType = "FREE_TRIAL"
	// SubscriptionSingleAppeal оплаченная разовая апелляция.
	SubscriptionSingleAppeal SubscriptionType = "SINGLE_APPEAL"
	// SubscriptionAnnualPlan годовой план с безлимитными апелляциями и HPI-проверками.
	SubscriptionAnnualPlan SubscriptionType = "ANNUAL_PLAN"
)

const (
	// RoleUser обычный водитель.
	RoleUser = "user"
	// RoleAdmin администратор, управляет промокодами.
	RoleAdmin = "admin"
)

// Account представляет зарегистрированного водителя.
type Account struct {
	ID                string
	Email             string
	PasswordHash      string `json:"-"`
	Role              string
	SubscriptionType  SubscriptionType
	SubscriptionStart time.Time
	SubscriptionEnd   *time.Time // nil, если окно подписки не ограничено
	IsActive          bool
	AppealTrialUsed   bool
	AppealTrialUsedAt *time.Time
	AppealTrialReg    string // номер автомобиля, на который израсходован пробный доступ
	HpiCredits        int
	AppealCredits     int
	CreatedAt         time.Time
}

// HasActiveAnnualPlan сообщает, действует ли годовой план в момент now.
// Окно подписки полуоткрытое: [SubscriptionStart, SubscriptionEnd).
func (a *Account) HasActiveAnnualPlan(now time.Time) bool {
	if a.SubscriptionType != SubscriptionAnnualPlan || !a.IsActive || a.SubscriptionEnd == nil {
		return false
	}
	return !now.Before(a.SubscriptionStart) && now.Before(*a.SubscriptionEnd)
}

// SubscriptionElapsed сообщает, что окно подписки закончилось к моменту now.
func (a *Account) SubscriptionElapsed(now time.Time) bool {
	return a.SubscriptionEnd != nil && !now.Before(*a.SubscriptionEnd)
}

// ReminderInfo данные для напоминания об окончании пробного периода или подписки.
type ReminderInfo struct {
	AccountID        string           `json:"account_id"`
	Email            string           `json:"email"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	EndDate          time.Time        `json:"end_date"`
}
