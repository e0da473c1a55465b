package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AppealStatus формальный статус рассмотрения апелляции.
type AppealStatus string

const (
	AppealSubmitted   AppealStatus = "SUBMITTED"
	AppealUnderReview AppealStatus = "UNDER_REVIEW"
	AppealApproved    AppealStatus = "APPROVED"
	AppealRejected    AppealStatus = "REJECTED"
)

// AppealOutcome результат, о котором сообщил сам водитель.
type AppealOutcome string

const (
	OutcomePending      AppealOutcome = "pending"
	OutcomeSuccessful   AppealOutcome = "successful"
	OutcomeUnsuccessful AppealOutcome = "unsuccessful"
)

// AppealLimitWindow окно, в котором апелляции учитываются в лимитах тарифа.
const AppealLimitWindow = 365 * 24 * time.Hour

// Appeal одна апелляция по штрафу.
type Appeal struct {
	ID                  int             `json:"id"`
	AccountID           string          `json:"account_id"`
	TicketNumber        string          `json:"ticket_number"`
	VehicleRegistration string          `json:"vehicle_registration"`
	FineAmount          decimal.Decimal `json:"fine_amount"`
	IssueDate           time.Time       `json:"issue_date"`
	DueDate             *time.Time      `json:"due_date,omitempty"`
	Reason              string          `json:"reason"`
	Description         string          `json:"description"`
	Status              AppealStatus    `json:"status"`
	AIGenerated         bool            `json:"ai_generated"`
	Outcome             AppealOutcome   `json:"outcome"`
	CreatedAt           time.Time       `json:"created_at"`
}

// DummyAppeal принимает данные апелляции из JSON-запроса.
// Даты приходят строками в формате 2006-01-02.
type DummyAppeal struct {
	TicketNumber        string          `json:"ticket_number" validate:"required,max=64"`
	VehicleRegistration string          `json:"vehicle_registration" validate:"required,max=10"`
	FineAmount          decimal.Decimal `json:"fine_amount"`
	IssueDate           string          `json:"issue_date" validate:"required"`
	DueDate             string          `json:"due_date,omitempty"`
	Reason              string          `json:"reason" validate:"required,max=255"`
	Description         string          `json:"description" validate:"max=5000"`
	AIGenerated         bool            `json:"ai_generated"`
}

// NormalizeRegistration приводит номер автомобиля к виду без пробелов в верхнем регистре.
func NormalizeRegistration(reg string) string {
	return strings.ToUpper(strings.Join(strings.Fields(reg), ""))
}

// HpiSource откуда взялось право на HPI-проверку.
type HpiSource string

const (
	HpiSourceSubscription HpiSource = "subscription"
	HpiSourceCredit       HpiSource = "credit"
)

// HpiCheck запрос отчёта об истории автомобиля.
type HpiCheck struct {
	ID           int       `json:"id"`
	AccountID    string    `json:"account_id"`
	Registration string    `json:"registration"`
	Source       HpiSource `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}
