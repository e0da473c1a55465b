package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus статус платежа.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment заказ на оплату услуги.
type Payment struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Product           ServiceType     `json:"product"`
	Quantity          int             `json:"quantity"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	Currency          string          `json:"currency"`
	PromoCodeID       *int            `json:"promo_code_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	ProviderSessionID string          `json:"provider_session_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// DummyCheckout принимает запрос на оплату из JSON.
type DummyCheckout struct {
	Product   ServiceType `json:"product" validate:"required"`
	Quantity  int         `json:"quantity" validate:"omitempty,gt=0,lte=100"`
	PromoCode string      `json:"promo_code,omitempty" validate:"max=32"`
}

// Grant изменения учётной записи после подтверждённой оплаты.
type Grant struct {
	HpiCredits        int
	AppealCredits     int
	SubscriptionType  SubscriptionType // пусто, если тариф не меняется
	SubscriptionStart time.Time
	SubscriptionEnd   time.Time
}

// Apply применяет оплату к учётной записи на момент now.
// Разовая апелляция при действующем годовом плане добавляет только кредиты.
// Продление действующего годового плана сдвигает окончание на остаток текущего окна.
func (g Grant) Apply(a *Account, now time.Time) {
	a.HpiCredits += g.HpiCredits
	a.AppealCredits += g.AppealCredits

	switch g.SubscriptionType {
	case "":
		return
	case SubscriptionSingleAppeal:
		if a.HasActiveAnnualPlan(now) {
			return
		}
	case SubscriptionAnnualPlan:
		if a.HasActiveAnnualPlan(now) {
			end := g.SubscriptionEnd.Add(a.SubscriptionEnd.Sub(now))
			a.SubscriptionEnd = &end
			return
		}
	}

	end := g.SubscriptionEnd
	a.SubscriptionType = g.SubscriptionType
	a.SubscriptionStart = g.SubscriptionStart
	a.SubscriptionEnd = &end
	a.IsActive = true
}

// CheckoutResult результат оформления заказа.
type CheckoutResult struct {
	Payment     *Payment   `json:"payment,omitempty"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	Rejection   *Rejection `json:"rejection,omitempty"` // промокод не принят, заказ не создан
}
