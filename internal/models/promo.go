package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType вид скидки промокода.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// ServiceType оплачиваемая услуга. Используется и как продукт платежа,
// и как элемент списка применимости промокода.
type ServiceType string

const (
	ServiceAll          ServiceType = "ALL"
	ServiceSingleAppeal ServiceType = "SINGLE_APPEAL"
	ServiceAnnualPlan   ServiceType = "ANNUAL_PLAN"
	ServiceHpiCheck     ServiceType = "HPI_CHECK"
	ServiceBulkHpi      ServiceType = "BULK_HPI"
)

// PromoCode описание скидки.
type PromoCode struct {
	ID            int                 `json:"id"`
	Code          string              `json:"code"`
	DiscountType  DiscountType        `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MinOrderValue decimal.NullDecimal `json:"min_order_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	UsageLimit    *int                `json:"usage_limit,omitempty"`
	PerUserLimit  *int                `json:"per_user_limit,omitempty"`
	ValidFrom     time.Time           `json:"valid_from"`
	ValidUntil    time.Time           `json:"valid_until"`
	IsActive      bool                `json:"is_active"`
	ApplicableFor []ServiceType       `json:"applicable_for"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// AppliesTo сообщает, применим ли промокод к услуге.
func (p *PromoCode) AppliesTo(service ServiceType) bool {
	for _, s := range p.ApplicableFor {
		if s == ServiceAll || s == service {
			return true
		}
	}
	return false
}

// NormalizePromoCode приводит код к виду, в котором он хранится.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// JoinServiceTypes сериализует список применимости в строку через запятую.
func JoinServiceTypes(types []ServiceType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// SplitServiceTypes разбирает список применимости из строки через запятую.
func SplitServiceTypes(s string) []ServiceType {
	var res []ServiceType
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			res = append(res, ServiceType(part))
		}
	}
	return res
}

// DummyPromoCode принимает промокод из JSON-запроса администратора.
type DummyPromoCode struct {
	Code          string              `json:"code" validate:"required,max=32"`
	DiscountType  DiscountType        `json:"discount_type" validate:"required"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MinOrderValue decimal.NullDecimal `json:"min_order_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	UsageLimit    *int                `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	PerUserLimit  *int                `json:"per_user_limit,omitempty" validate:"omitempty,gt=0"`
	ValidFrom     time.Time           `json:"valid_from" validate:"required"`
	ValidUntil    time.Time           `json:"valid_until" validate:"required"`
	IsActive      bool                `json:"is_active"`
	ApplicableFor []ServiceType       `json:"applicable_for" validate:"required,min=1"`
}

// PromoUsage факт применения промокода к оплаченному заказу. Не изменяется после создания.
type PromoUsage struct {
	ID             int             `json:"id"`
	PromoCodeID    int             `json:"promo_code_id"`
	AccountID      string          `json:"account_id"`
	PaymentID      string          `json:"payment_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PromoValidationRequest параметры проверки промокода для заказа.
type PromoValidationRequest struct {
	Code        string
	OrderValue  decimal.Decimal
	ServiceType ServiceType
	AccountID   string
}

// Discount рассчитанная скидка.
type Discount struct {
	PromoCodeID    int             `json:"-"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
}

// PromoValidation результат проверки промокода: либо скидка, либо причина отказа.
type PromoValidation struct {
	Valid    bool            `json:"valid"`
	Discount *Discount       `json:"discount,omitempty"`
	Error    RejectionReason `json:"error,omitempty"`
}
