package models

// Access итог проверки прав.
type Access string

const (
	AccessGranted Access = "granted"
	AccessDenied  Access = "denied"
)

// Reason обоснование решения о доступе.
type Reason string

const (
	ReasonActiveSubscription  Reason = "active_subscription"
	ReasonTrialUsed           Reason = "trial_used"
	ReasonPrepaidCredit       Reason = "prepaid_credit"
	ReasonPaymentRequired     Reason = "payment_required"
	ReasonInsufficientCredits Reason = "insufficient_credits"
)

// Decision структурированный результат проверки прав на платное действие.
// Не зависит от HTTP: преобразование в коды ответа делает вызывающая сторона.
type Decision struct {
	Access            Access `json:"access"`
	Reason            Reason `json:"reason"`
	TrialRegistration string `json:"trial_registration,omitempty"`
	CreditsRemaining  *int   `json:"credits_remaining,omitempty"`
}

// Granted сообщает, разрешено ли действие.
func (d Decision) Granted() bool {
	return d.Access == AccessGranted
}

// RejectionReason закрытый набор ожидаемых причин отказа.
// Это не ошибки инфраструктуры, они возвращаются пользователю как есть.
type RejectionReason string

const (
	RejectNotFound            RejectionReason = "NotFound"
	RejectInactive            RejectionReason = "Inactive"
	RejectNotYetValid         RejectionReason = "NotYetValid"
	RejectExpired             RejectionReason = "Expired"
	RejectServiceMismatch     RejectionReason = "ServiceMismatch"
	RejectUsageLimitReached   RejectionReason = "UsageLimitReached"
	RejectPerUserLimitReached RejectionReason = "PerUserLimitReached"
	RejectMinimumOrderNotMet  RejectionReason = "MinimumOrderNotMet"
	RejectTrialAlreadyUsed    RejectionReason = "TrialAlreadyUsed"
	RejectInsufficientCredits RejectionReason = "InsufficientCredits"
	RejectSubscriptionExpired RejectionReason = "SubscriptionExpired"
	RejectAppealLimitReached  RejectionReason = "AppealLimitReached"
)

// Rejection причина отказа с сообщением для пользователя.
type Rejection struct {
	Reason  RejectionReason `json:"reason"`
	Message string          `json:"message"`
}
