// Package metrics содержит prometheus метрики ClearRide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder счётчики решений движка прав и скидок.
type Recorder struct {
	entitlementDecisions *prometheus.CounterVec
	promoValidations     *prometheus.CounterVec
	paymentsCompleted    *prometheus.CounterVec
}

// New регистрирует метрики в registerer.
func New(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		entitlementDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_decisions_total",
				Help: "The total number of entitlement decisions by action, access and reason",
			},
			[]string{"action", "access", "reason"},
		),
		promoValidations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "promo_validations_total",
				Help: "The total number of promo code validations by result",
			},
			[]string{"result"},
		),
		paymentsCompleted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_completed_total",
				Help: "The total number of completed payments by product and status",
			},
			[]string{"product", "status"},
		),
	}
}

// NewNoop возвращает Recorder с собственным реестром, не видным снаружи.
func NewNoop() *Recorder {
	return New(prometheus.NewRegistry())
}

// EntitlementDecision учитывает решение о доступе.
func (r *Recorder) EntitlementDecision(action, access, reason string) {
	r.entitlementDecisions.WithLabelValues(action, access, reason).Inc()
}

// PromoValidation учитывает результат проверки промокода: "valid" или причина отказа.
func (r *Recorder) PromoValidation(result string) {
	r.promoValidations.WithLabelValues(result).Inc()
}

// PaymentFinished учитывает завершение заказа.
func (r *Recorder) PaymentFinished(product, status string) {
	r.paymentsCompleted.WithLabelValues(product, status).Inc()
}
