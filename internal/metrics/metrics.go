// Package metrics содержит счётчики Prometheus портала.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы обработки вебхука.
const (
	OutcomeGranted   = "granted"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomePending   = "pending"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics набор счётчиков. Нулевой указатель допустим и ничего не считает.
type Metrics struct {
	webhookEvents     *prometheus.CounterVec
	entitlementsGrant *prometheus.CounterVec
	checkoutSessions  *prometheus.CounterVec
	reconcileOutcomes *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worksmart",
			Name:      "webhook_events_total",
			Help:      "Payment provider webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		entitlementsGrant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worksmart",
			Name:      "entitlements_granted_total",
			Help:      "New entitlements written, by product kind.",
		}, []string{"product_kind"}),
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worksmart",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session creation attempts by outcome.",
		}, []string{"outcome"}),
		reconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worksmart",
			Name:      "reconcile_runs_total",
			Help:      "Post-checkout reconciliation runs by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.webhookEvents, m.entitlementsGrant, m.checkoutSessions, m.reconcileOutcomes)
	return m
}

// WebhookEvent учитывает обработанное событие.
func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// EntitlementGranted учитывает новую запись о доступе.
func (m *Metrics) EntitlementGranted(productKind string) {
	if m == nil {
		return
	}
	m.entitlementsGrant.WithLabelValues(productKind).Inc()
}

// CheckoutSession учитывает попытку создать сессию оплаты.
func (m *Metrics) CheckoutSession(ok bool) {
	if m == nil {
		return
	}
	outcome := "created"
	if !ok {
		outcome = "failed"
	}
	m.checkoutSessions.WithLabelValues(outcome).Inc()
}

// Reconcile учитывает итог сверки: visible, not_visible, error или canceled.
func (m *Metrics) Reconcile(result string) {
	if m == nil {
		return
	}
	m.reconcileOutcomes.WithLabelValues(result).Inc()
}
