package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checkout metrics
	checkoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Total number of checkout session creation attempts",
	}, []string{
		"gateway", // stripe, razorpay
		"intent",  // full, next-unpaid, specific-installment, custom-amount
		"status",  // created, rejected, gateway_error
	})

	checkoutSessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_session_duration_seconds",
		Help:    "Time to create a hosted checkout session (end-to-end)",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"gateway",
	})

	// Webhook ingestion metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total gateway webhook events received",
	}, []string{
		"gateway",
		"event_type", // payment.succeeded, payment.failed, ignored
		"outcome",    // processed, duplicate, unknown_reference, signature_invalid, error
	})

	webhookProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "Time to verify and apply a gateway webhook event",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{
		"gateway",
	})

	// Ledger metrics. Amounts are in USD cents, the unit of account.
	settledAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settled_amount_cents_total",
		Help: "Total settled ledger amount in USD cents",
	}, []string{
		"gateway",
		"path", // webhook, manual_verify, reconcile
	})

	installmentsPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installments_paid_total",
		Help: "Total installments transitioned to paid",
	}, []string{
		"gateway",
		"path",
	})

	// Reconciliation metrics
	reconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_runs_total",
		Help: "Total reconciliation passes",
	}, []string{
		"kind",   // agreement, fix_calculations, fix_statuses
		"status", // success, error
	})

	reconciliationChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_changes_total",
		Help: "Total records corrected by reconciliation (ledger drift repaired)",
	}, []string{
		"kind",
	})

	// Exchange rate metrics
	rateRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_refresh_total",
		Help: "Total exchange rate table refresh attempts",
	}, []string{
		"status", // success, failed
	})

	rateTableAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_rate_table_age_seconds",
		Help: "Age of the currently served exchange rate table",
	})

	// Notification emitter metrics
	notificationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_events_total",
		Help: "Total domain notification events",
	}, []string{
		"event_type",
		"status", // delivered, dropped, failed
	})
)

// RecordCheckoutSession records a checkout session creation attempt
func RecordCheckoutSession(gateway, intent, status string, duration float64) {
	checkoutSessionsTotal.WithLabelValues(gateway, intent, status).Inc()
	checkoutSessionDuration.WithLabelValues(gateway).Observe(duration)
}

// RecordWebhookEvent records a gateway webhook event and its outcome
func RecordWebhookEvent(gateway, eventType, outcome string, duration float64) {
	webhookEventsTotal.WithLabelValues(gateway, eventType, outcome).Inc()
	webhookProcessingDuration.WithLabelValues(gateway).Observe(duration)
}

// RecordSettlement records a settled payment applied to the ledger.
// Success rate per gateway is derived in PromQL from webhook_events_total,
// not stored directly.
func RecordSettlement(gateway, path string, amountCents int64, installmentsPaid int) {
	settledAmountCents.WithLabelValues(gateway, path).Add(float64(amountCents))
	installmentsPaidTotal.WithLabelValues(gateway, path).Add(float64(installmentsPaid))
}

// RecordReconciliation records a reconciliation pass and how many records changed
func RecordReconciliation(kind, status string, changes int) {
	reconciliationRunsTotal.WithLabelValues(kind, status).Inc()
	if changes > 0 {
		reconciliationChanges.WithLabelValues(kind).Add(float64(changes))
	}
}

// RecordRateRefresh records an exchange rate table refresh attempt
func RecordRateRefresh(status string) {
	rateRefreshTotal.WithLabelValues(status).Inc()
}

// SetRateTableAge updates the age of the served rate table
func SetRateTableAge(seconds float64) {
	rateTableAge.Set(seconds)
}

// RecordNotificationEvent records a domain event delivery outcome
func RecordNotificationEvent(eventType, status string) {
	notificationEventsTotal.WithLabelValues(eventType, status).Inc()
}
