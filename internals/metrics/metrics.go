// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	paymentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_payments_initiated_total",
			Help: "Push payments accepted by the provider and recorded as pending",
		},
		[]string{"kind"},
	)

	paymentsSettledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_payments_settled_total",
			Help: "Pending payments moved to a terminal status",
		},
		[]string{"status", "via"},
	)

	reconciliationGapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_reconciliation_gaps_total",
			Help: "Reconciliation gaps recorded for manual follow-up",
		},
		[]string{"reason"},
	)

	onboardingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_onboarding_total",
			Help: "Tenancy onboarding attempts by result",
		},
		[]string{"result"},
	)

	providerTokenRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rent_provider_token_refresh_total",
			Help: "Provider access token fetches",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(paymentsInitiatedTotal)
	prometheus.MustRegister(paymentsSettledTotal)
	prometheus.MustRegister(reconciliationGapsTotal)
	prometheus.MustRegister(onboardingTotal)
	prometheus.MustRegister(providerTokenRefreshTotal)
}

func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func RecordPaymentInitiated(kind string) {
	paymentsInitiatedTotal.WithLabelValues(kind).Inc()
}

func RecordPaymentSettled(status, via string) {
	paymentsSettledTotal.WithLabelValues(status, via).Inc()
}

func RecordReconciliationGap(reason string) {
	reconciliationGapsTotal.WithLabelValues(reason).Inc()
}

func RecordOnboarding(result string) {
	onboardingTotal.WithLabelValues(result).Inc()
}

func RecordTokenRefresh() {
	providerTokenRefreshTotal.Inc()
}
