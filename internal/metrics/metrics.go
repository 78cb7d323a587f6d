package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderDetailsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderledger_order_details_recorded_total",
			Help: "Order details persisted, by ledger status at response time",
		},
		[]string{"ledger_status"},
	)

	LedgerSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderledger_ledger_submissions_total",
			Help: "Ledger submissions by outcome (confirmed, reverted, timeout, error, rejected)",
		},
		[]string{"outcome"},
	)

	LedgerConfirmSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderledger_ledger_confirm_seconds",
			Help:    "Time from submission to confirmed receipt",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120},
		},
	)

	ActivityLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderledger_activity_log_failures_total",
			Help: "Activity log appends that failed",
		},
	)

	LedgerBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderledger_ledger_breaker_state",
			Help: "Ledger circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	ReconciledDetails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderledger_reconciled_order_details_total",
			Help: "Pending order details touched by the reconciler, by action",
		},
		[]string{"action"},
	)
)
