package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide collectors, exposed on /metrics when METRICS_ENABLED is set.
var (
	SessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_sessions_opened_total",
		Help: "Sessions opened, by kind (cash, inventory).",
	}, []string{"kind"})

	SessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_sessions_finalized_total",
		Help: "Sessions finalized, by kind.",
	}, []string{"kind"})

	AuditRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_audit_records_total",
		Help: "Audit records appended, by kind.",
	}, []string{"kind"})

	CashVariance = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_cash_closings_total",
		Help: "Cash closings by variance level.",
	}, []string{"level"})

	StockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_stock_adjustments_total",
		Help: "SetStock calls issued by inventory commits, by result.",
	}, []string{"result"})

	PartialCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_partial_commits_total",
		Help: "Inventory commits that stopped with pending adjustments.",
	})

	DraftCountsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_draft_counts_flushed_total",
		Help: "Staged inventory counts persisted by Flush.",
	})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reconcile_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
	}, []string{"name"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_jobs_processed_total",
		Help: "Background jobs processed, by queue and result.",
	}, []string{"queue", "result"})
)

// ObserveBreaker is a CircuitBreakerConfig.OnStateChange hook feeding BreakerState.
func ObserveBreaker(name string, _, to CBState) {
	BreakerState.WithLabelValues(name).Set(float64(to))
}
