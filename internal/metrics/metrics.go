package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts transaction evaluations by final decision.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "evaluations_total",
		Help:      "Transaction evaluations by decision status",
	}, []string{"status"})

	// EvaluationDuration observes end-to-end evaluation latency.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "compliance",
		Name:      "evaluation_duration_seconds",
		Help:      "End-to-end transaction evaluation latency",
		Buckets:   prometheus.DefBuckets,
	})

	// SubCheckFailures counts sub-check dependency failures by check name.
	SubCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "subcheck_failures_total",
		Help:      "Sub-check dependency failures during evaluation",
	}, []string{"check"})

	// SanctionsMatches counts evaluations that produced a watchlist hit.
	SanctionsMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "sanctions_matches_total",
		Help:      "Evaluations with at least one sanctions watchlist match",
	})

	// ReportsGenerated counts regulatory reports by type.
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "reports_generated_total",
		Help:      "Regulatory reports generated by type",
	}, []string{"type"})

	// ReportsFiled counts successfully filed reports by type.
	ReportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "reports_filed_total",
		Help:      "Regulatory reports filed by type",
	}, []string{"type"})

	// WorkerCycles counts reconciliation cycles by outcome.
	WorkerCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "worker_cycles_total",
		Help:      "Reconciliation worker cycles by outcome",
	}, []string{"outcome"})

	// AlertsRaised counts alerts by type.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "alerts_raised_total",
		Help:      "Compliance alerts raised by type",
	}, []string{"type"})
)
