package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	outcomeSuccess         = "success"
	outcomePolicyViolation = "policy_violation"
	outcomeExecutionFailed = "execution_failed"
)

// Metrics holds the Prometheus collectors for runs.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	ViolationsTotal *prometheus.CounterVec
	RulesLearned    prometheus.Counter
	RunDuration     prometheus.Histogram
	PersistFailures prometheus.Counter
}

// NewMetrics creates collectors registered with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: outcome (success, policy_violation, execution_failed)
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finagent",
				Name:      "runs_total",
				Help:      "Total runs by outcome",
			},
			[]string{"outcome"},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finagent",
				Name:      "violations_total",
				Help:      "Policy violations detected, by mistake type",
			},
			[]string{"mistake_type"},
		),
		RulesLearned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finagent",
				Name:      "rules_learned_total",
				Help:      "Rules created from repeated mistakes",
			},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "finagent",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a run from INIT to a terminal state",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		PersistFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finagent",
				Name:      "persist_failures_total",
				Help:      "Runs recorded in memory whose save failed",
			},
		),
	}
}
