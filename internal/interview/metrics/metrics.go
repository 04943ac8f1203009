// Package metrics holds the Prometheus metrics for the narrowing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the narrowing engine and its oracle round-trips.
type Metrics struct {
	Rounds             *prometheus.CounterVec
	NormalizerOutcomes *prometheus.CounterVec
	Stalls             prometheus.Counter
	ForcedChoices      prometheus.Counter
	Completions        prometheus.Counter
	OracleLatency      prometheus.Histogram
	OracleFailures     prometheus.Counter
}

// New creates and registers the interview metrics.
func New() *Metrics {
	return &Metrics{
		Rounds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_interview_rounds_total",
			Help: "Engine rounds by outcome (narrowed, stalled, completed).",
		}, []string{"outcome"}),
		NormalizerOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_interview_normalizer_outcomes_total",
			Help: "Oracle responses by normalized message kind.",
		}, []string{"kind"}),
		Stalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_interview_stalls_total",
			Help: "Answered rounds that failed to narrow the candidate set.",
		}),
		ForcedChoices: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_interview_forced_choices_total",
			Help: "Completions decided by the progress guard rather than the oracle.",
		}),
		Completions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_interview_completions_total",
			Help: "Interviews that reached a single visa type.",
		}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "visaflow_oracle_roundtrip_duration_seconds",
			Help:    "Latency of oracle round-trips.",
			Buckets: prometheus.DefBuckets,
		}),
		OracleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_oracle_failures_total",
			Help: "Oracle round-trips that exhausted the retry budget.",
		}),
	}
}
