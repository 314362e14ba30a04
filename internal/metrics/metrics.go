// Package metrics exposes Prometheus instrumentation for fit attempts and
// fit jobs.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

const namespace = "curvefit"

// Attempt results used as the "result" label.
const (
	ResultOK           = "ok"
	ResultNotConverged = "not_converged"
	ResultDegenerate   = "degenerate"
	ResultCancelled    = "cancelled"
	ResultError        = "error"
)

// Metrics groups the collectors. Create it once per registry.
type Metrics struct {
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cost        *prometheus.HistogramVec
	jobs        *prometheus.CounterVec
	runningJobs prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fit_attempts_total",
			Help:      "Fit attempts by family, method and result",
		}, []string{"family", "method", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_attempt_duration_seconds",
			Help:      "Fit attempt duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"family", "method"}),

		cost: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_cost",
			Help:      "Cost of successful fit attempts",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 12),
		}, []string{"family"}),

		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fit_jobs_total",
			Help:      "Finished fit jobs by final state",
		}, []string{"state"}),

		runningJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fit_jobs_running",
			Help:      "Fit jobs currently running",
		}),
	}
}

// ObserveAttempt records one (family, method) fit attempt.
func (m *Metrics) ObserveAttempt(family string, method optimization.Method, cost float64, d time.Duration, err error) {
	result := Classify(err)
	m.attempts.WithLabelValues(family, string(method), result).Inc()
	m.duration.WithLabelValues(family, string(method)).Observe(d.Seconds())
	if err == nil {
		m.cost.WithLabelValues(family).Observe(cost)
	}
}

// JobStarted marks a job as running.
func (m *Metrics) JobStarted() { m.runningJobs.Inc() }

// JobFinished records the final state of a running job.
func (m *Metrics) JobFinished(state string) {
	m.runningJobs.Dec()
	m.jobs.WithLabelValues(state).Inc()
}

// Classify maps an attempt error to a result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, optimization.ErrNotConverged):
		return ResultNotConverged
	case errors.Is(err, optimization.ErrDegenerate):
		return ResultDegenerate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCancelled
	default:
		return ResultError
	}
}
