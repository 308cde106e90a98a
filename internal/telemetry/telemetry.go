// Package telemetry exposes prometheus metrics for research runs and tool
// invocations.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry aggregates the portal's metrics. A nil *Telemetry is a valid
// no-op receiver so callers never need to guard their instrumentation.
type Telemetry struct {
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	toolCalls   *prometheus.CounterVec
	iterations  prometheus.Histogram
}

// New registers the portal's collectors with reg.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researchd_runs_total",
			Help: "Research runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "researchd_run_duration_seconds",
			Help:    "Wall time of one orchestration run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researchd_tool_invocations_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "researchd_run_iterations",
			Help:    "Reasoning round-trips per run.",
			Buckets: prometheus.LinearBuckets(1, 1, 15),
		}),
	}
	reg.MustRegister(t.runs, t.runDuration, t.toolCalls, t.iterations)
	return t
}

// RecordRun tracks one orchestration run's outcome and duration.
func (t *Telemetry) RecordRun(success bool, duration time.Duration, iterations int) {
	if t == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.runs.WithLabelValues(outcome).Inc()
	t.runDuration.Observe(duration.Seconds())
	t.iterations.Observe(float64(iterations))
}

// RecordToolCall tracks a single tool invocation.
func (t *Telemetry) RecordToolCall(tool string, err error) {
	if t == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	t.toolCalls.WithLabelValues(tool, outcome).Inc()
}
