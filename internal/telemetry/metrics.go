// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// used by the phases and the orchestrator.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tdd"

// Metrics is a per-run metric set on its own registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Labels: phase (RED, GREEN, REFACTOR), result (succeeded, failed), kind
	phaseTotal *prometheus.CounterVec
	// Labels: phase
	phaseDuration *prometheus.HistogramVec
	// Labels: status
	cyclesTotal   *prometheus.CounterVec
	greenAttempts prometheus.Histogram
	// Labels: result (pass, fail, timeout)
	testRuns     *prometheus.CounterVec
	testDuration prometheus.Histogram
	// Labels: operation, result (ok, error)
	generationCalls  *prometheus.CounterVec
	transportRetries prometheus.Counter
	rollbackFailures prometheus.Counter
}

// NewMetrics registers the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		phaseTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_outcomes_total",
			Help:      "Phase outcomes by phase, result and failure kind",
		}, []string{"phase", "result", "kind"}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each phase",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		cyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed cycles by final status",
		}, []string{"status"}),
		greenAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "green_attempts",
			Help:      "Implementation attempts used per green phase",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		testRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "test",
			Name:      "runs_total",
			Help:      "Test command invocations by result",
		}, []string{"result"}),
		testDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "test",
			Name:      "run_duration_seconds",
			Help:      "Duration of test command invocations",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		generationCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "calls_total",
			Help:      "Generator calls by operation and result",
		}, []string{"operation", "result"}),
		transportRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "transport_retries_total",
			Help:      "Transient oracle transport failures that were retried",
		}),
		rollbackFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_failures_total",
			Help:      "Refactor rollbacks whose restore write failed",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// PhaseFinished records one phase outcome.
func (m *Metrics) PhaseFinished(phase string, succeeded bool, kind string, d time.Duration) {
	if m == nil {
		return
	}
	result := "succeeded"
	if !succeeded {
		result = "failed"
	}
	m.phaseTotal.WithLabelValues(phase, result, kind).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// CycleFinished records a cycle's final status.
func (m *Metrics) CycleFinished(status string) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(status).Inc()
}

// GreenAttempts records how many attempts a green phase used.
func (m *Metrics) GreenAttempts(n int) {
	if m == nil {
		return
	}
	m.greenAttempts.Observe(float64(n))
}

// TestRun records one test command invocation.
func (m *Metrics) TestRun(success, timedOut bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "fail"
	switch {
	case timedOut:
		result = "timeout"
	case success:
		result = "pass"
	}
	m.testRuns.WithLabelValues(result).Inc()
	m.testDuration.Observe(d.Seconds())
}

// GenerationCall records one generator call.
func (m *Metrics) GenerationCall(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.generationCalls.WithLabelValues(operation, result).Inc()
}

// TransportRetry records one retried transient oracle failure.
func (m *Metrics) TransportRetry() {
	if m == nil {
		return
	}
	m.transportRetries.Inc()
}

// RollbackFailure records a refactor whose rollback write failed.
func (m *Metrics) RollbackFailure() {
	if m == nil {
		return
	}
	m.rollbackFailures.Inc()
}
