// Package metrics holds the Prometheus instrumentation shared across the
// pipeline's stages: C5 gate outcomes, C6 compile latency, C7 verify/deploy
// latency and outcomes, C8 drift events, C9 regression results, and the
// async worker's task throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every registered collector. One instance is built at
// startup and threaded into the stage packages that need it.
type Metrics struct {
	GateDuration *prometheus.HistogramVec
	GateOutcomes *prometheus.CounterVec

	CompileDuration *prometheus.HistogramVec
	CompileOutcomes *prometheus.CounterVec

	VerifyDuration  *prometheus.HistogramVec
	DeployDuration  *prometheus.HistogramVec
	DeployOutcomes  *prometheus.CounterVec
	RollbackCapture *prometheus.CounterVec

	DriftEvents     *prometheus.CounterVec
	DriftScanLength *prometheus.HistogramVec

	RegressionPassRate *prometheus.GaugeVec
	RegressionDuration *prometheus.HistogramVec

	TaskDuration    *prometheus.HistogramVec
	TaskCounter     *prometheus.CounterVec
	TaskQueueLength prometheus.Gauge
}

// New builds and registers every collector under the given namespace. An
// empty namespace defaults to "ontoforge".
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ontoforge"
	}

	return &Metrics{
		GateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gate_duration_seconds",
				Help:      "Duration of a single evaluation gate",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"gate_id", "profile", "result"},
		),
		GateOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_outcomes_total",
				Help:      "Total gate evaluations by result",
			},
			[]string{"gate_id", "profile", "result"},
		),

		CompileDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of compiling a version to its logical model and bundle",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"target", "status"},
		),
		CompileOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_outcomes_total",
				Help:      "Total compile runs by status",
			},
			[]string{"target", "status"},
		),

		VerifyDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verify_duration_seconds",
				Help:      "Duration of a verify-only call against the warehouse",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		DeployDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of the export->verify->deploy sequence",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		DeployOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploy_outcomes_total",
				Help:      "Total deploy attempts by outcome",
			},
			[]string{"status"},
		),
		RollbackCapture: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollback_capture_total",
				Help:      "Total deploys by whether a rollback YAML was captured",
			},
			[]string{"captured"},
		),

		DriftEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_events_total",
				Help:      "Total drift events discovered, by event type",
			},
			[]string{"event_type"},
		),
		DriftScanLength: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "drift_scan_duration_seconds",
				Help:      "Duration of a drift probe run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60},
			},
			[]string{"probe"},
		),

		RegressionPassRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regression_pass_rate",
				Help:      "Fraction of questions that passed in the most recent regression run",
			},
			[]string{"view"},
		),
		RegressionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "regression_duration_seconds",
				Help:      "Total duration of a regression run",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"view"},
		),

		TaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of one async worker task",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task_type", "status"},
		),
		TaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total async worker tasks processed",
			},
			[]string{"task_type", "status"},
		),
		TaskQueueLength: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_queue_length",
				Help:      "Current depth of the async task queue",
			},
		),
	}
}

// RecordGate records one gate evaluation.
func (m *Metrics) RecordGate(gateID, profile, result string, d time.Duration) {
	m.GateDuration.WithLabelValues(gateID, profile, result).Observe(d.Seconds())
	m.GateOutcomes.WithLabelValues(gateID, profile, result).Inc()
}

// RecordCompile records one compile run.
func (m *Metrics) RecordCompile(target, status string, d time.Duration) {
	m.CompileDuration.WithLabelValues(target, status).Observe(d.Seconds())
	m.CompileOutcomes.WithLabelValues(target, status).Inc()
}

// RecordDeploy records one export->verify->deploy sequence.
func (m *Metrics) RecordDeploy(status string, rollbackCaptured bool, d time.Duration) {
	m.DeployDuration.WithLabelValues(status).Observe(d.Seconds())
	m.DeployOutcomes.WithLabelValues(status).Inc()
	captured := "false"
	if rollbackCaptured {
		captured = "true"
	}
	m.RollbackCapture.WithLabelValues(captured).Inc()
}

// RecordDriftEvent records one discovered drift event.
func (m *Metrics) RecordDriftEvent(eventType string) {
	m.DriftEvents.WithLabelValues(eventType).Inc()
}

// RecordRegression records the outcome of a regression run against a view.
func (m *Metrics) RecordRegression(viewFQN string, passCount, total int, d time.Duration) {
	rate := 1.0
	if total > 0 {
		rate = float64(passCount) / float64(total)
	}
	m.RegressionPassRate.WithLabelValues(viewFQN).Set(rate)
	m.RegressionDuration.WithLabelValues(viewFQN).Observe(d.Seconds())
}

// RecordTask records one async worker task.
func (m *Metrics) RecordTask(taskType, status string, d time.Duration) {
	m.TaskDuration.WithLabelValues(taskType, status).Observe(d.Seconds())
	m.TaskCounter.WithLabelValues(taskType, status).Inc()
}
