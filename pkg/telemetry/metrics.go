package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the planexec executive.
type Metrics struct {
	config MetricsConfig

	// Run metrics (one CLI `run` invocation of a plan)
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Node metrics
	nodesTransitioned *prometheus.CounterVec
	nodeDuration      *prometheus.HistogramVec

	// Command metrics
	commandsDispatched *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	commandErrors      *prometheus.CounterVec

	// Mutex metrics
	mutexWaiters *prometheus.GaugeVec
	mutexHeld    *prometheus.GaugeVec

	// Resource arbiter metrics
	arbiterAllocated *prometheus.GaugeVec
	arbiterDecisions *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec
	errorsByCode *prometheus.CounterVec

	// Executive quiescence-loop metrics
	stepDuration *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec

	// System metrics
	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of run invocations started",
			},
			[]string{"user"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of run invocations completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a run invocation in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		nodesTransitioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_transitioned_total",
				Help:      "Total number of node state transitions applied",
			},
			[]string{"node_type", "to_state"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration a node spent from EXECUTING to FINISHED, in seconds",
				Buckets:   buckets,
			},
			[]string{"node_type", "outcome"},
		),

		commandsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_dispatched_total",
				Help:      "Total number of commands dispatched to the external interface",
			},
			[]string{"command"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of a dispatched command in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		commandErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_errors_total",
				Help:      "Total number of commands that returned a non-success handle status",
			},
			[]string{"command", "status"},
		),

		mutexWaiters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mutex_waiters",
				Help:      "Current number of nodes waiting on a named mutex",
			},
			[]string{"mutex"},
		),
		mutexHeld: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mutex_held",
				Help:      "Whether a named mutex is currently held (1) or free (0)",
			},
			[]string{"mutex"},
		),

		arbiterAllocated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "arbiter_resource_allocated",
				Help:      "Current allocated amount of a named resource in the arbiter ledger",
			},
			[]string{"resource"},
		),
		arbiterDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "arbiter_decisions_total",
				Help:      "Total number of arbiter accept/reject decisions for a resource",
			},
			[]string{"resource", "decision"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by exec.ErrorKind",
			},
			[]string{"kind"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of one Executive.Step macro-step in seconds",
				Buckets:   buckets,
			},
			[]string{},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Current depth of an executive internal queue",
			},
			[]string{"queue"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active run invocations",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.nodesTransitioned,
		m.nodeDuration,
		m.commandsDispatched,
		m.commandDuration,
		m.commandErrors,
		m.mutexWaiters,
		m.mutexHeld,
		m.arbiterAllocated,
		m.arbiterDecisions,
		m.errorsByKind,
		m.errorsByCode,
		m.stepDuration,
		m.queueDepth,
		m.activeRuns,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(user string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(user).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Node Metrics

// RecordNodeTransition records a node's state transition.
func (m *Metrics) RecordNodeTransition(nodeType, toState string) {
	if m.nodesTransitioned == nil {
		return
	}
	m.nodesTransitioned.WithLabelValues(nodeType, toState).Inc()
}

// RecordNodeFinished records the duration of a node's run, from EXECUTING
// to FINISHED.
func (m *Metrics) RecordNodeFinished(nodeType, outcome string, duration time.Duration) {
	if m.nodeDuration == nil {
		return
	}
	m.nodeDuration.WithLabelValues(nodeType, outcome).Observe(duration.Seconds())
}

// Command Metrics

// RecordCommandDispatched records a command dispatched to the external interface.
func (m *Metrics) RecordCommandDispatched(command string, duration time.Duration) {
	if m.commandsDispatched == nil {
		return
	}
	m.commandsDispatched.WithLabelValues(command).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordCommandError records a command that returned a non-success handle status.
func (m *Metrics) RecordCommandError(command, status string) {
	if m.commandErrors == nil {
		return
	}
	m.commandErrors.WithLabelValues(command, status).Inc()
}

// Mutex Metrics

// SetMutexWaiters sets the current waiter count for a named mutex.
func (m *Metrics) SetMutexWaiters(name string, count float64) {
	if m.mutexWaiters == nil {
		return
	}
	m.mutexWaiters.WithLabelValues(name).Set(count)
}

// SetMutexHeld sets whether a named mutex is currently held.
func (m *Metrics) SetMutexHeld(name string, held bool) {
	if m.mutexHeld == nil {
		return
	}
	value := 0.0
	if held {
		value = 1.0
	}
	m.mutexHeld.WithLabelValues(name).Set(value)
}

// Resource Arbiter Metrics

// SetArbiterAllocated sets the currently allocated amount of a resource.
func (m *Metrics) SetArbiterAllocated(resource string, amount float64) {
	if m.arbiterAllocated == nil {
		return
	}
	m.arbiterAllocated.WithLabelValues(resource).Set(amount)
}

// RecordArbiterDecision records an accept or reject decision for a resource.
func (m *Metrics) RecordArbiterDecision(resource, decision string) {
	if m.arbiterDecisions == nil {
		return
	}
	m.arbiterDecisions.WithLabelValues(resource, decision).Inc()
}

// Error Metrics

// RecordError records an error by kind and optionally by code.
func (m *Metrics) RecordError(errorKind, errorCode string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(errorKind).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Executive Metrics

// RecordStepDuration records the wall-clock duration of one quiescence-loop step.
func (m *Metrics) RecordStepDuration(duration time.Duration) {
	if m.stepDuration == nil {
		return
	}
	m.stepDuration.WithLabelValues().Observe(duration.Seconds())
}

// SetQueueDepth sets the current depth of a named executive queue (e.g.
// "candidate", "pending", "transition").
func (m *Metrics) SetQueueDepth(queue string, depth float64) {
	if m.queueDepth == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(depth)
}

// System Metrics

// SetActiveRuns sets the current number of active runs.
func (m *Metrics) SetActiveRuns(count float64) {
	if m.activeRuns == nil {
		return
	}
	m.activeRuns.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
