// Package observability exposes the agent's own Prometheus metrics,
// grounded on the teacher's infrastructure/metrics package: one
// Metrics struct wired against prometheus.Registerer, label-vectored
// counters/histograms per concern, and a process-wide Global().
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pipeline, watchers, scheduler, and
// rollback engine report into.
type Metrics struct {
	PipelineSubmitted  *prometheus.CounterVec
	PipelineDuration    *prometheus.HistogramVec
	DecisionAction      *prometheus.CounterVec
	PolicyDecisions     *prometheus.CounterVec
	NodeExecutions      *prometheus.CounterVec
	NodeDuration        *prometheus.HistogramVec
	RollbackOutcomes    *prometheus.CounterVec
	WatcherEventsTotal  *prometheus.CounterVec
	WatchesActive       prometheus.Gauge
	SchedulerTicks      prometheus.Counter
	SchedulerFired      *prometheus.CounterVec
	LLMCalls            *prometheus.CounterVec
	LLMCallDuration     prometheus.Histogram
	WorkerCircuitState  prometheus.Gauge
}

// New creates and registers a Metrics instance against registerer. A
// nil registerer is valid for tests that don't care about exposition.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		PipelineSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_pipeline_submitted_total",
				Help: "Total number of commands submitted to the pipeline.",
			},
			[]string{"source", "intent"},
		),
		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_pipeline_duration_seconds",
				Help:    "End-to-end pipeline duration per command.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"intent", "outcome"},
		),
		DecisionAction: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_decision_action_total",
				Help: "Decision Engine outcomes by action (execute/ask).",
			},
			[]string{"action", "level"},
		),
		PolicyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_policy_decisions_total",
				Help: "Policy Engine decisions by intent and allowed/blocked.",
			},
			[]string{"intent", "allowed"},
		),
		NodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_node_executions_total",
				Help: "Execution Graph node runs by intent and status.",
			},
			[]string{"intent", "status"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_node_duration_seconds",
				Help:    "Execution Graph node duration by intent.",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"intent"},
		),
		RollbackOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_rollback_outcomes_total",
				Help: "Rollback Engine runs by success/failure.",
			},
			[]string{"result"},
		),
		WatcherEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_watcher_events_total",
				Help: "Filesystem events observed by the Watcher Subsystem.",
			},
			[]string{"action_type"},
		),
		WatchesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskagent_watches_active",
				Help: "Currently active watch tasks.",
			},
		),
		SchedulerTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deskagent_scheduler_ticks_total",
				Help: "Scheduler poll loop ticks.",
			},
		),
		SchedulerFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_scheduler_fired_total",
				Help: "Scheduled tasks fired, by repeat kind.",
			},
			[]string{"repeat"},
		),
		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_llm_calls_total",
				Help: "LLM worker calls by outcome.",
			},
			[]string{"outcome"},
		),
		LLMCallDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskagent_llm_call_duration_seconds",
				Help:    "LLM worker round-trip duration.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		WorkerCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskagent_llm_circuit_state",
				Help: "LLM worker circuit breaker state (0=closed, 1=half-open, 2=open).",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.PipelineSubmitted, m.PipelineDuration, m.DecisionAction, m.PolicyDecisions,
			m.NodeExecutions, m.NodeDuration, m.RollbackOutcomes, m.WatcherEventsTotal,
			m.WatchesActive, m.SchedulerTicks, m.SchedulerFired, m.LLMCalls,
			m.LLMCallDuration, m.WorkerCircuitState,
		)
	}
	return m
}

// RecordPipeline records one Submit/Dispatch call's outcome and
// duration.
func (m *Metrics) RecordPipeline(source, intent, outcome string, duration time.Duration) {
	m.PipelineSubmitted.WithLabelValues(source, intent).Inc()
	m.PipelineDuration.WithLabelValues(intent, outcome).Observe(duration.Seconds())
}

// RecordNode records one graph node's execution.
func (m *Metrics) RecordNode(intent, status string, duration time.Duration) {
	m.NodeExecutions.WithLabelValues(intent, status).Inc()
	m.NodeDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordRollback records a completed rollback run's outcome.
func (m *Metrics) RecordRollback(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.RollbackOutcomes.WithLabelValues(result).Inc()
}

// RecordLLMCall records one LLM worker round trip.
func (m *Metrics) RecordLLMCall(outcome string, duration time.Duration) {
	m.LLMCalls.WithLabelValues(outcome).Inc()
	m.LLMCallDuration.Observe(duration.Seconds())
}

var global *Metrics

// Init registers the process-wide Metrics instance against the
// default Prometheus registry.
func Init() *Metrics {
	if global == nil {
		global = New(prometheus.DefaultRegisterer)
	}
	return global
}

// Global returns the process-wide Metrics instance, creating an
// unregistered one if Init was never called.
func Global() *Metrics {
	if global == nil {
		return New(nil)
	}
	return global
}
