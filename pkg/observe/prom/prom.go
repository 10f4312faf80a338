// Package prom exports orchestrator events as Prometheus metrics.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jzx17/workchan/pkg/orchestrator"
	"github.com/jzx17/workchan/pkg/types"
)

// Metrics implements orchestrator.Observer on top of Prometheus collectors.
type Metrics struct {
	WorkersStarted  *prometheus.CounterVec
	WorkersFinished *prometheus.CounterVec
	ActiveWorkers   *prometheus.GaugeVec
	WorkerDuration  *prometheus.HistogramVec
	ItemsProduced   prometheus.Counter
	ItemsConsumed   *prometheus.CounterVec
	ItemLatency     prometheus.Histogram
	RunsCancelled   prometheus.Counter
	RunFailures     prometheus.Counter
	State           prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(namespace, subsystem string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		WorkersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_started_total",
			Help:      "Workers started, by role.",
		}, []string{"role"}),
		WorkersFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_finished_total",
			Help:      "Workers finished, by role and outcome (ok, error, panic).",
		}, []string{"role", "outcome"}),
		ActiveWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_workers",
			Help:      "Workers currently running, by role.",
		}, []string{"role"}),
		WorkerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_duration_seconds",
			Help:      "Worker run time, by role.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		ItemsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_produced_total",
			Help:      "Items pushed by producers.",
		}),
		ItemsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_consumed_total",
			Help:      "Items handled by consumers, by outcome (ok, error).",
		}, []string{"outcome"}),
		ItemLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "item_latency_seconds",
			Help:      "Consumer handler latency per item.",
			Buckets:   prometheus.DefBuckets,
		}),
		RunsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_cancelled_total",
			Help:      "Runs cancelled before completion.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_failures_total",
			Help:      "Worker failures reported at the end of runs.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "Lifecycle state of the last orchestrator (0 idle .. 4 reported).",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.WorkersStarted,
		m.WorkersFinished,
		m.ActiveWorkers,
		m.WorkerDuration,
		m.ItemsProduced,
		m.ItemsConsumed,
		m.ItemLatency,
		m.RunsCancelled,
		m.RunFailures,
		m.State,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StateChanged records the new lifecycle state.
func (m *Metrics) StateChanged(_ context.Context, _, to orchestrator.State) {
	m.State.Set(float64(to))
}

// WorkerStarted increments started and active counts for the worker's role.
func (m *Metrics) WorkerStarted(_ context.Context, id types.WorkerID) {
	role := id.Role.String()
	m.WorkersStarted.WithLabelValues(role).Inc()
	m.ActiveWorkers.WithLabelValues(role).Inc()
}

// WorkerFinished decrements active workers and records outcome and duration.
func (m *Metrics) WorkerFinished(_ context.Context, id types.WorkerID, dur time.Duration, err error, panicked bool) {
	role := id.Role.String()
	m.ActiveWorkers.WithLabelValues(role).Dec()
	m.WorkersFinished.WithLabelValues(role, outcome(err, panicked)).Inc()
	m.WorkerDuration.WithLabelValues(role).Observe(dur.Seconds())
}

// ItemProduced counts a pushed item.
func (m *Metrics) ItemProduced(context.Context, types.WorkerID) {
	m.ItemsProduced.Inc()
}

// ItemConsumed counts a handled item and its latency.
func (m *Metrics) ItemConsumed(_ context.Context, _ types.WorkerID, dur time.Duration, err error) {
	m.ItemsConsumed.WithLabelValues(outcome(err, false)).Inc()
	m.ItemLatency.Observe(dur.Seconds())
}

// RunCancelled counts a cancelled run.
func (m *Metrics) RunCancelled(context.Context, error) {
	m.RunsCancelled.Inc()
}

// RunReported adds the run's failures.
func (m *Metrics) RunReported(_ context.Context, failures int) {
	m.RunFailures.Add(float64(failures))
}

func outcome(err error, panicked bool) string {
	switch {
	case panicked:
		return "panic"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}

var _ orchestrator.Observer = (*Metrics)(nil)
