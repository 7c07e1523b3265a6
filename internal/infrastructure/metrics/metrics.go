// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/event"
)

const namespace = "workflow"

// Metrics owns a private registry so several engines can coexist in one process
type Metrics struct {
	registry *prometheus.Registry

	definitions      *prometheus.CounterVec
	instancesStarted *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	completions      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	executeDuration  *prometheus.HistogramVec
	instancesByState *prometheus.GaugeVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		definitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definitions_total",
				Help:      "Workflow definitions created or deleted.",
			},
			[]string{"op"},
		),
		instancesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_started_total",
				Help:      "Workflow instances started, by definition.",
			},
			[]string{"definition_id"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_executed_total",
				Help:      "Actions executed successfully, by definition and action.",
			},
			[]string{"definition_id", "action_id"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_completed_total",
				Help:      "Instances that reached a final state, by definition.",
			},
			[]string{"definition_id"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_rejected_total",
				Help:      "Action executions refused, by error kind.",
			},
			[]string{"reason"},
		),
		executeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execute_duration_seconds",
				Help:      "Latency of action execution including lock wait.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		instancesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "instances_in_state",
				Help:      "Instances currently sitting in each state.",
			},
			[]string{"definition_id", "state_id"},
		),
	}

	m.registry.MustRegister(
		m.definitions,
		m.instancesStarted,
		m.transitions,
		m.completions,
		m.rejections,
		m.executeDuration,
		m.instancesByState,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExecution records one ExecuteAction call
func (m *Metrics) ObserveExecution(outcome string, d time.Duration) {
	m.executeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRejection counts a refused action execution
func (m *Metrics) RecordRejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// SetStateCounts replaces the per-state gauge with a fresh snapshot
func (m *Metrics) SetStateCounts(counts []port.StateCount) {
	m.instancesByState.Reset()
	for _, c := range counts {
		m.instancesByState.WithLabelValues(c.DefinitionID, c.StateID).Set(float64(c.Count))
	}
}

// Subscribe wires the event counters to d
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeMany(
		[]event.Type{
			event.TypeDefinitionCreated,
			event.TypeDefinitionDeleted,
			event.TypeInstanceStarted,
			event.TypeInstanceTransitioned,
			event.TypeInstanceCompleted,
		},
		"metrics",
		m.handle,
	)
}

func (m *Metrics) handle(_ context.Context, evt *event.Event) error {
	switch evt.Type {
	case event.TypeDefinitionCreated:
		m.definitions.WithLabelValues("created").Inc()
	case event.TypeDefinitionDeleted:
		m.definitions.WithLabelValues("deleted").Inc()
	case event.TypeInstanceStarted:
		m.instancesStarted.WithLabelValues(evt.DefinitionID).Inc()
	case event.TypeInstanceTransitioned:
		m.transitions.WithLabelValues(evt.DefinitionID, evt.GetPayloadString(event.KeyActionID)).Inc()
	case event.TypeInstanceCompleted:
		m.completions.WithLabelValues(evt.DefinitionID).Inc()
	}
	return nil
}
