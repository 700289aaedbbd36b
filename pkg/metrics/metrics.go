// Package metrics exposes Prometheus instrumentation for the cargo
// distribution solver: per-job timings, per-pass progress counters and
// gauges describing the link graphs being solved.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all solver metrics registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	SolveDuration     *prometheus.HistogramVec
	SolvesTotal       *prometheus.CounterVec
	DijkstraRuns      prometheus.Counter
	FlowPushed        prometheus.Counter
	CyclesEliminated  prometheus.Counter
	UnsatisfiedDemand prometheus.Gauge
	GraphNodes        *prometheus.GaugeVec
	GraphEdges        *prometheus.GaugeVec
	JobsActive        prometheus.Gauge
}

// New creates and registers the solver metrics under the given
// namespace/subsystem pair on a fresh registry.
func New(namespace, subsystem string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		SolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of one link graph job solve",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"cargo"}),
		SolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "solves_total",
			Help:      "Completed link graph job solves by outcome",
		}, []string{"outcome"}), // completed, aborted
		DijkstraRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dijkstra_runs_total",
			Help:      "Single-source shortest path runs across all jobs",
		}),
		FlowPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flow_pushed_total",
			Help:      "Cargo units of flow assigned along paths",
		}),
		CyclesEliminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycles_eliminated_total",
			Help:      "Flow cycles detected and removed during pass one",
		}),
		UnsatisfiedDemand: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unsatisfied_demand",
			Help:      "Demand left unrouted after the most recent solve",
		}),
		GraphNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "graph_nodes",
			Help:      "Nodes per cargo link graph",
		}, []string{"cargo"}),
		GraphEdges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "graph_edges",
			Help:      "Edges per cargo link graph",
		}, []string{"cargo"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_active",
			Help:      "Link graph jobs currently being solved",
		}),
	}

	reg.MustRegister(
		m.SolveDuration,
		m.SolvesTotal,
		m.DijkstraRuns,
		m.FlowPushed,
		m.CyclesEliminated,
		m.UnsatisfiedDemand,
		m.GraphNodes,
		m.GraphEdges,
		m.JobsActive,
	)
	return m
}

// ObserveSolve records one finished solve.
func (m *Metrics) ObserveSolve(cargo uint8, d time.Duration, aborted bool) {
	m.SolveDuration.WithLabelValues(fmt.Sprintf("%d", cargo)).Observe(d.Seconds())
	outcome := "completed"
	if aborted {
		outcome = "aborted"
	}
	m.SolvesTotal.WithLabelValues(outcome).Inc()
}

// SetGraphSize records the current size of one cargo's link graph.
func (m *Metrics) SetGraphSize(cargo uint8, nodes, edges int) {
	label := fmt.Sprintf("%d", cargo)
	m.GraphNodes.WithLabelValues(label).Set(float64(nodes))
	m.GraphEdges.WithLabelValues(label).Set(float64(edges))
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics HTTP server on the given port and path.
// It blocks until the server fails; callers run it in a goroutine.
func (m *Metrics) Serve(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
