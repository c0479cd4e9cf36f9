// Package metrics collects and exposes Prometheus metrics for the
// mesh kernel host process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every meshkernel-specific Prometheus metric.
type Collector struct {
	registry *prometheus.Registry

	InstancesLoaded    prometheus.Gauge
	TurnsTotal         *prometheus.CounterVec
	HandlesOpen        *prometheus.GaugeVec
	MatchesTotal       prometheus.Counter
	PendingConnectors  *prometheus.GaugeVec
	ConnectorsRejected prometheus.Counter
	BuildInfo          *prometheus.GaugeVec
}

// New creates and registers every meshkernel metric on a fresh
// registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{
		registry: reg,

		InstancesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshkernel_instances_loaded",
			Help: "Number of plugin instances currently loaded.",
		}),

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshkernel_instance_turns_total",
				Help: "Total number of scheduling turns driven per instance.",
			},
			[]string{"module"},
		),

		HandlesOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshkernel_handles_open",
				Help: "Number of open handles per instance and kind.",
			},
			[]string{"module", "kind"},
		),

		MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshkernel_matchmaker_matches_total",
			Help: "Total number of listener/connector pairs rendezvoused.",
		}),

		PendingConnectors: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshkernel_matchmaker_pending_connectors",
				Help: "Number of connectors currently queued per address.",
			},
			[]string{"address"},
		),

		ConnectorsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshkernel_matchmaker_connectors_rejected_total",
			Help: "Total number of connectors rejected for queue overflow.",
		}),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshkernel_info",
				Help: "Build information about the meshkernel host.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		c.InstancesLoaded,
		c.TurnsTotal,
		c.HandlesOpen,
		c.MatchesTotal,
		c.PendingConnectors,
		c.ConnectorsRejected,
		c.BuildInfo,
	)

	return c
}

// Handler returns the http.Handler that serves /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetBuildInfo sets the constant build-info gauge.
func (c *Collector) SetBuildInfo(version, goVersion string) {
	c.BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// IncTurn increments the turn counter for a module.
func (c *Collector) IncTurn(module string) {
	c.TurnsTotal.WithLabelValues(module).Inc()
}

// SetHandlesOpen sets the open-handle gauge for a module and handle kind.
func (c *Collector) SetHandlesOpen(module, kind string, count int) {
	c.HandlesOpen.WithLabelValues(module, kind).Set(float64(count))
}

// IncMatch increments the total successful rendezvous counter.
func (c *Collector) IncMatch() {
	c.MatchesTotal.Inc()
}

// SetPendingConnectors sets the pending-connector gauge for an address.
func (c *Collector) SetPendingConnectors(address string, count int) {
	c.PendingConnectors.WithLabelValues(address).Set(float64(count))
}

// IncConnectorRejected increments the connector-queue-overflow counter.
func (c *Collector) IncConnectorRejected() {
	c.ConnectorsRejected.Inc()
}
