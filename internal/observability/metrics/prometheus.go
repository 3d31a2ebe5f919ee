// Package metrics provides Prometheus metrics for the pharmacy workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	PrescriptionsRegistered prometheus.Counter
	FulfillmentsSubmitted   *prometheus.CounterVec
	CatalogLookups          *prometheus.CounterVec
	CatalogRefreshes        prometheus.Counter
	EventsProduced          prometheus.Counter
	EventsConsumed          prometheus.Counter
	EventsDeadLettered      prometheus.Counter
	IncompleteRegistrySize  prometheus.Gauge
	RequestDuration         prometheus.Histogram
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		PrescriptionsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_registered_total",
			Help: "Total prescription groups registered",
		}),
		FulfillmentsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillments_submitted_total",
			Help: "Total fulfillment submissions by resulting status",
		}, []string{"status"}),
		CatalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Total catalog existence lookups by answer source",
		}, []string{"source"}),
		CatalogRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_refreshes_total",
			Help: "Total catalog snapshot refreshes",
		}),
		EventsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_events_produced_total",
			Help: "Total fulfillment events published",
		}),
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_events_consumed_total",
			Help: "Total fulfillment events consumed",
		}),
		EventsDeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_events_dead_lettered_total",
			Help: "Total events routed to the dead letter topic",
		}),
		IncompleteRegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "incomplete_prescriptions",
			Help: "Prescription groups currently marked incomplete",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	prometheus.MustRegister(
		m.PrescriptionsRegistered,
		m.FulfillmentsSubmitted,
		m.CatalogLookups,
		m.CatalogRefreshes,
		m.EventsProduced,
		m.EventsConsumed,
		m.EventsDeadLettered,
		m.IncompleteRegistrySize,
		m.RequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
