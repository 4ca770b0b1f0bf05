package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	// Decoy hits by outcome: matched, unmatched, failed
	Ingestions *prometheus.CounterVec

	// Enrichment calls that fell back to a placeholder, by call
	EnrichmentDegradations *prometheus.CounterVec

	// Alert deliveries by outcome: sent, failed, rejected
	Dispatches *prometheus.CounterVec

	// Webhook requests by response status
	WebhookRequests *prometheus.CounterVec

	WebhookDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry, together with the
// process and Go runtime collectors
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		Ingestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoy_ingestions_total",
				Help: "Total number of inbound decoy notifications by outcome",
			},
			[]string{"outcome"},
		),
		EnrichmentDegradations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoy_enrichment_degraded_total",
				Help: "Total number of enrichment calls that degraded to a placeholder",
			},
			[]string{"call"},
		),
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoy_alert_dispatches_total",
				Help: "Total number of alert deliveries by outcome",
			},
			[]string{"outcome"},
		),
		WebhookRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoy_webhook_requests_total",
				Help: "Total number of webhook requests by status code",
			},
			[]string{"status"},
		),
		WebhookDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "decoy_webhook_duration_seconds",
				Help:    "Duration of webhook request handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (c *Collector) IngestionOutcome(outcome string) {
	c.Ingestions.WithLabelValues(outcome).Inc()
}

func (c *Collector) EnrichmentDegraded(call string) {
	c.EnrichmentDegradations.WithLabelValues(call).Inc()
}

func (c *Collector) DispatchOutcome(outcome string) {
	c.Dispatches.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
