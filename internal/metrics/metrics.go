// Package metrics exposes prometheus counters for searches, provider
// answers, snatches and post-processing. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "albumhound"

// Metrics holds the collectors, registered on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	searches        *prometheus.CounterVec
	providerResults *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	snatches        *prometheus.CounterVec
	postprocess     *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go runtime and
// process collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Album searches by outcome.",
		}, []string{"outcome"}),
		providerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_results_total",
			Help:      "Results returned per provider.",
		}, []string{"provider"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Failed provider searches.",
		}, []string{"provider"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_search_seconds",
			Help:      "Provider search latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Results dropped by the filter, by reason.",
		}, []string{"reason"}),
		snatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snatches_total",
			Help:      "Results handed to a download client, by kind.",
		}, []string{"kind"}),
		postprocess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postprocess_total",
			Help:      "Post-processed downloads by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		m.searches,
		m.providerResults,
		m.providerErrors,
		m.providerLatency,
		m.rejections,
		m.snatches,
		m.postprocess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) Search(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

// ProviderDone records one provider search
func (m *Metrics) ProviderDone(provider string, results int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider).Observe(took.Seconds())
	if err != nil {
		m.providerErrors.WithLabelValues(provider).Inc()
		return
	}
	m.providerResults.WithLabelValues(provider).Add(float64(results))
}

func (m *Metrics) Reject(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Snatch(kind string) {
	if m == nil {
		return
	}
	m.snatches.WithLabelValues(kind).Inc()
}

func (m *Metrics) PostProcess(outcome string) {
	if m == nil {
		return
	}
	m.postprocess.WithLabelValues(outcome).Inc()
}
