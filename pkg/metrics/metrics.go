// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	AnnotateRequestsTotal  *prometheus.CounterVec
	AnnotationLatency      *prometheus.HistogramVec
	EntitiesPerRequest     prometheus.Histogram
	EntitiesMatchedTotal   *prometheus.CounterVec
	DocsAnnotatedTotal     prometheus.Counter
	AnnotationStoresTotal  *prometheus.CounterVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	DictionaryTermsLoaded  *prometheus.GaugeVec
	DictionaryLoadDuration *prometheus.HistogramVec
	AbbreviationsLearned   *prometheus.CounterVec
	TerminologiesReady     prometheus.Gauge
	KafkaMessagesTotal     *prometheus.CounterVec
	KafkaConsumerLag       *prometheus.GaugeVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AnnotateRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotate_requests_total",
				Help: "Total annotation requests by result type (hit, miss, zero_match, error).",
			},
			[]string{"result_type"},
		),
		AnnotationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annotation_latency_seconds",
				Help:    "Annotation request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		EntitiesPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entities_per_request",
				Help:    "Number of entities returned per annotation request.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		EntitiesMatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entities_matched_total",
				Help: "Total entities matched by terminology and entity type.",
			},
			[]string{"terminology", "type"},
		),
		DocsAnnotatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_annotated_total",
				Help: "Total documents annotated.",
			},
		),
		AnnotationStoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotation_stores_total",
				Help: "Total annotation batch store operations by status.",
			},
			[]string{"status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DictionaryTermsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dictionary_terms_loaded",
				Help: "Number of terms indexed per terminology.",
			},
			[]string{"terminology"},
		),
		DictionaryLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dictionary_load_duration_seconds",
				Help:    "Terminology load time in seconds, including cache reads.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"terminology"},
		),
		AbbreviationsLearned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abbreviations_learned_total",
				Help: "Total abbreviation definitions learned during annotation.",
			},
			[]string{"terminology"},
		),
		TerminologiesReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminologies_ready",
				Help: "Number of terminologies currently loaded and serving.",
			},
		),
		KafkaMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_total",
				Help: "Total Kafka messages processed by topic and status.",
			},
			[]string{"topic", "status"},
		),
		KafkaConsumerLag: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_consumer_lag",
				Help: "Consumer lag in messages per topic.",
			},
			[]string{"topic"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AnnotateRequestsTotal,
		m.AnnotationLatency,
		m.EntitiesPerRequest,
		m.EntitiesMatchedTotal,
		m.DocsAnnotatedTotal,
		m.AnnotationStoresTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DictionaryTermsLoaded,
		m.DictionaryLoadDuration,
		m.AbbreviationsLearned,
		m.TerminologiesReady,
		m.KafkaMessagesTotal,
		m.KafkaConsumerLag,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
