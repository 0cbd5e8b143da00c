package enrich

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for outbound enrichment traffic.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	EnrichedTotal    prometheus.Counter
	ThumbnailsTotal  prometheus.Counter
	CacheHitsTotal   *prometheus.CounterVec
	ExportRowsTotal  *prometheus.CounterVec
	SkippedRowsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyppado_outbound_requests_total",
			Help: "Total outbound HTTP requests issued during enrichment.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyppado_outbound_request_duration_seconds",
			Help:    "Outbound HTTP request latency by phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyppado_oembed_retries_total",
			Help: "Total number of oEmbed retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyppado_outbound_errors_total",
			Help: "Total number of outbound errors by phase and type.",
		},
		[]string{"phase", "error_type"},
	)
	enriched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyppado_records_enriched_total",
			Help: "Total number of video records passed through enrichment.",
		},
	)
	thumbnails := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyppado_thumbnails_found_total",
			Help: "Total number of thumbnails obtained from oEmbed.",
		},
	)
	cacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyppado_cache_hits_total",
			Help: "Enrichment cache hits by cache.",
		},
		[]string{"cache"},
	)
	exportRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyppado_export_rows_total",
			Help: "Rows normalized from export files by kind.",
		},
		[]string{"kind"},
	)
	skippedRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyppado_export_rows_skipped_total",
			Help: "Rows skipped while normalizing export files by kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, enriched, thumbnails, cacheHits, exportRows, skippedRows)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		EnrichedTotal:    enriched,
		ThumbnailsTotal:  thumbnails,
		CacheHitsTotal:   cacheHits,
		ExportRowsTotal:  exportRows,
		SkippedRowsTotal: skippedRows,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an outbound request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a classified error.
func (m *Metrics) IncError(phase string, err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(phase, errorTypeLabel(err)).Inc()
}

// IncEnriched increments the enriched records counter.
func (m *Metrics) IncEnriched() {
	if m == nil {
		return
	}
	m.EnrichedTotal.Inc()
}

// IncThumbnail increments the thumbnails counter.
func (m *Metrics) IncThumbnail() {
	if m == nil {
		return
	}
	m.ThumbnailsTotal.Inc()
}

// IncCacheHit increments the cache hit counter for a cache name.
func (m *Metrics) IncCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// ObserveExport records normalized and skipped row counts for one export read.
func (m *Metrics) ObserveExport(kind string, rows, skipped int) {
	if m == nil {
		return
	}
	m.ExportRowsTotal.WithLabelValues(kind).Add(float64(rows))
	m.SkippedRowsTotal.WithLabelValues(kind).Add(float64(skipped))
}
