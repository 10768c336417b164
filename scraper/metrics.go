package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-scrape-catalog/fetcher"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	PagesTotal      prometheus.Counter
	ProductsTotal   *prometheus.CounterVec
	RowsTotal       prometheus.Counter
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total fetches and page visits issued by the crawler.",
		},
		[]string{"mode"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Latency of fetches and page visits.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total number of listing pages processed.",
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_products_total",
			Help: "Total number of products by outcome.",
		},
		[]string{"status"},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_rows_total",
			Help: "Total number of rows sent to the pipeline.",
		},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts by kind.",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of crawler errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, products, rows, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		ProductsTotal:   products,
		RowsTotal:       rows,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// ObserveFetch records one fetcher call. It satisfies fetcher.Recorder.
func (m *Metrics) ObserveFetch(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(mode).Inc()
	m.RequestDuration.WithLabelValues(mode).Observe(d.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(fetcher.ErrorType(err)).Inc()
	}
}

// IncPages increments the listing pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncProducts increments the products counter for a status label.
func (m *Metrics) IncProducts(status string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(status).Inc()
}

// AddRows adds n to the rows counter.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries(kind string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(kind).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
