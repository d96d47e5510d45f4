// Package metrics exposes chart server metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector provides application metrics collection
type Collector struct {
	registry *prometheus.Registry

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Chart Metrics
	ChartsComputed   prometheus.Counter
	ChartDuration    prometheus.Histogram
	BodyFailures     *prometheus.CounterVec
	HouseFailures    *prometheus.CounterVec
	JulianDayLookups prometheus.Counter

	// Storage Metrics
	StorageDuration *prometheus.HistogramVec
	StorageErrors   *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, so several can
// coexist in one process.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
			},
			[]string{"route"},
		),

		ChartsComputed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charts_computed_total",
				Help:      "Total number of charts computed",
			},
		),

		ChartDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chart_duration_seconds",
				Help:      "Time to compute one chart",
				Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5},
			},
		),

		BodyFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "body_failures_total",
				Help:      "Body positions that could not be computed, by body and error kind",
			},
			[]string{"body", "kind"},
		),

		HouseFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "house_failures_total",
				Help:      "House calculations that failed, by error kind",
			},
			[]string{"kind"},
		),

		JulianDayLookups: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "julian_day_conversions_total",
				Help:      "Total number of calendar to Julian day conversions served",
			},
		),

		StorageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Chart archive operation duration in seconds by operation",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"operation"},
		),

		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of chart archive errors by operation",
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(route, method, status string) {
	c.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
}

// RecordBodyFailure counts one body row without a position.
func (c *Collector) RecordBodyFailure(body, kind string) {
	c.BodyFailures.WithLabelValues(body, kind).Inc()
}

// RecordHouseFailure counts one failed house calculation.
func (c *Collector) RecordHouseFailure(kind string) {
	c.HouseFailures.WithLabelValues(kind).Inc()
}

// RecordStorageError counts one failed archive operation.
func (c *Collector) RecordStorageError(operation string) {
	c.StorageErrors.WithLabelValues(operation).Inc()
}
