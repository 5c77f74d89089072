package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one hop.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Chain forwarding metrics
	ForwardsTotal   *prometheus.CounterVec
	ForwardDuration *prometheus.HistogramVec

	// Broker metrics
	PublishesTotal *prometheus.CounterVec
	ConsumesTotal  *prometheus.CounterVec

	// Tracing pipeline metrics
	SpansExported prometheus.Counter
	SpansDropped  prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered on reg.
func NewMetrics(reg prometheus.Registerer, service string) *Metrics {
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telchain_http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "telchain_http_request_duration_seconds",
				Help:        "HTTP request duration in seconds",
				ConstLabels: constLabels,
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ForwardsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telchain_forward_calls_total",
				Help:        "Total number of next-hop HTTP calls",
				ConstLabels: constLabels,
			},
			[]string{"target", "status"},
		),
		ForwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "telchain_forward_duration_seconds",
				Help:        "Next-hop HTTP call duration in seconds",
				ConstLabels: constLabels,
				Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"target"},
		),

		PublishesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telchain_broker_publishes_total",
				Help:        "Total number of broker publishes",
				ConstLabels: constLabels,
			},
			[]string{"destination", "status"},
		),
		ConsumesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telchain_broker_consumes_total",
				Help:        "Total number of broker messages consumed",
				ConstLabels: constLabels,
			},
			[]string{"queue", "status"},
		),

		SpansExported: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "telchain_spans_exported_total",
				Help:        "Total number of spans handed to the exporter",
				ConstLabels: constLabels,
			},
		),
		SpansDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "telchain_spans_dropped_total",
				Help:        "Total number of spans dropped due to buffer overflow",
				ConstLabels: constLabels,
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "telchain_uptime_seconds",
				Help:        "Service uptime in seconds",
				ConstLabels: constLabels,
			},
		),
	}

	return m
}

// RecordHTTPRequest records an inbound request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordForward records a next-hop HTTP call.
func (m *Metrics) RecordForward(target, status string, duration time.Duration) {
	m.ForwardsTotal.WithLabelValues(target, status).Inc()
	m.ForwardDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordPublish records a broker publish attempt.
func (m *Metrics) RecordPublish(destination, status string) {
	m.PublishesTotal.WithLabelValues(destination, status).Inc()
}

// RecordConsume records a consumed message.
func (m *Metrics) RecordConsume(queue, status string) {
	m.ConsumesTotal.WithLabelValues(queue, status).Inc()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
