package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the subtitle receiver
type Metrics struct {
	// Connection metrics
	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	ConnectionDuration prometheus.Histogram

	// Message metrics
	MessagesReceived prometheus.Counter
	MessagesByType   *prometheus.CounterVec
	DecodeErrors     prometheus.Counter
	UnknownTypes     prometheus.Counter
	SubtitleLines    prometheus.Counter
	Heartbeats       prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the given
// registerer. Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asb_connections_active",
			Help: "Current number of open WebSocket connections",
		}),
		ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "asb_connection_duration_seconds",
			Help:    "Duration of closed WebSocket connections in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1s to ~3 days
		}),

		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_messages_received_total",
			Help: "Total number of text frames received",
		}),
		MessagesByType: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asb_messages_by_type_total",
			Help: "Total number of decoded messages by type tag",
		}, []string{"type"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_decode_errors_total",
			Help: "Total number of frames that failed JSON decoding",
		}),
		UnknownTypes: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_unknown_messages_total",
			Help: "Total number of messages with an unrecognized type tag",
		}),
		SubtitleLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_subtitle_lines_total",
			Help: "Total number of subtitle lines rendered",
		}),
		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "asb_heartbeats_total",
			Help: "Total number of heartbeat messages received",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asb_http_requests_total",
			Help: "Total number of HTTP requests to the monitoring API",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the monitoring API",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asb_http_errors_total",
			Help: "Total number of HTTP errors returned by the monitoring API",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordConnectionOpened increments the connection counters.
func (m *Metrics) RecordConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// RecordConnectionClosed decrements the active gauge and records duration.
func (m *Metrics) RecordConnectionClosed(durationSeconds float64) {
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordMessage records one decoded message by its type tag.
func (m *Metrics) RecordMessage(msgType string) {
	m.MessagesReceived.Inc()
	m.MessagesByType.WithLabelValues(msgType).Inc()
}

// RecordDecodeError increments the decode error counter.
func (m *Metrics) RecordDecodeError() {
	m.MessagesReceived.Inc()
	m.DecodeErrors.Inc()
}

// RecordUnknownType increments the unknown type counter.
func (m *Metrics) RecordUnknownType() {
	m.UnknownTypes.Inc()
}

// RecordSubtitleLines adds rendered subtitle lines to the counter.
func (m *Metrics) RecordSubtitleLines(count int) {
	m.SubtitleLines.Add(float64(count))
}

// RecordHeartbeat increments the heartbeat counter.
func (m *Metrics) RecordHeartbeat() {
	m.Heartbeats.Inc()
}

// RecordHTTPRequest records an HTTP request to the monitoring API.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error returned by the monitoring API.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
