// Package prometheus contains the Prometheus-backed implementations of
// the metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filebridge-dev/filebridge/pkg/metrics"
)

// bridgeMetrics is the Prometheus implementation of metrics.BridgeMetrics.
type bridgeMetrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesRead        prometheus.Counter
	readSize         prometheus.Histogram
	chunksPerRead    prometheus.Histogram
	denials          *prometheus.CounterVec
}

// NewBridgeMetrics creates a new Prometheus-backed BridgeMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBridgeMetrics() metrics.BridgeMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &bridgeMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filebridge_requests_total",
				Help: "Total number of processed requests by command and error code",
			},
			[]string{"command", "error_code"}, // error_code empty on success
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filebridge_request_duration_milliseconds",
				Help: "Duration of request processing in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - pings
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - small reads
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms - multi-chunk reads
					1000, // 1s
				},
			},
			[]string{"command"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filebridge_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
			[]string{"command"},
		),
		bytesRead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filebridge_bytes_read_total",
				Help: "Total bytes served from mapped files",
			},
		),
		readSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "filebridge_read_bytes",
				Help: "Distribution of bytes served per read request",
				Buckets: []float64{
					4096,     // 4KB
					32768,    // 32KB
					131072,   // 128KB
					524288,   // 512KB
					1048576,  // 1MB
					8388608,  // 8MB - default chunk size
					33554432, // 32MB
					67108864, // 64MB
				},
			},
		),
		chunksPerRead: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filebridge_chunks_per_read",
				Help:    "Number of response frames produced per read request",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		denials: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filebridge_sandbox_denials_total",
				Help: "Total sandbox policy rejections by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *bridgeMetrics) RecordRequest(command string, duration time.Duration, errorCode string) {
	m.requests.WithLabelValues(command, errorCode).Inc()
	m.requestDuration.WithLabelValues(command).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *bridgeMetrics) RecordRequestStart(command string) {
	m.requestsInFlight.WithLabelValues(command).Inc()
}

func (m *bridgeMetrics) RecordRequestEnd(command string) {
	m.requestsInFlight.WithLabelValues(command).Dec()
}

func (m *bridgeMetrics) RecordBytesRead(bytes uint64) {
	m.bytesRead.Add(float64(bytes))
	m.readSize.Observe(float64(bytes))
}

func (m *bridgeMetrics) RecordChunks(count int) {
	m.chunksPerRead.Observe(float64(count))
}

func (m *bridgeMetrics) RecordDenial(reason string) {
	m.denials.WithLabelValues(reason).Inc()
}
