package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "packets_sent_total",
			Help:      "Packets written to the stream.",
		},
		[]string{"type"},
	)
	packetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "packets_received_total",
			Help:      "Packets read from the stream.",
		},
		[]string{"type"},
	)
	bytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the stream, including packet headers.",
		},
		[]string{"type"},
	)
	bytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Bytes read from the stream, including packet headers.",
		},
		[]string{"type"},
	)
	keepalivePings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "keepalive_pings_total",
			Help:      "Keepalive Ping packets written while idle.",
		},
	)
	slowOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "slow_operations_total",
			Help:      "Reads and writes that outlived their warn threshold.",
		},
		[]string{"direction"},
	)
	connectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wirelink",
			Subsystem: "transport",
			Name:      "connect_duration_seconds",
			Help:      "Stream factory completion time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsSent, packetsReceived, bytesSent, bytesReceived,
			keepalivePings, slowOperations, connectDuration,
		)
	})
}

func RecordPacketSent(packetType string, bytes int) {
	RegisterMetrics()
	packetsSent.WithLabelValues(packetType).Inc()
	bytesSent.WithLabelValues(packetType).Add(float64(bytes))
}

func RecordPacketReceived(packetType string, bytes int) {
	RegisterMetrics()
	packetsReceived.WithLabelValues(packetType).Inc()
	bytesReceived.WithLabelValues(packetType).Add(float64(bytes))
}

func RecordKeepalive() {
	RegisterMetrics()
	keepalivePings.Inc()
}

func RecordSlowOperation(direction string) {
	RegisterMetrics()
	slowOperations.WithLabelValues(direction).Inc()
}

func RecordConnect(duration time.Duration) {
	RegisterMetrics()
	connectDuration.Observe(duration.Seconds())
}
