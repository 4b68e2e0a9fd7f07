package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stryd",
			Subsystem: "wire",
			Name:      "frames_total",
			Help:      "Total frames processed, by response code.",
		},
		[]string{"code"},
	)
	frameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stryd",
			Subsystem: "wire",
			Name:      "frame_duration_seconds",
			Help:      "Read-dispatch-write cycle duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"code"},
	)
	bytesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stryd",
			Subsystem: "wire",
			Name:      "bytes_read_total",
			Help:      "Bytes read from clients, headers and drain reads included.",
		},
	)
	bytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stryd",
			Subsystem: "wire",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to clients, headers included.",
		},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stryd",
			Subsystem: "wire",
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stryd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stryd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal, frameDuration, bytesReadTotal, bytesSentTotal,
			connectionsActive, httpRequests, httpDuration,
		)
	})
}

// RecordFrame accounts one completed request cycle.
func RecordFrame(code string, bytesIn, bytesOut int, duration time.Duration) {
	RegisterMetrics()
	framesTotal.WithLabelValues(code).Inc()
	frameDuration.WithLabelValues(code).Observe(duration.Seconds())
	bytesReadTotal.Add(float64(bytesIn))
	bytesSentTotal.Add(float64(bytesOut))
}

func ConnOpened() {
	RegisterMetrics()
	connectionsActive.Inc()
}

func ConnClosed() {
	connectionsActive.Dec()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
