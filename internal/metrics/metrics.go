// Package metrics holds the Prometheus collectors for the alerting engine.
//
// Collectors are package variables so any layer can record without wiring.
// Init registers them with the default registry once; until then they still
// count, they are just not exported.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AlertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_alerts_emitted_total",
			Help: "Alerts persisted by the notification center",
		},
		[]string{"module", "severity"},
	)

	AlertsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_alerts_deduplicated_total",
			Help: "Emit calls answered with an existing unread alert",
		},
		[]string{"module"},
	)

	AlertsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_alerts_resolved_total",
			Help: "Alerts marked read because their source condition cleared",
		},
		[]string{"source_type"},
	)

	CenterFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_center_failures_total",
			Help: "Notification center operations that failed and were swallowed",
		},
		[]string{"operation"},
	)

	ScanPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sphincs_scan_pass_duration_seconds",
			Help:    "Duration of individual condition scanner passes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pass"},
	)

	ScanPassFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_scan_pass_failures_total",
			Help: "Condition scanner passes that returned an error or panicked",
		},
		[]string{"pass"},
	)

	SubscriberDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_bus_subscriber_drops_total",
			Help: "Events discarded because a subscriber mailbox was full",
		},
		[]string{"subscriber"},
	)

	RelayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_relay_messages_total",
			Help: "Bus events relayed to Kafka",
		},
		[]string{"status"},
	)

	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sphincs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sphincs_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			AlertsEmitted,
			AlertsDeduplicated,
			AlertsResolved,
			CenterFailures,
			ScanPassDuration,
			ScanPassFailures,
			SubscriberDrops,
			RelayPublished,
			RequestCount,
			RequestDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
