// Package metrics exposes Prometheus collectors for query generation and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	acquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "acquire",
			Name:      "total",
			Help:      "Query acquisitions by bot and outcome.",
		},
		[]string{"bot", "outcome"},
	)

	acquireDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "miniappq",
			Subsystem: "acquire",
			Name:      "duration_seconds",
			Help:      "Wall time of one acquisition including flood-wait sleeps.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms to ~8.5m
		},
		[]string{"bot"},
	)

	floodWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "acquire",
			Name:      "flood_waits_total",
			Help:      "Flood-wait responses received from Telegram.",
		},
		[]string{"bot"},
	)

	floodWaitSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "acquire",
			Name:      "flood_wait_seconds_total",
			Help:      "Total time slept because of flood waits, jitter included.",
		},
	)

	proxyChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "proxy",
			Name:      "checks_total",
			Help:      "Proxy probes by result.",
		},
		[]string{"result"},
	)

	refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "refresh",
			Name:      "total",
			Help:      "Refresh operations by scope and success.",
		},
		[]string{"scope", "success"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miniappq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		acquisitions,
		acquireDuration,
		floodWaits,
		floodWaitSeconds,
		proxyChecks,
		refreshes,
		httpRequests,
	)
}

// Handler returns the /metrics HTTP handler for Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveAcquisition records the outcome and duration of one acquisition.
func ObserveAcquisition(bot, outcome string, d time.Duration) {
	acquisitions.WithLabelValues(bot, outcome).Inc()
	acquireDuration.WithLabelValues(bot).Observe(d.Seconds())
}

// ObserveFloodWait records a flood wait and the time about to be slept.
func ObserveFloodWait(bot string, sleep time.Duration) {
	floodWaits.WithLabelValues(bot).Inc()
	floodWaitSeconds.Add(sleep.Seconds())
}

// ObserveProxyCheck records a proxy probe result.
func ObserveProxyCheck(result string) {
	proxyChecks.WithLabelValues(result).Inc()
}

// ObserveRefresh records a refresh for the given scope ("all", "user", "bot", "user_bot").
func ObserveRefresh(scope string, success bool) {
	refreshes.WithLabelValues(scope, strconv.FormatBool(success)).Inc()
}

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(method, path string, status int) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
