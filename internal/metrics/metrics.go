// Package metrics exposes the process's Prometheus collectors. Collectors
// are registered on the default registry at init; Handler serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled requests by method, route pattern, and
	// status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route, and status.",
	}, []string{"method", "route", "status"})

	// LoginAttempts counts password and code logins by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "login_attempts_total",
		Help:      "Login attempts, by method and outcome.",
	}, []string{"method", "outcome"})

	// SMSCodesIssued counts issued one-time codes by scene.
	SMSCodesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "sms_codes_issued_total",
		Help:      "One-time SMS codes issued, by scene.",
	}, []string{"scene"})

	// SweptSessions counts refresh-session rows removed by the sweeper.
	SweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "swept_sessions_total",
		Help:      "Expired refresh sessions removed by the background sweeper.",
	})

	// DiscoveryRefreshes counts instance-cache refreshes by service.
	DiscoveryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "discovery_refreshes_total",
		Help:      "Service-discovery cache refreshes, by service.",
	}, []string{"service"})
)

// RegisterPoolGauge exports a live in-use gauge for a connection pool.
func RegisterPoolGauge(name string, inUse func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "authsvc",
		Name:        "pool_in_use",
		Help:        "Connections currently leased from a bounded pool.",
		ConstLabels: prometheus.Labels{"pool": name},
	}, func() float64 { return float64(inUse()) })
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
