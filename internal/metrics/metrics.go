// Package metrics exposes Prometheus counters for logins, fetches and imports.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "watercare_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported result labels for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	loginsTotal      *prometheus.CounterVec
	refreshesTotal   *prometheus.CounterVec
	fetchesTotal     *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	lastStateLitres  prometheus.Gauge
	pointsTotal      *prometheus.CounterVec
	exportTotal      *prometheus.CounterVec
	lastRefreshTime  prometheus.Gauge
	sessionRemaining prometheus.Gauge
)

// Init registers the metrics with the default registry. Calls after the
// first are no-ops.
func Init() {
	registerOnce.Do(func() {
		loginsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "logins_total",
				Help: "Total interactive logins by result",
			},
			[]string{"result"},
		)
		refreshesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "token_refreshes_total",
				Help: "Total access token refreshes by result",
			},
			[]string{"result"},
		)
		fetchesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetches_total",
				Help: "Total usage fetches by endpoint and result",
			},
			[]string{"endpoint", "result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Usage fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)
		lastStateLitres = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_state_litres",
				Help: "Most recent bucket value in litres",
			},
		)
		pointsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statistics_points_total",
				Help: "Total statistic points imported by statistic",
			},
			[]string{"statistic"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		lastRefreshTime = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful update cycle",
			},
		)
		sessionRemaining = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "access_token_remaining_seconds",
				Help: "Seconds until the current access token expires",
			},
		)

		prometheus.MustRegister(
			loginsTotal,
			refreshesTotal,
			fetchesTotal,
			fetchLatency,
			lastStateLitres,
			pointsTotal,
			exportTotal,
			lastRefreshTime,
			sessionRemaining,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObserveLogin records a login attempt.
func ObserveLogin(err error) {
	if loginsTotal != nil {
		loginsTotal.WithLabelValues(result(err)).Inc()
	}
}

// ObserveRefresh records a token refresh attempt.
func ObserveRefresh(err error) {
	if refreshesTotal != nil {
		refreshesTotal.WithLabelValues(result(err)).Inc()
	}
}

// ObserveFetch records a usage fetch and its latency.
func ObserveFetch(endpoint string, err error, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if fetchesTotal != nil {
		fetchesTotal.WithLabelValues(endpoint, result(err)).Inc()
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

// SetLastState sets the current state gauge.
func SetLastState(litres float64) {
	if lastStateLitres != nil {
		lastStateLitres.Set(litres)
	}
	if lastRefreshTime != nil {
		lastRefreshTime.SetToCurrentTime()
	}
}

// SetAccessTokenRemaining sets the seconds left on the access token.
func SetAccessTokenRemaining(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if sessionRemaining != nil {
		sessionRemaining.Set(d.Seconds())
	}
}

// AddStatisticPoints counts imported points for a statistic.
func AddStatisticPoints(statisticID string, n int) {
	if n <= 0 {
		return
	}
	if pointsTotal != nil {
		pointsTotal.WithLabelValues(statisticID).Add(float64(n))
	}
}

// ObserveExport records a statement export.
func ObserveExport(format string, err error) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result(err)).Inc()
	}
}
