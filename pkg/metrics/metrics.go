// Package metrics exposes Prometheus counters for downloads, strategy
// attempts and account health. Every method is safe on a nil *Metrics so
// components can take one optionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errs "mediagrab/pkg/errors"
)

const namespace = "mediagrab"

// ResultSuccess labels a successful download or attempt
const ResultSuccess = "success"

// Metrics holds the collectors and the registry they live in
type Metrics struct {
	registry *prometheus.Registry

	DownloadsTotal          *prometheus.CounterVec
	DownloadDuration        *prometheus.HistogramVec
	StrategyAttemptsTotal   *prometheus.CounterVec
	AccountQuarantinesTotal prometheus.Counter
	AccountsAvailable       prometheus.Gauge
	HTTPRequestsTotal       *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the
// Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Download requests by platform, strategy and result",
			},
			[]string{"platform", "strategy", "result"},
		),
		DownloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "download_duration_seconds",
				Help:      "Wall time of download requests",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"platform"},
		),
		StrategyAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_attempts_total",
				Help:      "Individual strategy attempts by result",
			},
			[]string{"strategy", "result"},
		),
		AccountQuarantinesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_quarantines_total",
				Help:      "Accounts blocked after consecutive failures",
			},
		),
		AccountsAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "accounts_available",
				Help:      "Accounts currently eligible for selection",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// Registry returns the registry the collectors are registered in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result turns an error into a label value
func Result(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return string(errs.TypeOf(err))
}

// ObserveDownload records one finished download request
func (m *Metrics) ObserveDownload(platform, strategy string, err error, d time.Duration) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.DownloadsTotal.WithLabelValues(platform, strategy, Result(err)).Inc()
	m.DownloadDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// ObserveAttempt records one strategy attempt
func (m *Metrics) ObserveAttempt(strategy string, err error) {
	if m == nil {
		return
	}
	m.StrategyAttemptsTotal.WithLabelValues(strategy, Result(err)).Inc()
}

// AccountQuarantined counts a blocked account
func (m *Metrics) AccountQuarantined() {
	if m == nil {
		return
	}
	m.AccountQuarantinesTotal.Inc()
}

// SetAccountsAvailable updates the available-accounts gauge
func (m *Metrics) SetAccountsAvailable(n int) {
	if m == nil {
		return
	}
	m.AccountsAvailable.Set(float64(n))
}

// ObserveHTTP counts one API request
func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
