// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pre-resolution-lab/internal/strategy"
)

// Metrics holds the application's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Store metrics
	QueryDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal     *prometheus.CounterVec
	LastExpectedValue prometheus.Gauge
	LastWinRate       prometheus.Gauge
	LastQualifying    prometheus.Gauge
	LastAnalysisTime  prometheus.Gauge

	// Alerting metrics
	NotificationsSent *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pre_resolution_lab"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of store queries by source and outcome",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "outcome"}),

		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "analyses_total",
			Help:      "Total number of strategy analyses by outcome",
		}, []string{"outcome"}),
		LastExpectedValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "last_expected_value",
			Help:      "Expected value per $1 of the last successful analysis",
		}),
		LastWinRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "last_win_rate",
			Help:      "Win rate of the last successful analysis",
		}),
		LastQualifying: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "last_qualifying_trades",
			Help:      "Qualifying trade count of the last successful analysis",
		}),
		LastAnalysisTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful analysis",
		}),

		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "notifications_total",
			Help:      "Total number of notifications by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery implements storage.QueryObserver.
func (m *Metrics) ObserveQuery(source string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(source, outcome(err)).Observe(elapsed.Seconds())
}

// RecordAnalysis counts one analysis and, on success, updates the last-result gauges.
func (m *Metrics) RecordAnalysis(res strategy.Result, err error) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	m.LastExpectedValue.Set(res.ExpectedValue)
	m.LastWinRate.Set(res.WinRate)
	m.LastQualifying.Set(float64(res.QualifyingTrades))
	m.LastAnalysisTime.SetToCurrentTime()
}

// RecordNotification counts one delivery attempt.
func (m *Metrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
