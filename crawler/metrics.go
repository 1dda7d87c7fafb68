package crawler

import (
	"github.com/prometheus/client_golang/prometheus"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/util"
)

const metricsSubsystem = "crawl"

// Metrics - Crawl progress metrics. A nil *Metrics records nothing.
type Metrics struct {
	sessions        *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	rounds          prometheus.Counter
	frontier        prometheus.Gauge
	visited         prometheus.Gauge
	failed          prometheus.Gauge
	excluded        prometheus.Gauge
}

// NewMetrics - Create and register crawl metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	namespace := common.PrometheusNamespace
	return &Metrics{
		sessions:        util.NewCounterVec(registry, namespace, metricsSubsystem, "sessions_total", "Device sessions by outcome.", nil, []string{"outcome"}),
		sessionDuration: util.NewHistogramVec(registry, namespace, metricsSubsystem, "session_duration_seconds", "Device session duration by outcome.", prometheus.ExponentialBuckets(0.5, 2, 10), []string{"outcome"}),
		rounds:          util.NewCounter(registry, namespace, metricsSubsystem, "rounds_total", "Completed crawl rounds.", nil),
		frontier:        util.NewGauge(registry, namespace, metricsSubsystem, "frontier_devices", "Devices waiting for the next round.", nil),
		visited:         util.NewGauge(registry, namespace, metricsSubsystem, "visited_devices", "Devices visited successfully.", nil),
		failed:          util.NewGauge(registry, namespace, metricsSubsystem, "failed_devices", "Devices that failed.", nil),
		excluded:        util.NewGauge(registry, namespace, metricsSubsystem, "excluded_devices", "Devices skipped by the exclusion filter.", nil),
	}
}

func (metrics *Metrics) observeSession(outcome string, seconds float64) {
	if metrics == nil {
		return
	}
	metrics.sessions.WithLabelValues(outcome).Inc()
	metrics.sessionDuration.WithLabelValues(outcome).Observe(seconds)
}

func (metrics *Metrics) observeProgress(progress Progress, roundDone bool) {
	if metrics == nil {
		return
	}
	if roundDone {
		metrics.rounds.Inc()
	}
	metrics.frontier.Set(float64(progress.Frontier))
	metrics.visited.Set(float64(progress.Visited))
	metrics.failed.Set(float64(progress.Failed))
	metrics.excluded.Set(float64(progress.Excluded))
}
