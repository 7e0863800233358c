package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

// WorkerMetrics observes janitor sweeps. It satisfies ports.SweepObserver.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	sweepTotal     *prometheus.CounterVec
	sweepDuration  *prometheus.HistogramVec
	sweepRemoved   *prometheus.CounterVec
	lastSweepEpoch prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "sweeps_total",
			Help:      "Total janitor sweeps by status.",
		},
		[]string{"service", "status"},
	)
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "sweep_duration_seconds",
			Help:      "Janitor sweep duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	sweepRemoved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "removed_total",
			Help:      "Rows removed by the janitor by kind.",
		},
		[]string{"service", "kind"},
	)
	lastSweepEpoch := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed sweep.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(sweepTotal, sweepDuration, sweepRemoved, lastSweepEpoch)

	return &WorkerMetrics{
		registry:       registry,
		service:        service,
		sweepTotal:     sweepTotal,
		sweepDuration:  sweepDuration,
		sweepRemoved:   sweepRemoved,
		lastSweepEpoch: lastSweepEpoch,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry lets the API process expose sweep metrics on its own /metrics endpoint.
func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) ObserveSweep(o domain.SweepObservation, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.sweepTotal.WithLabelValues(m.service, status).Inc()
	m.sweepDuration.WithLabelValues(m.service, status).Observe(o.Duration.Seconds())
	m.lastSweepEpoch.SetToCurrentTime()

	removed := map[string]int64{
		"rate_limit_rows":   o.Report.RateLimitRows,
		"admin_sessions":    o.Report.AdminSessions,
		"uploader_sessions": o.Report.UploaderSessions,
		"abandoned_drafts":  o.Report.AbandonedDrafts,
	}
	for kind, n := range removed {
		if n > 0 {
			m.sweepRemoved.WithLabelValues(m.service, kind).Add(float64(n))
		}
	}
}
