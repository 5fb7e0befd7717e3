package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: сколько приложений прошло через пул
	AppsProcessed *prometheus.CounterVec

	// Latency: длительность сбора по одному приложению
	CollectDuration prometheus.Histogram

	// Errors: провалы сбора (изолированные, по приложению)
	CollectFailures prometheus.Counter

	// Saturation: занятые воркеры
	WorkersBusy prometheus.Gauge

	// Batch: прогоны, завершившиеся по stall-таймауту
	StallTimeouts prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AppsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gpa_apps_processed_total",
			Help: "Applications processed by the collection pool, by outcome.",
		}, []string{"outcome"}), // ok, failed

		CollectDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "gpa_collect_duration_seconds",
			Help:    "Histogram of per-application activity collection latencies.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		CollectFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gpa_collect_failures_total",
			Help: "Per-application collection failures (isolated, batch continues).",
		}),

		WorkersBusy: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gpa_pool_workers_busy",
			Help: "Number of pool workers currently collecting.",
		}),

		StallTimeouts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gpa_pool_stall_timeouts_total",
			Help: "Batches finished early because no result arrived within the grace period.",
		}),
	}
}
