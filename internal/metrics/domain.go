package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cellWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cell_writes_total",
			Help:      "Cells processed by insertCells, by outcome.",
		},
		[]string{"outcome"},
	)

	cellConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cell_conflicts_total",
			Help:      "Concurrent latest-pointer conflicts that forced a cell write retry.",
		},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export attempts, by provider and result.",
		},
		[]string{"provider", "result"},
	)

	exportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent rendering an export in its provider.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Webhook notifications sent, by result.",
		},
		[]string{"result"},
	)
)

// ObserveCellWrite counts one insertCells outcome ("created", "updated",
// "unchanged" or "failed").
func ObserveCellWrite(outcome string) {
	cellWritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCellConflict counts one retried compare-and-append.
func ObserveCellConflict() {
	cellConflictsTotal.Inc()
}

// ObserveExport records one provider render.
func ObserveExport(provider, result string, elapsed time.Duration) {
	exportsTotal.WithLabelValues(provider, result).Inc()
	exportDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveNotification records one webhook delivery attempt chain.
func ObserveNotification(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	notificationsTotal.WithLabelValues(result).Inc()
}
