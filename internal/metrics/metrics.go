// Package metrics exposes Prometheus metrics for import runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/dataimport/internal/core"
)

type metrics struct {
	runsTotal        *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	fieldErrorsTotal *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	activeRuns       prometheus.Gauge
	waitingRuns      prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "runs_total",
			Help:      "Total number of finished import runs.",
		}, []string{"definition", "status"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "rows_total",
			Help:      "Total number of processed rows by outcome.",
		}, []string{"definition", "outcome"}),
		fieldErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "field_errors_total",
			Help:      "Total number of failed field fills.",
		}, []string{"definition"}),
		runDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dataimport",
			Name:      "run_duration_seconds",
			Help:      "Duration of import runs.",
			Buckets: []float64{
				0.1, 0.5, 1,
				5, 10, 30,
				60, 300, 900, 1800,
			},
		}, []string{"definition", "status"}),
		activeRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "active_runs",
			Help:      "Current number of running imports.",
		}),
		waitingRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "waiting_runs",
			Help:      "Current number of runs waiting for a slot.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

// RunStarted marks a run as active.
func RunStarted() {
	getMetrics().activeRuns.Inc()
}

// RunFinished records the outcome of a run and marks it inactive.
func RunFinished(s core.RunSummary) {
	m := getMetrics()
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(s.Key, string(s.Status)).Inc()
	m.runDuration.WithLabelValues(s.Key, string(s.Status)).Observe(s.Duration.Seconds())
	m.rowsTotal.WithLabelValues(s.Key, "imported").Add(float64(s.Imported))
	m.rowsTotal.WithLabelValues(s.Key, "skipped").Add(float64(s.Skipped))
	m.rowsTotal.WithLabelValues(s.Key, "failed").Add(float64(s.Failed))
	m.fieldErrorsTotal.WithLabelValues(s.Key).Add(float64(s.FieldErrors))
}

// SetWaiting reports how many runs wait for a slot.
func SetWaiting(n int) {
	getMetrics().waitingRuns.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	getMetrics()
	return promhttp.Handler()
}
