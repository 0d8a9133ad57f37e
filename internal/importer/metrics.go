// Package importer – Prometheus instrumentation.
//
// Two counters with bounded label sets:
//   - import_jobs_total{status}: finished jobs by terminal status.
//   - import_rows_total{result}: per-row outcomes across all jobs.
package importer

import "github.com/prometheus/client_golang/prometheus"

var (
	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_jobs_total",
			Help: "Total number of finished import jobs by terminal status.",
		},
		[]string{"status"},
	)

	rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total number of processed CSV rows by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(importsTotal, rowsTotal)
}
