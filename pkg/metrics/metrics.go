// Package metrics exposes the import counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seguro"

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	rowsImported   *prometheus.CounterVec
	rowsPending    *prometheus.CounterVec
	tierLookups    *prometheus.CounterVec
	referenceRows  prometheus.Counter
	importDuration *prometheus.HistogramVec
	refreshRuns    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rowsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_imported_total",
			Help:      "Spreadsheet rows read by import kind.",
		}, []string{"kind"}),
		rowsPending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_pending_total",
			Help:      "Rows reported with missing required fields.",
		}, []string{"kind"}),
		tierLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_lookups_total",
			Help:      "Reference tier lookups by outcome.",
		}, []string{"outcome"}),
		referenceRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_rows_parsed_total",
			Help:      "Reference rows read from PDF tables.",
		}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of import operations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_refresh_runs_total",
			Help:      "Scheduled reference refreshes by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rowsImported,
		m.rowsPending,
		m.tierLookups,
		m.referenceRows,
		m.importDuration,
		m.refreshRuns,
	)
	return m
}

func (m *Metrics) RowsImported(kind string, n int) {
	m.rowsImported.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RowsPending(kind string, n int) {
	m.rowsPending.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) TierLookup(outcome string) {
	m.tierLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReferenceRowsParsed(n int) {
	m.referenceRows.Add(float64(n))
}

func (m *Metrics) ImportDuration(kind string, d time.Duration) {
	m.importDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RefreshRun counts a scheduled refresh; result is "ok", "empty" or "error".
func (m *Metrics) RefreshRun(result string) {
	m.refreshRuns.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
