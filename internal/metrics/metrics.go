// Package metrics exposes scanner metrics for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes.
const (
	OutcomeShortCircuit = "short_circuit"
	OutcomeScored       = "scored"
	OutcomeNavFailed    = "navigation_failed"
	OutcomeInvalid      = "invalid_url"
	OutcomeError        = "error"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal         *prometheus.CounterVec
	scanDuration       *prometheus.HistogramVec
	redirects          prometheus.Histogram
	navFailures        *prometheus.CounterVec
	findingsTotal      *prometheus.CounterVec
	reportsTotal       *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	dispatchedTotal    prometheus.Counter
}

// New creates and registers all collectors. Go runtime and process
// collectors are included.
func New() *Metrics {
	// custom registry, not the global default
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qssage_scans_total",
				Help: "Total number of scan requests by outcome and risk",
			},
			[]string{"outcome", "risk"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qssage_scan_duration_seconds",
				Help:    "Wall-clock duration of scan requests",
				Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 15, 20, 30, 45, 60},
			},
			[]string{"outcome"},
		),
		redirects: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qssage_scan_redirects",
				Help:    "Number of main-frame redirects observed per navigated scan",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		navFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qssage_navigation_failures_total",
				Help: "Navigation failures by kind",
			},
			[]string{"kind"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qssage_findings_total",
				Help: "Risk findings raised by the scorer, by finding code",
			},
			[]string{"code"},
		),
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qssage_reports_total",
				Help: "Reports stored, by source",
			},
			[]string{"source"},
		),
		sideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qssage_side_effect_failures_total",
				Help: "Best-effort side effects that failed (report, webhook, mail)",
			},
			[]string{"kind"},
		),
		dispatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qssage_reports_dispatched_total",
				Help: "Reports marked dispatched",
			},
		),
	}

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.redirects,
		m.navFailures,
		m.findingsTotal,
		m.reportsTotal,
		m.sideEffectFailures,
		m.dispatchedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveScan records one finished scan. risk is empty when no verdict was produced.
func (m *Metrics) ObserveScan(outcome, risk string, d time.Duration) {
	if m == nil {
		return
	}
	if risk == "" {
		risk = "none"
	}
	m.scansTotal.WithLabelValues(outcome, risk).Inc()
	m.scanDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveRedirects(n int) {
	if m == nil {
		return
	}
	m.redirects.Observe(float64(n))
}

func (m *Metrics) NavigationFailure(kind string) {
	if m == nil {
		return
	}
	m.navFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Finding(code string) {
	if m == nil {
		return
	}
	m.findingsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) ReportStored(source string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) SideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Dispatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatchedTotal.Add(float64(n))
}
