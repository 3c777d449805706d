package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.ObserveScan(OutcomeScored, "DANGEROUS", 3*time.Second)
	m.ObserveScan(OutcomeShortCircuit, "SAFE", time.Millisecond)
	m.ObserveScan(OutcomeError, "", time.Second)
	m.ObserveRedirects(2)
	m.NavigationFailure("blocked")
	m.Finding("ip-host")
	m.ReportStored("scan")
	m.SideEffectFailed("webhook")
	m.Dispatched(3)

	out := scrape(t, m)
	for _, want := range []string{
		`qssage_scans_total{outcome="scored",risk="DANGEROUS"} 1`,
		`qssage_scans_total{outcome="short_circuit",risk="SAFE"} 1`,
		`qssage_scans_total{outcome="error",risk="none"} 1`,
		`qssage_navigation_failures_total{kind="blocked"} 1`,
		`qssage_findings_total{code="ip-host"} 1`,
		`qssage_reports_total{source="scan"} 1`,
		`qssage_side_effect_failures_total{kind="webhook"} 1`,
		`qssage_reports_dispatched_total 3`,
		`qssage_scan_redirects_count 1`,
		`go_goroutines`,
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan(OutcomeScored, "SAFE", time.Second)
		m.ObserveRedirects(1)
		m.NavigationFailure("timeout")
		m.Finding("x")
		m.ReportStored("manual")
		m.SideEffectFailed("report")
		m.Dispatched(1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
