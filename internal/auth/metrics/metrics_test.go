package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.SessionIssued(metrics.SourceCredentials)
	m.SessionIssued(metrics.SourceRefresh)
	m.SessionIssued(metrics.SourceRefresh)
	m.BearerRejected("expired")
	m.RefreshFailed("reuse_detected")
	m.ReuseDetected()
	m.RefreshTokensPruned(3)
	m.RefreshTokensPruned(0)

	expected := `
# HELP authsvc_sessions_issued_total Sessions minted, by source.
# TYPE authsvc_sessions_issued_total counter
authsvc_sessions_issued_total{source="credentials"} 1
authsvc_sessions_issued_total{source="refresh"} 2
# HELP authsvc_refresh_reuse_detected_total Presentations of an already consumed refresh token.
# TYPE authsvc_refresh_reuse_detected_total counter
authsvc_refresh_reuse_detected_total 1
# HELP authsvc_refresh_tokens_pruned_total Refresh token rows removed by retention housekeeping.
# TYPE authsvc_refresh_tokens_pruned_total counter
authsvc_refresh_tokens_pruned_total 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"authsvc_sessions_issued_total",
		"authsvc_refresh_reuse_detected_total",
		"authsvc_refresh_tokens_pruned_total",
	))

	count, err := testutil.GatherAndCount(m.Registry(), "authsvc_bearer_rejections_total", "authsvc_refresh_failures_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.SessionIssued(metrics.SourceRefresh)
		m.BearerRejected("x")
		m.RefreshFailed("x")
		m.ReuseDetected()
		m.RefreshTokensPruned(1)
	})
	require.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ReuseDetected()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "authsvc_refresh_reuse_detected_total 1")
	require.Contains(t, string(body), "go_goroutines")
}
