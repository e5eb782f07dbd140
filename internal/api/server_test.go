package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/crawler"
)

type stubStatus struct {
	stats crawler.Stats
}

func (s stubStatus) Snapshot() crawler.Stats {
	return s.stats
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubStatus{}, "run-1", zap.NewNop())
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.JSONEq(t, `{"status":"ok"}`, rec.Body.String(), path)
	}
}

func TestCrawlStatus(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubStatus{stats: crawler.Stats{
		Attempted: 10,
		Accepted:  7,
		Failed:    2,
	}}, "run-42", zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawl", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp crawlStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "run-42", resp.RunID)
	require.Equal(t, 7, resp.Stats.Accepted)
}

func TestCrawlStatusWithoutSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawl", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubStatus{}, "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
