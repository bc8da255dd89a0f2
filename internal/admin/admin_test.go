package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/cli/health"
	"github.com/chuxmalux/vaultd/internal/session"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Sessions: session.New(),
		Auth:     authtable.New(),
		Workers: func() []WorkerStats {
			return []WorkerStats{{ID: 0, Sockets: 3}}
		},
		Registry: reg,
	})
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "vaultd", resp.Data.Service)
	require.GreaterOrEqual(t, resp.Data.UptimeSec, int64(0))
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDebugSessionsReportsCount(t *testing.T) {
	reg := session.New()
	_, err := reg.Add(1, "alice")
	require.NoError(t, err)

	r := NewRouter(Deps{
		Sessions: reg,
		Auth:     authtable.New(),
	})
	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"active":1`)
}

func TestDebugWorkersReportsLoaderOutput(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/debug/workers", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"sockets":3`)
}

func TestDebugWorkersWithNilLoaderReturnsNullWorkers(t *testing.T) {
	r := NewRouter(Deps{
		Sessions: session.New(),
		Auth:     authtable.New(),
	})
	req := httptest.NewRequest(http.MethodGet, "/debug/workers", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"workers":null`)
}
