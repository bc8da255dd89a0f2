// Package admin implements vaultd's optional introspection HTTP server: a
// liveness probe, a Prometheus exposition endpoint, and read-only debug
// views of live sessions and worker load. It runs alongside the TCP
// connection-dispatch engine, never on its accept path, grounded on the
// teacher's pkg/controlplane/api.NewRouter chi wiring (request ID, recoverer,
// timeout middleware, a /health route tree) sized down to a single
// operator-facing surface instead of a full control-plane API.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/cli/health"
	"github.com/chuxmalux/vaultd/internal/cli/timeutil"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/telemetry"
)

// WorkerStats reports one worker's current load for /debug/workers.
type WorkerStats struct {
	ID      int `json:"id"`
	Sockets int `json:"sockets"`
}

// WorkerLoader returns a point-in-time snapshot of every worker's load.
// internal/server supplies this by polling its pool of dispatch.Worker
// values; the admin package has no direct dependency on internal/dispatch.
type WorkerLoader func() []WorkerStats

// Deps bundles the live state NewRouter reads from. Sessions and Auth are
// read-only from this package's perspective: it never mutates either table.
type Deps struct {
	Sessions *session.Registry
	Auth     *authtable.Table
	Workers  WorkerLoader
	Registry *prometheus.Registry
}

// NewRouter builds the chi router backing the admin/introspection server.
//
// Routes:
//   - GET /healthz           - liveness probe
//   - GET /metrics           - Prometheus exposition
//   - GET /debug/sessions    - live session count (no usernames)
//   - GET /debug/workers     - per-worker socket counts
func NewRouter(deps Deps) http.Handler {
	startedAt := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		uptime := time.Since(startedAt)
		resp := health.Response{
			Status:    "ok",
			Timestamp: timeutil.FormatTime(time.Now().Format(time.RFC3339)),
		}
		resp.Data.Service = "vaultd"
		resp.Data.StartedAt = timeutil.FormatTime(startedAt.Format(time.RFC3339))
		resp.Data.Uptime = timeutil.FormatUptime(uptime.String())
		resp.Data.UptimeSec = int64(uptime.Seconds())
		resp.Data.Profiling = telemetry.IsProfilingEnabled()
		writeJSON(w, resp)
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/debug/sessions", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{
			"active": deps.Sessions.Len(),
		})
	})

	r.Get("/debug/workers", func(w http.ResponseWriter, req *http.Request) {
		var stats []WorkerStats
		if deps.Workers != nil {
			stats = deps.Workers()
		}
		writeJSON(w, map[string]any{"workers": stats})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
