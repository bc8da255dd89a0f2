// Package server implements the lifecycle orchestrator (C9): it builds C1-C8
// in the order the source's init_main_data does, runs the acceptor loop, and
// tears everything down in main_cleanup's order on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chuxmalux/vaultd/internal/acceptor"
	"github.com/chuxmalux/vaultd/internal/admin"
	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/dispatch"
	"github.com/chuxmalux/vaultd/internal/metrics"
	"github.com/chuxmalux/vaultd/internal/protocol"
	"github.com/chuxmalux/vaultd/internal/queue"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/storage"
	"github.com/chuxmalux/vaultd/internal/workerpool"
)

// AuthFileName is the dump file created under RootDir on shutdown and
// reloaded on startup, matching the source's literal "auth_users" path.
const AuthFileName = "auth_users"

// ErrFatal identifies a Run error the acceptor loop cannot recover from
// (a poll(2) failure), as distinct from an ordinary startup failure.
// cmd/vaultd's main uses errors.Is(err, ErrFatal) to pick its exit code.
var ErrFatal = acceptor.ErrFatal

// HandoffCapacity bounds C2, matching MAX_QUEUE_NODES.
const HandoffCapacity = queue.MaxNodes

// Config carries everything the orchestrator needs to build the engine.
// It intentionally mirrors the source's read_args()/args_check() inputs
// rather than a generic options bag.
type Config struct {
	// ListenAddr is the address the acceptor binds, e.g. ":9000".
	ListenAddr string
	// WorkerCount is the number of dispatch workers (C6/C8). Must be positive.
	WorkerCount int
	// RootDir is the base directory auth/storage state is rooted under.
	RootDir string
	// Handler is the protocol.Handler every worker dispatches into. A nil
	// Handler defaults to protocol.NewEchoHandler(nil).
	Handler protocol.Handler
	// Registry is where Prometheus collectors are registered and, when
	// AdminAddr is also set, what the admin server's /metrics route scrapes.
	// A nil Registry disables metrics.
	Registry *prometheus.Registry
	// Logger receives lifecycle and error events. A nil Logger uses slog's
	// default logger.
	Logger *slog.Logger
	// StorageBackend optionally overrides the default in-memory C5 table.
	StorageBackend storage.Table
	// AdminAddr, if non-empty, starts the admin/introspection HTTP server
	// (internal/admin) on this address alongside the TCP dispatch engine.
	AdminAddr string
}

// Server owns every component (C1-C8) for one running instance and knows
// how to tear them all down.
type Server struct {
	cfg Config
	log *slog.Logger

	handler protocol.Handler

	auth     *authtable.Table
	store    storage.Table
	sessions *session.Registry
	handoff  *queue.Concurrent[net.Conn]
	pool     *workerpool.Pool
	metrics  *metrics.Metrics
	listener *net.TCPListener
	admin    *http.Server

	workersMu sync.Mutex
	workers   []*dispatch.Worker

	running atomic.Bool
}

// New builds the engine's components: storage table, thread pool (created
// but not yet started), handoff queue, then the auth table and session
// registry. It does not open the root directory, load the auth file, or bind
// the listener — those happen in Run, matching init_main_data's later
// failure-prone steps.
func New(cfg Config) (*Server, error) {
	if cfg.WorkerCount <= 0 {
		return nil, workerpool.ErrBadCount
	}
	if cfg.RootDir == "" {
		return nil, errors.New("server: root directory required")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	handler := cfg.Handler
	if handler == nil {
		handler = protocol.NewEchoHandler(nil)
	}

	store := cfg.StorageBackend
	if store == nil {
		store = storage.NewMemory()
	}

	pool, err := workerpool.Create(cfg.WorkerCount)
	if err != nil {
		return nil, err
	}

	handoff, err := queue.NewConcurrent[net.Conn](HandoffCapacity)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		handler:  handler,
		log:      log,
		auth:     authtable.New(),
		store:    store,
		sessions: session.New(),
		handoff:  handoff,
		pool:     pool,
	}

	if cfg.Registry != nil {
		s.metrics = metrics.New(cfg.Registry)
	}

	return s, nil
}

// recordWorker stores w so the admin server's /debug/workers route can read
// its live socket count. Called once per worker from the pool's task
// closure, before that worker starts polling.
func (s *Server) recordWorker(w *dispatch.Worker) {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	s.workers = append(s.workers, w)
}

func (s *Server) workerStats() []admin.WorkerStats {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	stats := make([]admin.WorkerStats, len(s.workers))
	for i, w := range s.workers {
		stats[i] = admin.WorkerStats{ID: i, Sockets: w.ActiveConns()}
	}
	return stats
}

// Run completes startup — loads any persisted auth file, binds the
// listener, starts the worker pool, and runs the acceptor loop on its own
// goroutine while the calling goroutine waits — until ctx is cancelled or
// the acceptor loop returns. It always tears down every
// component it started, in main_cleanup's order, before returning; a
// teardown step's failure is logged but never aborts the remaining steps.
func (s *Server) Run(ctx context.Context) error {
	authPath := filepath.Join(s.cfg.RootDir, AuthFileName)
	if err := s.auth.Load(authPath); err != nil {
		return fmt.Errorf("server: load auth file: %w", err)
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return errors.New("server: listener is not TCP")
	}
	s.listener = tcpLn

	s.running.Store(true)

	if startErr := s.pool.Start(func(workerID int, running *atomic.Bool) {
		w := &dispatch.Worker{
			Handoff:  s.handoff,
			Handler:  s.handler,
			Auth:     s.auth,
			Storage:  s.store,
			Sessions: s.sessions,
			RootDir:  s.cfg.RootDir,
			Metrics:  s.metrics,
			Logger:   s.log,
		}
		s.recordWorker(w)
		w.Run(workerID, running)
	}); startErr != nil {
		s.teardown()
		return fmt.Errorf("server: start worker pool: %w", startErr)
	}

	if s.metrics != nil {
		s.metrics.ActiveWorkers.Set(float64(s.cfg.WorkerCount))
	}

	s.startAdmin()

	acc := &acceptor.Acceptor{
		Listener: s.listener,
		Handoff:  s.handoff,
		Metrics:  s.metrics,
		Logger:   s.log,
	}

	acceptDone := make(chan error, 1)
	go func() { acceptDone <- acc.Run(&s.running) }()

	select {
	case <-ctx.Done():
		s.running.Store(false)
		<-acceptDone
	case err := <-acceptDone:
		s.running.Store(false)
		s.teardown()
		return err
	}

	s.teardown()
	return nil
}

// startAdmin starts the admin/introspection HTTP server in the background
// if cfg.AdminAddr is set. Its own errors never fail Run — admin
// introspection is a convenience, not part of the dispatch engine's
// correctness.
func (s *Server) startAdmin() {
	if s.cfg.AdminAddr == "" {
		return
	}
	router := admin.NewRouter(admin.Deps{
		Sessions: s.sessions,
		Auth:     s.auth,
		Workers:  s.workerStats,
		Registry: s.cfg.Registry,
	})
	s.admin = &http.Server{Addr: s.cfg.AdminAddr, Handler: router}
	go func() {
		if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("admin server failed", "error", err)
		}
	}()
}

// teardown runs shutdown in main_cleanup's exact order: stop accepting,
// join workers, dump and clear the auth table, clear the storage table,
// close the handoff queue, close the listener. Every step is attempted even
// if an earlier one failed.
func (s *Server) teardown() {
	if s.admin != nil {
		if err := s.admin.Close(); err != nil {
			s.log.Error("close admin server failed", "error", err)
		}
	}

	s.pool.Shutdown()
	s.sessions.Clear()

	authPath := filepath.Join(s.cfg.RootDir, AuthFileName)
	if err := s.auth.Dump(authPath); err != nil {
		s.log.Error("dump auth table failed", "error", err)
	}
	s.auth.Clear()

	if err := s.store.Clear(); err != nil {
		s.log.Error("clear storage table failed", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.log.Error("close storage table failed", "error", err)
	}

	s.handoff.Close()
	s.handoff.Clear(func(c net.Conn) { c.Close() })

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Error("close listener failed", "error", err)
		}
	}
}
