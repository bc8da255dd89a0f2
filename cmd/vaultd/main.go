// Command vaultd runs the connection-dispatch server: it accepts TCP
// connections on a configured port, hands them off to a fixed pool of
// worker threads, and authenticates/serves clients against a rooted
// directory and an in-memory key/value storage table.
//
// Flags mirror the source's read_args()/args_check() contract exactly:
//
//	-d path   root directory; must not be "/"; required
//	-p port   TCP port, 0..65535 (default 8989)
//	-n count  worker thread count, >0 (default 4)
//	-h        print usage and exit
//
// Everything else — logging, telemetry, the admin server, the storage
// backend — is config-driven (--config, or VAULTD_* environment
// variables, or internal/config's defaults) the way the teacher's own
// cmd/dittofs/main.go layers flags over a config file over defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chuxmalux/vaultd/internal/config"
	"github.com/chuxmalux/vaultd/internal/logger"
	"github.com/chuxmalux/vaultd/internal/protocol"
	"github.com/chuxmalux/vaultd/internal/server"
	"github.com/chuxmalux/vaultd/internal/storage"
	"github.com/chuxmalux/vaultd/internal/telemetry"
	"github.com/chuxmalux/vaultd/pkg/bufpool"
)

var (
	version = "dev"
	commit  = "none"
)

const usage = `vaultd - session-authenticated TCP file-service dispatch engine

Usage:
  vaultd -d <root-dir> [-p port] [-n workers] [--config file]

Flags:
  -d path          Root directory; must not be "/" (required)
  -p port          TCP port, 0-65535 (default 8989)
  -n count         Worker thread count, > 0 (default 4)
  -config string   Path to a YAML config file (default: $XDG_CONFIG_HOME/vaultd/config.yaml)
  -h               Print this usage and exit

Environment:
  VAULTD_<SECTION>_<KEY> overrides a value the config file sets (it is
  ignored for keys the file leaves out, and when no file is found), e.g.
  VAULTD_LOGGING_LEVEL=DEBUG vaultd -d /srv/vault --config vaultd.yaml
`

func main() {
	var (
		rootDir    string
		port       int
		workers    int
		configFile string
		help       bool
	)

	flag.StringVar(&rootDir, "d", "", "root directory (required, must not be \"/\")")
	flag.IntVar(&port, "p", 8989, "TCP port, 0-65535")
	flag.IntVar(&workers, "n", 4, "worker thread count, > 0")
	flag.StringVar(&configFile, "config", "", "path to YAML config file")
	flag.BoolVar(&help, "h", false, "print usage")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if help {
		fmt.Print(usage)
		os.Exit(0)
	}
	if rootDir == "" {
		fmt.Fprintln(os.Stderr, "vaultd: -d is required")
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if rootDir == "/" {
		fmt.Fprintln(os.Stderr, "vaultd: -d must not be \"/\"")
		os.Exit(1)
	}
	if port < 0 || port > 65535 {
		fmt.Fprintln(os.Stderr, "vaultd: -p must be 0-65535")
		os.Exit(1)
	}
	if workers <= 0 {
		fmt.Fprintln(os.Stderr, "vaultd: -n must be > 0")
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("vaultd: load configuration: %v", err)
	}
	// CLI flags take precedence over the config file, per Load's documented
	// precedence order (env var > file > default; flags are applied last).
	cfg.RootDir = rootDir
	cfg.Listen = fmt.Sprintf(":%d", port)
	cfg.Workers = workers
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("vaultd: invalid configuration: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("vaultd: init logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vaultd",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("vaultd: init telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "vaultd",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		log.Fatalf("vaultd: init profiling: %v", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("vaultd starting",
		"version", version, "commit", commit,
		"root_dir", cfg.RootDir, "listen", cfg.Listen, "workers", cfg.Workers)

	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		log.Fatalf("vaultd: create root directory: %v", err)
	}

	store, err := buildStorage(cfg)
	if err != nil {
		log.Fatalf("vaultd: open storage backend: %v", err)
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
	}

	adminAddr := ""
	if cfg.Admin.Enabled {
		adminAddr = cfg.Admin.Addr
	}

	pool := buildBufferPool(cfg.Buffers)

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Listen,
		WorkerCount:    cfg.Workers,
		RootDir:        cfg.RootDir,
		Registry:       reg,
		Logger:         logger.With("component", "server"),
		StorageBackend: store,
		AdminAddr:      adminAddr,
		Handler:        protocol.NewEchoHandler(pool),
	})
	if err != nil {
		log.Fatalf("vaultd: build server: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("vaultd is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, stopping")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			os.Exit(exitCodeFor(err))
		}
		logger.Info("vaultd stopped")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(exitCodeFor(err))
		}
		logger.Info("vaultd stopped")
	}
}

// exitCodeFor maps a non-nil server.Run error to a process exit code: 2 for
// a fatal acceptor poll() failure, 1 for any other startup or runtime error.
func exitCodeFor(err error) int {
	if errors.Is(err, server.ErrFatal) {
		return 2
	}
	return 1
}

func buildStorage(cfg *config.Config) (storage.Table, error) {
	if cfg.Storage.Backend != "badger" {
		return storage.NewMemory(), nil
	}
	return storage.OpenBadger(filepath.Join(cfg.RootDir, "storage"))
}

// buildBufferPool turns the configured tier sizes into a bufpool.Pool every
// worker's EchoHandler shares. cfg's fields are already bytesize.ByteSize,
// decoded from human-readable config values ("4KiB", "64KiB", "1MiB") by
// config.Load; their String() form is logged back out so a misconfigured
// "4kib" or a decimal unit that rounded unexpectedly shows up in the
// startup log in the same units an operator wrote in the config.
func buildBufferPool(cfg config.BufferConfig) *bufpool.Pool {
	logger.Info("buffer pool tiers",
		"small", cfg.Small.String(),
		"medium", cfg.Medium.String(),
		"large", cfg.Large.String())

	return bufpool.NewPool(&bufpool.Config{
		SmallSize:  int(cfg.Small.Uint64()),
		MediumSize: int(cfg.Medium.Uint64()),
		LargeSize:  int(cfg.Large.Uint64()),
	})
}
