// Package acceptor implements the acceptor loop (C7): it polls the
// listening socket and hands accepted connections to the worker pool's
// handoff queue (C2).
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/chuxmalux/vaultd/internal/metrics"
	"github.com/chuxmalux/vaultd/internal/queue"
	"github.com/chuxmalux/vaultd/internal/telemetry"
)

// PollTimeout is the listening-socket poll interval, the Go analogue of the
// source's OS_TIMESLICE.
const PollTimeout = 100 * time.Millisecond

// ErrFatal wraps a poll(2) failure that leaves the acceptor unable to keep
// accepting connections. Run returns it wrapped with %w around the
// underlying syscall error; callers up the stack (internal/server, then
// cmd/vaultd's main) use errors.Is(err, ErrFatal) to tell this apart from an
// ordinary startup failure and exit with a distinct status code.
var ErrFatal = errors.New("acceptor: fatal poll failure")

// Acceptor owns the listening socket and the handoff queue connections are
// pushed onto once accepted.
type Acceptor struct {
	Listener *net.TCPListener
	Handoff  *queue.Concurrent[net.Conn]
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Run polls the listening socket until running reports false, accepting one
// connection per readiness event and handing it to Handoff. A full handoff
// queue closes the new connection and logs rather than blocking — the
// acceptor never backs up waiting on a worker.
func (a *Acceptor) Run(running *atomic.Bool) error {
	rawConn, err := a.Listener.SyscallConn()
	if err != nil {
		return err
	}

	var listenFD int
	if ctrlErr := rawConn.Control(func(fd uintptr) { listenFD = int(fd) }); ctrlErr != nil {
		return ctrlErr
	}

	for running.Load() {
		ctx, span := telemetry.StartAcceptorSpan(context.Background())
		pfds := []unix.PollFd{{Fd: int32(listenFD), Events: unix.POLLIN | unix.POLLERR | unix.POLLRDHUP}}

		n, pollErr := unix.Poll(pfds, int(PollTimeout.Milliseconds()))
		if pollErr != nil {
			if errors.Is(pollErr, unix.EINTR) {
				span.End()
				continue
			}
			if a.Logger != nil {
				a.Logger.Error("acceptor poll failed", "error", pollErr)
			}
			wrapped := fmt.Errorf("%w: %v", ErrFatal, pollErr)
			telemetry.RecordError(ctx, wrapped)
			span.End()
			return wrapped
		}
		if n == 0 {
			span.End()
			continue
		}

		conn, acceptErr := a.Listener.Accept()
		if acceptErr != nil {
			if a.Logger != nil {
				a.Logger.Warn("accept failed", "error", acceptErr)
			}
			telemetry.RecordError(ctx, acceptErr)
			span.End()
			continue
		}

		if pushErr := a.Handoff.Push(conn); pushErr != nil {
			if a.Logger != nil {
				a.Logger.Warn("handoff queue rejected connection", "error", pushErr, "remote_addr", conn.RemoteAddr())
			}
			if a.Metrics != nil {
				a.Metrics.AcceptErrorsTotal.Inc()
			}
			telemetry.RecordError(ctx, pushErr)
			conn.Close()
			span.End()
			continue
		}

		if a.Metrics != nil {
			a.Metrics.AcceptedTotal.Inc()
			a.Metrics.HandoffQueueDepth.Set(float64(a.Handoff.CountHint()))
		}
		span.End()
	}
	return nil
}
