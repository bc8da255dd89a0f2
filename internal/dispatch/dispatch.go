// Package dispatch implements the worker poll loop (C8): each worker drains
// the acceptor's handoff queue into a private poll-set and dispatches
// readable sockets into a protocol.Handler.
package dispatch

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/logger"
	"github.com/chuxmalux/vaultd/internal/metrics"
	"github.com/chuxmalux/vaultd/internal/protocol"
	"github.com/chuxmalux/vaultd/internal/queue"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/storage"
	"github.com/chuxmalux/vaultd/internal/telemetry"
)

// MaxFDs bounds the number of sockets a single worker multiplexes at once.
// A worker with a full poll-set stops admitting from the handoff queue
// until a slot frees up; the queue (C2) absorbs the backlog.
const MaxFDs = 1024

// PollTimeout is the per-worker poll-set readiness timeout, the Go analogue
// of the source's 100 ms poll() timeout.
const PollTimeout = 100 * time.Millisecond

const freeSlot = -1

var errNotSyscallConn = errors.New("dispatch: connection has no syscall fd")

// slot holds one admitted connection plus the buffered reader wrapping it,
// so a worker never reallocates a bufio.Reader across readiness events for
// the same connection.
type slot struct {
	conn      net.Conn
	reader    *bufio.Reader
	sessionID uint32
	connID    string
}

// Worker owns one private poll-set and the shared tables a dispatched
// Handler may read or mutate.
type Worker struct {
	ID      int
	Handoff *queue.Concurrent[net.Conn]
	Handler protocol.Handler

	Auth     *authtable.Table
	Storage  storage.Table
	Sessions *session.Registry
	RootDir  string

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	slots  [MaxFDs]slot
	pfds   [MaxFDs]unix.PollFd
	active int
}

// Run is the long-lived worker task: admit from the handoff queue, poll the
// private poll-set, dispatch readable sockets, until running reports false.
// Its signature matches workerpool.Task so a Pool can run it directly.
func (w *Worker) Run(workerID int, running *atomic.Bool) {
	w.ID = workerID
	for i := range w.pfds {
		w.pfds[i].Fd = freeSlot
		w.pfds[i].Events = unix.POLLIN | unix.POLLERR | unix.POLLRDHUP
	}

	for running.Load() {
		w.admit()

		n, err := unix.Poll(w.pfds[:], int(PollTimeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if w.Logger != nil {
				w.Logger.Error("worker poll failed", "worker_id", w.ID, "error", err)
			}
			continue
		}
		if n == 0 {
			continue
		}

		for i := 0; i < MaxFDs; i++ {
			pf := &w.pfds[i]
			if pf.Fd == freeSlot {
				continue
			}
			switch {
			case pf.Revents&unix.POLLERR != 0:
				w.free(i)
			case pf.Revents&(unix.POLLHUP|unix.POLLRDHUP) != 0:
				w.slots[i].conn.Close()
				w.free(i)
			case pf.Revents&unix.POLLIN != 0:
				w.dispatch(i)
			}
		}

		if w.Metrics != nil {
			w.Metrics.SocketsPerWorker.WithLabelValues(strconv.Itoa(w.ID)).Set(float64(w.active))
		}
	}

	w.closeAll()
}

// admit pulls one connection from the handoff queue into the first free
// slot, if a slot is free and the queue looks non-empty.
func (w *Worker) admit() {
	if w.active >= MaxFDs {
		return
	}
	if w.Handoff.CountHint() == 0 {
		return
	}

	conn, ok, err := w.Handoff.Pop()
	if !ok {
		return
	}
	if err != nil {
		return
	}

	for i := 0; i < MaxFDs; i++ {
		if w.pfds[i].Fd != freeSlot {
			continue
		}
		fd, scErr := connSyscallConn(conn)
		if scErr != nil {
			conn.Close()
			return
		}
		w.pfds[i].Fd = fd
		w.slots[i] = slot{conn: conn, reader: bufio.NewReader(conn), connID: uuid.NewString()}
		w.active++
		return
	}
}

// dispatch invokes the handler on a readable slot and applies its outcome.
func (w *Worker) dispatch(i int) {
	s := &w.slots[i]
	ctx, span := telemetry.StartDispatchSpan(context.Background(), w.ID, s.conn.RemoteAddr().String())
	defer span.End()

	lc := logger.NewLogContext(s.conn.RemoteAddr().String()).WithWorker(w.ID)
	lc.ConnID = s.connID
	if s.sessionID != 0 {
		lc = lc.WithSession(s.sessionID)
	}
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	cctx := &protocol.ClientContext{
		Conn:      s.conn,
		Reader:    s.reader,
		Auth:      w.Auth,
		Storage:   w.Storage,
		Sessions:  w.Sessions,
		RootDir:   w.RootDir,
		SessionID: s.sessionID,
	}

	outcome := w.Handler.Serve(ctx, cctx)
	s.sessionID = cctx.SessionID
	telemetry.SetAttributes(ctx, telemetry.Outcome(outcome.String()))

	if w.Metrics != nil {
		w.Metrics.DispatchedTotal.Inc()
	}

	if outcome == protocol.CloseConn {
		s.conn.Close()
		w.free(i)
	}
}

// ActiveConns reports how many sockets this worker currently multiplexes.
// Safe to call from another goroutine for introspection purposes only; it
// races benignly with admit/free the same way a metrics scrape would.
func (w *Worker) ActiveConns() int {
	return w.active
}

// free marks slot i reusable without closing the underlying connection —
// ownership of a POLLERR'd fd's lifetime is left to the caller, matching
// the poll loop's slot-is-reusable invariant.
func (w *Worker) free(i int) {
	w.pfds[i].Fd = freeSlot
	w.slots[i] = slot{}
	if w.active > 0 {
		w.active--
	}
}

// connSyscallConn extracts the raw file descriptor backing conn, so it can
// be placed directly into the poll-set alongside net.Conn's own buffered
// read/write path. conn must be backed by syscall.Conn (true of
// *net.TCPConn); anything else is rejected at admission time.
func connSyscallConn(conn net.Conn) (int32, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, errNotSyscallConn
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int32
	if ctrlErr := rawConn.Control(func(p uintptr) { fd = int32(p) }); ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// closeAll closes every admitted connection on shutdown.
func (w *Worker) closeAll() {
	for i := 0; i < MaxFDs; i++ {
		if w.pfds[i].Fd == freeSlot {
			continue
		}
		w.slots[i].conn.Close()
		w.free(i)
	}
}
