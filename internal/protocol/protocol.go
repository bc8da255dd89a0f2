// Package protocol defines the serve() contract the worker poll loop (C8)
// dispatches into. The wire protocol of individual request types is out of
// scope; this package only fixes the boundary a concrete handler plugs into.
package protocol

import (
	"bufio"
	"context"
	"net"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/storage"
)

// Outcome tells the worker poll loop what to do with the connection after a
// Handler call returns.
type Outcome int

const (
	// KeepOpen leaves the socket registered in the worker's poll set.
	KeepOpen Outcome = iota
	// CloseConn deregisters and closes the socket.
	CloseConn
)

// String renders an Outcome the way it's reported on a dispatch span and in
// log lines — "keep_open" / "close_conn" rather than the bare integer.
func (o Outcome) String() string {
	if o == CloseConn {
		return "close_conn"
	}
	return "keep_open"
}

// ClientContext is everything a Handler needs to act on one readable
// connection: the shared tables a session's permissions gate access to, and
// the session registry itself for authentication.
type ClientContext struct {
	Conn     net.Conn
	Reader   *bufio.Reader
	Auth     *authtable.Table
	Storage  storage.Table
	Sessions *session.Registry

	// SessionID is 0 (unset) until the connection authenticates. RootDir is
	// the fd-equivalent base directory handlers may scope file access to;
	// it is carried here but never dereferenced by this package, matching
	// spec.md's opaque-serve() boundary.
	SessionID uint32
	RootDir   string
}

// Handler performs one round of protocol work on a readable connection. It
// must not block waiting on future data; the worker poll loop only calls
// Serve when the socket has signaled POLLIN.
type Handler interface {
	Serve(ctx context.Context, cctx *ClientContext) Outcome
}
