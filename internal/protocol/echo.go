package protocol

import (
	"bufio"
	"context"
	"strings"
	"sync"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/pkg/auth"
	"github.com/chuxmalux/vaultd/pkg/bufpool"
)

// EchoHandler is the default Handler: a minimal line protocol used to
// exercise the dispatch engine end to end without committing this package
// to any particular wire format. It recognizes one command per line:
//
//	PING               -> PONG
//	LOGIN user pass    -> OK <session_id> | DENIED
//	GET key            -> VALUE <...> | NOTFOUND
//	PUT key val        -> OK | ERR
//	QUIT               -> BYE, then connection closed
//
// Anything else gets "ERR unknown command". This is deliberately a
// demo: a real deployment supplies its own Handler.
type EchoHandler struct {
	pool *bufpool.Pool

	authOnce sync.Once
	authn    *auth.Authenticator
}

// NewEchoHandler builds an EchoHandler backed by pool. A nil pool uses the
// package-level default.
func NewEchoHandler(pool *bufpool.Pool) *EchoHandler {
	return &EchoHandler{pool: pool}
}

// authenticator lazily builds the pkg/auth.Authenticator chain for this
// handler's lifetime. Every connection shares the same underlying table, so
// the chain only needs constructing once.
func (h *EchoHandler) authenticator(table *authtable.Table) *auth.Authenticator {
	h.authOnce.Do(func() {
		h.authn = auth.NewAuthenticator(auth.NewTableProvider(table, nil))
	})
	return h.authn
}

func (h *EchoHandler) writeLine(cctx *ClientContext, line string) Outcome {
	pool := h.pool
	if pool == nil {
		pool = bufpool.Default()
	}
	buf := pool.Get(len(line) + 1)
	defer pool.Put(buf)
	n := copy(buf, line)
	buf[n] = '\n'
	if _, err := cctx.Conn.Write(buf[:n+1]); err != nil {
		return CloseConn
	}
	return KeepOpen
}

// Serve implements Handler.
func (h *EchoHandler) Serve(ctx context.Context, cctx *ClientContext) Outcome {
	if cctx.Reader == nil {
		cctx.Reader = bufio.NewReader(cctx.Conn)
	}

	line, err := cctx.Reader.ReadString('\n')
	if err != nil {
		return CloseConn
	}
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return KeepOpen
	}

	switch strings.ToUpper(fields[0]) {
	case "PING":
		return h.writeLine(cctx, "PONG")

	case "QUIT":
		h.writeLine(cctx, "BYE")
		return CloseConn

	case "LOGIN":
		if len(fields) < 3 || cctx.Auth == nil || cctx.Sessions == nil {
			return h.writeLine(cctx, "ERR usage: LOGIN user password")
		}
		token := append(append([]byte(fields[1]), 0), []byte(fields[2])...)
		result, err := h.authenticator(cctx.Auth).Authenticate(ctx, token)
		if err != nil || !result.Authenticated {
			return h.writeLine(cctx, "DENIED")
		}
		id, err := cctx.Sessions.Add(result.Identity.Permissions, result.Identity.Username)
		if err != nil {
			return h.writeLine(cctx, "ERR "+err.Error())
		}
		cctx.SessionID = id
		return h.writeLine(cctx, "OK "+formatUint32(id))

	case "GET":
		if len(fields) < 2 || cctx.Storage == nil {
			return h.writeLine(cctx, "ERR usage: GET key")
		}
		if cctx.Sessions != nil && cctx.Sessions.Check(cctx.SessionID) == 0 {
			return h.writeLine(cctx, "ERR not authenticated")
		}
		v, err := cctx.Storage.Get([]byte(fields[1]))
		if err != nil {
			return h.writeLine(cctx, "NOTFOUND")
		}
		return h.writeLine(cctx, "VALUE "+string(v))

	case "PUT":
		if len(fields) < 3 || cctx.Storage == nil {
			return h.writeLine(cctx, "ERR usage: PUT key value")
		}
		if cctx.Sessions != nil && cctx.Sessions.Check(cctx.SessionID) == 0 {
			return h.writeLine(cctx, "ERR not authenticated")
		}
		if err := cctx.Storage.Put([]byte(fields[1]), []byte(strings.Join(fields[2:], " "))); err != nil {
			return h.writeLine(cctx, "ERR "+err.Error())
		}
		return h.writeLine(cctx, "OK")

	default:
		return h.writeLine(cctx, "ERR unknown command")
	}
}

func formatUint32(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
