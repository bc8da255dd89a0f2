package protocol

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/storage"
)

func newEchoFixture(t *testing.T) (*EchoHandler, *ClientContext, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	auth := authtable.New()
	require.NoError(t, auth.Put("alice", authtable.DefaultHash([]byte("hunter2")), 1))

	cctx := &ClientContext{
		Conn:     server,
		Reader:   bufio.NewReader(server),
		Auth:     auth,
		Storage:  storage.NewMemory(),
		Sessions: session.New(),
	}
	return NewEchoHandler(nil), cctx, client
}

// readLineAsync reads one line from conn on its own goroutine and delivers
// it (or the read error) over the returned channel, since the caller is
// meanwhile blocked inside EchoHandler.Serve writing the response through
// the other end of a net.Pipe.
func readLineAsync(conn net.Conn) <-chan string {
	out := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			out <- "<error: " + err.Error() + ">"
			return
		}
		out <- line
	}()
	return out
}

func TestEchoHandlerLoginSucceedsWithCorrectPassword(t *testing.T) {
	h, cctx, client := newEchoFixture(t)

	go func() { client.Write([]byte("LOGIN alice hunter2\n")) }()
	line := readLineAsync(client)

	outcome := h.Serve(context.Background(), cctx)

	require.Equal(t, KeepOpen, outcome)
	require.Equal(t, "OK "+formatUint32(cctx.SessionID)+"\n", <-line)
}

func TestEchoHandlerLoginDeniedWithWrongPassword(t *testing.T) {
	h, cctx, client := newEchoFixture(t)

	go func() { client.Write([]byte("LOGIN alice wrongpass\n")) }()
	line := readLineAsync(client)

	outcome := h.Serve(context.Background(), cctx)

	require.Equal(t, KeepOpen, outcome)
	require.Zero(t, cctx.SessionID)
	require.Equal(t, "DENIED\n", <-line)
}

func TestEchoHandlerLoginDeniedForUnknownUser(t *testing.T) {
	h, cctx, client := newEchoFixture(t)

	go func() { client.Write([]byte("LOGIN ghost whatever\n")) }()
	line := readLineAsync(client)

	outcome := h.Serve(context.Background(), cctx)

	require.Equal(t, KeepOpen, outcome)
	require.Zero(t, cctx.SessionID)
	require.Equal(t, "DENIED\n", <-line)
}

func TestEchoHandlerPing(t *testing.T) {
	h, cctx, client := newEchoFixture(t)

	go func() { client.Write([]byte("PING\n")) }()
	line := readLineAsync(client)

	outcome := h.Serve(context.Background(), cctx)

	require.Equal(t, KeepOpen, outcome)
	require.Equal(t, "PONG\n", <-line)
}
