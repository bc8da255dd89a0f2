package dispatch

import (
	"bufio"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/protocol"
	"github.com/chuxmalux/vaultd/internal/queue"
	"github.com/chuxmalux/vaultd/internal/session"
	"github.com/chuxmalux/vaultd/internal/storage"
)

func newWorker(t *testing.T) (*Worker, *queue.Concurrent[net.Conn]) {
	t.Helper()
	handoff, err := queue.NewConcurrent[net.Conn](16)
	require.NoError(t, err)

	w := &Worker{
		Handoff:  handoff,
		Handler:  protocol.NewEchoHandler(nil),
		Auth:     authtable.New(),
		Storage:  storage.NewMemory(),
		Sessions: session.New(),
	}
	return w, handoff
}

func dialLoopback(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server := <-accepted
	require.NotNil(t, server)
	return client, server
}

func TestWorkerAdmitsAndDispatchesPing(t *testing.T) {
	w, handoff := newWorker(t)
	client, server := dialLoopback(t)
	defer client.Close()

	require.NoError(t, handoff.Push(server))

	var running atomic.Bool
	running.Store(true)
	go w.Run(0, &running)
	defer running.Store(false)

	_, err := client.Write([]byte("PING\n"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "PONG\n", reply)
}

func TestWorkerClosesOnQuit(t *testing.T) {
	w, handoff := newWorker(t)
	client, server := dialLoopback(t)
	defer client.Close()

	require.NoError(t, handoff.Push(server))

	var running atomic.Bool
	running.Store(true)
	go w.Run(0, &running)
	defer running.Store(false)

	_, err := client.Write([]byte("QUIT\n"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(client)
	reply, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "BYE\n", reply)

	// Server should close its end shortly after QUIT.
	require.Eventually(t, func() bool {
		_, err := reader.ReadByte()
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerStopsOnShutdown(t *testing.T) {
	w, _ := newWorker(t)

	var running atomic.Bool
	running.Store(true)

	done := make(chan struct{})
	go func() {
		w.Run(0, &running)
		close(done)
	}()

	running.Store(false)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after running flag cleared")
	}
}

func TestAdmitRespectsCapacity(t *testing.T) {
	w, _ := newWorker(t)
	w.active = MaxFDs

	handoff, err := queue.NewConcurrent[net.Conn](1)
	require.NoError(t, err)
	w.Handoff = handoff

	client, server := dialLoopback(t)
	defer client.Close()
	defer server.Close()
	require.NoError(t, handoff.Push(server))

	w.admit()
	require.Equal(t, MaxFDs, w.active)
	ok := handoff.Contains(server)
	require.True(t, ok, "connection should remain queued when the worker is at capacity")
}
