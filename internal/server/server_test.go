// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/chatty/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

const ioTimeout = 2 * time.Second

// startServer serves srv on a loopback port and stops it on cleanup.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, ErrServerClosed) {
				t.Errorf("Serve() error = %v, want ErrServerClosed", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve() did not return after cancel")
		}
	})
	return ln.Addr().String()
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// register dials addr, registers name and consumes the welcome line.
func register(t *testing.T, addr, name string) *client {
	t.Helper()
	c := dial(t, addr)
	c.send("username:" + name)
	c.expect(fmt.Sprintf("Welcome to the chat, %s!\n", name))
	return c
}

func (c *client) send(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *client) expect(want string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	got, err := c.r.ReadString('\n')
	require.NoError(c.t, err, "waiting for %q", want)
	assert.Equal(c.t, want, got)
}

// expectNothing asserts no line arrives within d.
func (c *client) expectNothing(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	got, err := c.r.ReadString('\n')
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		c.t.Errorf("expected no data, got %q (err=%v)", got, err)
	}
	require.NoError(c.t, c.conn.SetReadDeadline(time.Time{}))
}

// expectClosed asserts the server closed the connection.
func (c *client) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	_, err := c.r.ReadString('\n')
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.t.Fatal("connection still open")
	}
	assert.Error(c.t, err)
}

// =============================================================================
// END-TO-END TESTS
// =============================================================================

func TestServer_AliceAndBob(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("hi")

	bob.expect("alice: hi\n")
	alice.expect("alice: hi\n")
}

func TestServer_FanOutInSendOrder(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	a := register(t, addr, "a")
	b := register(t, addr, "b")
	c := register(t, addr, "c")

	for i := 0; i < 5; i++ {
		a.send(fmt.Sprintf("msg %d", i))
	}

	for _, cl := range []*client{a, b, c} {
		for i := 0; i < 5; i++ {
			cl.expect(fmt.Sprintf("a: msg %d\n", i))
		}
	}
}

func TestServer_SenderReceivesOwnMessage(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	solo := register(t, addr, "solo")
	solo.send("echo?")
	solo.expect("solo: echo?\n")
}

func TestServer_RegistrationGate(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	lurker := dial(t, addr)
	alice := register(t, addr, "alice")

	alice.send("before")
	alice.expect("alice: before\n")
	lurker.expectNothing(150 * time.Millisecond)

	lurker.send("username:late")
	lurker.expect("Welcome to the chat, late!\n")

	alice.send("after")
	lurker.expect("alice: after\n")
}

func TestServer_BlankLinesSuppressed(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("")
	alice.send("   \t")
	alice.send("real")

	bob.expect("alice: real\n")
	alice.expect("alice: real\n")
	bob.expectNothing(100 * time.Millisecond)
}

func TestServer_PreservesMessageText(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	alice.send("  spaced: out, ünïcode  ")
	alice.expect("alice:   spaced: out, ünïcode  \n")
}

func TestServer_AcceptsAnyNonEmptyUsername(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	names := []string{
		strings.Repeat("a", 65),
		strings.Repeat("long name ", 40),
		"café",
		"Amélie",
	}
	for _, name := range names {
		t.Run(fmt.Sprintf("%d bytes", len(name)), func(t *testing.T) {
			want := strings.TrimSpace(name)
			c := dial(t, addr)
			c.send("username:" + name)
			c.expect("Welcome to the chat, " + want + "!\n")

			c.send("hi")
			c.expect(want + ": hi\n")
			require.NoError(t, c.conn.Close())
		})
	}
}

// =============================================================================
// FAILURE HANDLING TESTS
// =============================================================================

func TestServer_MalformedRegistration(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	for _, line := range []string{"hello there", "username:", "user:bob"} {
		t.Run(line, func(t *testing.T) {
			bad := dial(t, addr)
			bad.send(line)
			bad.expectClosed()
		})
	}

	// The server keeps serving.
	ok := register(t, addr, "ok")
	ok.send("still up")
	ok.expect("ok: still up\n")
	assert.Equal(t, 1, srv.Directory().Len())
}

func TestServer_EOFBeforeRegistration(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	c := dial(t, addr)
	require.NoError(t, c.conn.Close())

	alice := register(t, addr, "alice")
	alice.send("fine")
	alice.expect("alice: fine\n")
	assert.Equal(t, []string{"alice"}, srv.Directory().Names())
}

func TestServer_DirectoryEntryRemovedOnDisconnect(t *testing.T) {
	srv := New("")
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")
	assert.Equal(t, []string{"alice", "bob"}, srv.Directory().Names())

	require.NoError(t, bob.conn.Close())
	require.Eventually(t, func() bool { return srv.Directory().Len() == 1 },
		ioTimeout, 10*time.Millisecond)
	assert.Equal(t, []string{"alice"}, srv.Directory().Names())

	alice.send("anyone?")
	alice.expect("alice: anyone?\n")
}

func TestServer_LineTooLongClosesConnection(t *testing.T) {
	srv := New("").WithMaxLineLength(64)
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send(strings.Repeat("z", 200))
	alice.expectClosed()

	require.Eventually(t, func() bool { return srv.Directory().Len() == 1 },
		ioTimeout, 10*time.Millisecond)
	bob.expectNothing(100 * time.Millisecond)
}

func TestServer_OverlongRegistrationIsProtocolError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := New("").WithMaxLineLength(32).WithLogger(zap.New(core))
	addr := startServer(t, srv)

	c := dial(t, addr)
	c.send("username:" + strings.Repeat("x", 100))
	c.expectClosed()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("PROTOCOL_ERROR").Len() == 1
	}, ioTimeout, 10*time.Millisecond)
	assert.Equal(t, 0, srv.Directory().Len())
}

func TestServer_ListenAndServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(ln.Addr().String())
	err = srv.ListenAndServe(context.Background())

	var connErr *protocol.ConnectionError
	require.True(t, errors.As(err, &connErr), "want *protocol.ConnectionError, got %v", err)
	assert.Equal(t, "listen", connErr.Op)
}

func TestServer_ShutdownClosesClients(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv := New("").WithLogger(zap.New(core))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	alice := register(t, ln.Addr().String(), "alice")

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	alice.expectClosed()
	assert.ErrorIs(t, <-done, ErrServerClosed)
	assert.Equal(t, 0, srv.Directory().Len())

	shutdown := logs.FilterMessage("SERVER_SHUTDOWN").All()
	require.Len(t, shutdown, 1)
	assert.Equal(t, []interface{}{"alice"}, shutdown[0].ContextMap()["users"])
}

func TestServer_RegistrationLogsReceivers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv := New("").WithLogger(zap.New(core))
	addr := startServer(t, srv)

	register(t, addr, "alice")
	register(t, addr, "bob")

	registered := logs.FilterMessage("USER_REGISTERED").All()
	require.Len(t, registered, 2)
	assert.EqualValues(t, 1, registered[0].ContextMap()["receivers"])
	assert.EqualValues(t, 2, registered[1].ContextMap()["receivers"])
	assert.Equal(t, "bob", registered[1].ContextMap()["user"])
}

func TestServer_RateLimitedStillDelivers(t *testing.T) {
	srv := New("").WithRateLimit(1000, 5)
	addr := startServer(t, srv)

	alice := register(t, addr, "alice")
	for i := 0; i < 10; i++ {
		alice.send(fmt.Sprintf("%d", i))
	}
	for i := 0; i < 10; i++ {
		alice.expect(fmt.Sprintf("alice: %d\n", i))
	}
}

// =============================================================================
// LAG TESTS
// =============================================================================

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// pipeConn gives each end of a net.Pipe a distinct peer address.
type pipeConn struct {
	net.Conn
	remote fakeAddr
}

func (c pipeConn) RemoteAddr() net.Addr { return c.remote }

func TestServer_LaggingReceiverSkipsAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := New("").WithCapacity(2).WithLogger(zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	slowClient, slowServer := net.Pipe()
	pubClient, pubServer := net.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		srv.handleConn(ctx, pipeConn{Conn: slowServer, remote: "10.0.0.1:1001"})
	}()
	go func() {
		defer wg.Done()
		srv.handleConn(ctx, pipeConn{Conn: pubServer, remote: "10.0.0.2:1002"})
	}()
	defer func() {
		cancel()
		slowClient.Close()
		pubClient.Close()
		wg.Wait()
	}()

	slow := &client{t: t, conn: slowClient, r: bufio.NewReader(slowClient)}
	pub := &client{t: t, conn: pubClient, r: bufio.NewReader(pubClient)}

	slow.send("username:slow")
	slow.expect("Welcome to the chat, slow!\n")
	pub.send("username:pub")
	pub.expect("Welcome to the chat, pub!\n")

	// Keep the publisher's own copies flowing.
	go func() {
		for {
			if _, err := pub.r.ReadString('\n'); err != nil {
				return
			}
		}
	}()

	for i := 1; i <= 10; i++ {
		pub.send(fmt.Sprintf("m%d", i))
	}
	require.Eventually(t, func() bool { return srv.messages.Sent() == 10 },
		ioTimeout, 5*time.Millisecond)

	var got []string
	require.NoError(t, slowClient.SetReadDeadline(time.Now().Add(ioTimeout)))
	for {
		line, err := slow.r.ReadString('\n')
		require.NoError(t, err)
		got = append(got, line)
		if line == "pub: m10\n" {
			break
		}
	}

	assert.Less(t, len(got), 10, "slow receiver should have skipped messages: %q", got)
	assert.GreaterOrEqual(t, logs.FilterMessage("RECEIVER_LAGGED").Len(), 1)

	// The lagging connection is still usable.
	slow.send("still here")
	slow.expect("slow: still here\n")
}
