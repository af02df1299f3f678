package server

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/aKV/rpc/client"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/transport/tcp"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

func testConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.InMemory = true
	config.Workers = 2
	config.ChunkSize = 2
	config.TickMillisecond = 1
	return config
}

// newTestServer opens a server without transport and runs its dispatch loop
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig())
}

func newTestServerWithConfig(t *testing.T, config common.ServerConfig) *Server {
	t.Helper()

	s := NewServer(config, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("failed to open server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = s.dispatcher.Run(ctx)
		close(stopped)
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
		s.Close()
	})
	return s
}

// connect runs a session on one end of a pipe and returns a client on the other
func connect(t *testing.T, s *Server) (*client.Client, net.Conn) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.ServeConn(serverSide)
		_ = serverSide.Close()
		close(done)
	}()

	config := common.DefaultClientConfig()
	c := client.NewClient(clientSide, config)
	t.Cleanup(func() {
		_ = c.Close()
		<-done
	})
	return c, clientSide
}

func do(t *testing.T, c *client.Client, name string, args ...string) *client.Result {
	t.Helper()
	res, err := c.Do(name, args...)
	if err != nil {
		t.Fatalf("%s %v: %v", name, args, err)
	}
	return res
}

func expectStatus(t *testing.T, c *client.Client, status string, name string, args ...string) {
	t.Helper()
	_, err := c.Do(name, args...)
	var se *client.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("%s %v: expected %s, got %v", name, args, status, err)
	}
	if se.Status != status {
		t.Errorf("%s %v: expected %s, got %s", name, args, status, se.Status)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSetGet(t *testing.T) {
	s := newTestServer(t)
	c, _ := connect(t, s)

	if res := do(t, c, "SET", "greeting", "hello world"); res.Value != "OK" {
		t.Errorf("SET returned %q", res.Value)
	}
	if res := do(t, c, "get", "greeting"); res.Value != "hello world" {
		t.Errorf("GET returned %q", res.Value)
	}
	expectStatus(t, c, "NOT_FOUND", "GET", "missing")
	expectStatus(t, c, "MISSING_ARGS", "GET")
	expectStatus(t, c, "INVALID_FORMAT", "NOPE", "x")
}

func TestChunkedScanOverWire(t *testing.T) {
	s := newTestServer(t)
	c, _ := connect(t, s)

	for i := 0; i < 5; i++ {
		do(t, c, "HSET", "h", "f"+strconv.Itoa(i), strconv.Itoa(i))
	}

	res := do(t, c, "HGETALL", "h")
	if !res.Vector || res.Len() != 5 {
		t.Fatalf("expected 5 elements, got %d", res.Len())
	}
	m := res.Map()
	for i := 0; i < 5; i++ {
		if m["f"+strconv.Itoa(i)] != strconv.Itoa(i) {
			t.Errorf("field f%d has value %q", i, m["f"+strconv.Itoa(i)])
		}
	}
	// chunk size 2: subs 0,0,1,1,2
	if last := res.Items[4].Sub; last != 2 {
		t.Errorf("expected the last element in chunk 2, got %d", last)
	}

	empty := do(t, c, "KEYS", "nothing*")
	if !empty.Vector || empty.Len() != 0 {
		t.Errorf("expected an empty vector result, got %+v", empty)
	}
}

func TestSelect(t *testing.T) {
	s := newTestServer(t)
	c, _ := connect(t, s)

	do(t, c, "SET", "k", "one")
	if res := do(t, c, "SELECT", "2"); res.Value != "2" {
		t.Errorf("SELECT returned %q", res.Value)
	}
	expectStatus(t, c, "NOT_FOUND", "GET", "k")
	do(t, c, "SET", "k", "two")

	do(t, c, "SELECT", "1")
	if res := do(t, c, "GET", "k"); res.Value != "one" {
		t.Errorf("select 1 holds %q", res.Value)
	}

	expectStatus(t, c, "INVALID_RANGE", "SELECT", "0")
	expectStatus(t, c, "INVALID_RANGE", "SELECT", "101")
	expectStatus(t, c, "MISSING_ARGS", "SELECT")
}

func TestPipelinedOrder(t *testing.T) {
	s := newTestServer(t)
	_, conn := connect(t, s)

	lines := "SET a 1\nINCR a\nSELECT 3\nGET a\nLPUSH l x y z\nLGET l\nINCR a\n"
	go func() { _, _ = conn.Write([]byte(lines)) }()

	want := []string{
		"OK SET :OK",
		"OK INCR :2",
		"OK SELECT :3",
		"ERR GET NOT_FOUND :entry not found",
		"OK LPUSH :3",
		"ITEM LGET 0 :z",
		"ITEM LGET 0 :y",
		"ITEM LGET 1 :x",
		"END LGET 3",
		"OK INCR :1",
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)
	for i, w := range want {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if line[:len(line)-1] != w {
			t.Errorf("line %d: got %q, want %q", i, line[:len(line)-1], w)
		}
	}
}

func TestResetAll(t *testing.T) {
	s := newTestServer(t)
	c, _ := connect(t, s)

	do(t, c, "SET", "k", "v")
	do(t, c, "EXPIRE", "k", "100")
	do(t, c, "FUTURE", "f", "100", "v")
	if res := do(t, c, "EXPCOUNT"); res.Value != "1" {
		t.Fatalf("EXPCOUNT returned %q", res.Value)
	}

	do(t, c, "RESETALL")

	if res := do(t, c, "EXPCOUNT"); res.Value != "0" {
		t.Errorf("EXPCOUNT after reset returned %q", res.Value)
	}
	if res := do(t, c, "FUTCOUNT"); res.Value != "0" {
		t.Errorf("FUTCOUNT after reset returned %q", res.Value)
	}
	// data survives, only the schedules are gone
	if res := do(t, c, "GET", "k"); res.Value != "v" {
		t.Errorf("GET after reset returned %q", res.Value)
	}
}

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	c, _ := connect(t, s)

	do(t, c, "SET", "k", "v")
	do(t, c, "SELECT", "7")

	m := do(t, c, "INFO").Map()
	if m["run_id"] != s.runID.String() {
		t.Errorf("unexpected run id %q", m["run_id"])
	}
	if m["select"] != "7" || m["workers"] != "2" || m["connections"] != "1" {
		t.Errorf("unexpected info: %v", m)
	}
	if _, ok := m["op.SET"]; !ok {
		t.Errorf("info misses the SET timer: %v", m)
	}
	if m["session_id"] == "" {
		t.Errorf("info misses the session id")
	}
}

func TestQuit(t *testing.T) {
	s := newTestServer(t)
	c, conn := connect(t, s)

	if res := do(t, c, "QUIT"); res.Value != "bye" {
		t.Errorf("QUIT returned %q", res.Value)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Errorf("expected the session to end after QUIT")
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.dispatcher.Connections() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection was not unregistered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLineTooLong(t *testing.T) {
	config := testConfig()
	config.MaxLineBytes = 64
	s := newTestServerWithConfig(t, config)
	_, conn := connect(t, s)

	long := make([]byte, 128)
	for i := range long {
		long[i] = 'x'
	}
	// the server stops reading mid line, the write only returns once the pipe is closed
	go func() { _, _ = conn.Write(append([]byte("SET k "), long...)) }()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "ERR * INVALID_FORMAT :line too long\n" {
		t.Errorf("unexpected reply %q", line)
	}
}

func TestServeTCP(t *testing.T) {
	config := testConfig()
	config.Endpoint = "127.0.0.1:0"
	config.LogLevel = "warn"

	s := NewServer(config, tcp.NewTCPServerTransport())
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server did not start listening")
		}
		time.Sleep(time.Millisecond)
	}

	clientConfig := common.DefaultClientConfig()
	clientConfig.Endpoint = s.Addr().String()
	c, err := client.Dial(clientConfig, tcp.NewTCPClientTransport())
	if err != nil {
		cancel()
		t.Fatalf("dial failed: %v", err)
	}

	if res := do(t, c, "PING"); res.Value != "PONG" {
		t.Errorf("PING returned %q", res.Value)
	}
	do(t, c, "RPUSH", "l", "a", "b", "c")
	if res := do(t, c, "LGET", "l"); len(res.Values()) != 3 || res.Values()[0] != "a" {
		t.Errorf("LGET returned %v", res.Values())
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
	_ = c.Close()
}
