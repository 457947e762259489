package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/cachetune/tuner"
)

// testConfig is a two-pool, five-arm space: (0,40) (10,30) (20,20) (30,10) (40,0).
func testConfig() tuner.Config {
	cfg := tuner.DefaultConfig()
	cfg.TotalUnits = 40
	cfg.Granularity = 10
	cfg.SampleTimes = 5
	return cfg
}

func startServer(t *testing.T, e *tuner.Engine, opts ...Option) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	opts = append([]Option{WithTimeout(2 * time.Second)}, opts...)
	go func() { done <- New(e, opts...).Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return ln.Addr().String()
}

func newEngine(t *testing.T, opts ...tuner.Option) *tuner.Engine {
	t.Helper()
	e, err := tuner.NewEngine(testConfig(), opts...)
	require.NoError(t, err)
	return e
}

// exchange sends one request and returns everything the server wrote back.
func exchange(t *testing.T, addr, req string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = io.WriteString(conn, req)
	require.NoError(t, err)
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(reply)
}

const (
	roundReq     = "WritePool:20;ReadPool:20;WritePool:5;ReadPool:5;WritePool:100;ReadPool:100;"
	malformedReq = "WritePool:abc;ReadPool:20;WritePool:5;ReadPool:5;WritePool:1;ReadPool:1;"
)

func TestServer_RoundTripFollowsSweep(t *testing.T) {
	// GIVEN a fresh server
	addr := startServer(t, newEngine(t))

	// WHEN two rounds are sent
	first := exchange(t, addr, roundReq)
	second := exchange(t, addr, roundReq)

	// THEN the replies walk the warm-up sweep
	assert.Equal(t, "WritePool ReadPool\n0 40", first)
	assert.Equal(t, "WritePool ReadPool\n10 30", second)
}

func TestServer_MalformedBeforeFirstSelectionClosesSilently(t *testing.T) {
	e := newEngine(t)
	addr := startServer(t, e)

	assert.Empty(t, exchange(t, addr, malformedReq))
	assert.Equal(t, 0, e.Snapshot().Round)
}

func TestServer_MalformedBeforeFirstSelectionEchoesReportedSizes(t *testing.T) {
	// GIVEN a fresh server
	e := newEngine(t)
	addr := startServer(t, e)

	// WHEN a request with valid sizes but a bad throughput arrives
	reply := exchange(t, addr, "WritePool:20;ReadPool:20;WritePool:fast;ReadPool:5;WritePool:1;ReadPool:1;")

	// THEN the client is told to keep its sizes and no round is counted
	assert.Equal(t, "WritePool ReadPool\n20 20", reply)
	assert.Equal(t, 0, e.Snapshot().Round)
	_, ok := e.Current()
	assert.False(t, ok)
}

func TestServer_MalformedAfterSelectionRepeatsCurrentArm(t *testing.T) {
	// GIVEN a server that already answered one round
	e := newEngine(t)
	addr := startServer(t, e)
	require.Equal(t, "WritePool ReadPool\n0 40", exchange(t, addr, roundReq))

	// WHEN a malformed request arrives
	reply := exchange(t, addr, malformedReq)

	// THEN the current partition is repeated and no round is counted
	assert.Equal(t, "WritePool ReadPool\n0 40", reply)
	assert.Equal(t, 1, e.Snapshot().Round)
}

func TestServer_ZeroThroughputEchoesReportedSizes(t *testing.T) {
	addr := startServer(t, newEngine(t))
	reply := exchange(t, addr, "WritePool:13;ReadPool:27;WritePool:0;ReadPool:0;WritePool:5;ReadPool:5;")
	assert.Equal(t, "WritePool ReadPool\n13 27", reply)
}

func TestServer_RequestWithoutTrailingSeparator(t *testing.T) {
	addr := startServer(t, newEngine(t))

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = io.WriteString(conn, "WritePool:20;ReadPool:20;WritePool:5;ReadPool:5;WritePool:100;ReadPool:100")
	require.NoError(t, err)
	// half-close marks the end of the request
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "WritePool ReadPool\n0 40", string(reply))
}

func TestServer_ConcurrentClientsEachGetOneRound(t *testing.T) {
	e := newEngine(t)
	addr := startServer(t, e)

	const clients = 12
	var wg sync.WaitGroup
	replies := make([]string, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			defer func() { _ = conn.Close() }()
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := io.WriteString(conn, roundReq); err != nil {
				t.Error(err)
				return
			}
			b, _ := io.ReadAll(conn)
			replies[i] = string(b)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, clients, e.Snapshot().Round)
	for _, r := range replies {
		_, sizes, err := ParseResponse(r)
		if assert.NoError(t, err) {
			assert.Equal(t, 40, sizes[0]+sizes[1])
		}
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(newEngine(t))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_, err = net.DialTimeout("tcp", ln.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err, "listener must be closed")
}
