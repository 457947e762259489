// Package server is the network boundary of the tuner: it accepts one round
// per TCP connection, runs it through a tuner.Engine and writes back the
// partition to apply next.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachetune/tuner"
)

// maxRequestBytes bounds a single request.
const maxRequestBytes = 4096

// DefaultTimeout is the per-connection read/write deadline.
const DefaultTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithTimeout sets the per-connection deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithMetrics records malformed requests on m. Round metrics are reported
// through the engine's observers.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server drives engine rounds from TCP clients.
type Server struct {
	engine  *tuner.Engine
	pools   []string
	timeout time.Duration
	metrics *Metrics

	wg sync.WaitGroup
}

// New returns a Server in front of engine.
func New(engine *tuner.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		pools:   engine.Config().Pools,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve accepts connections on ln until ctx is cancelled, handling each on
// its own goroutine. It closes ln, waits for in-flight connections, and
// returns nil after cancellation or the accept error otherwise.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	logrus.Infof("listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logrus.Warnf("accept: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			_ = ln.Close()
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// handle runs one round for one connection. Malformed input is answered
// with the current partition. Before the first selection it is answered
// with the reported sizes when the size group is well formed, and not at
// all otherwise.
func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if s.timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	}
	remote := conn.RemoteAddr()

	raw, err := s.readRequest(conn)
	if err != nil {
		logrus.Warnf("%s: read: %v", remote, err)
		return
	}
	logrus.Debugf("%s: received %q", remote, raw)

	var sizes []int
	obs, err := ParseRequest(raw, s.pools)
	if err == nil {
		var d tuner.Decision
		if d, err = s.engine.Round(obs); err == nil {
			sizes = d.Arm
		}
	}
	if err != nil {
		logrus.Warnf("%s: %v", remote, err)
		if s.metrics != nil {
			s.metrics.Malformed()
		}
		cur, ok := s.engine.Current()
		if !ok {
			if cur, ok = ReportedSizes(raw, s.pools); !ok {
				return
			}
		}
		sizes = cur
	}

	reply := EncodeResponse(s.pools, sizes)
	if s.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	if _, err := io.WriteString(conn, reply); err != nil {
		logrus.Warnf("%s: write: %v", remote, err)
		return
	}
	logrus.Debugf("%s: sent %q", remote, reply)
}

// readRequest reads until the request holds all pairs, a newline arrives,
// the peer stops writing, or the deadline expires with data in hand.
func (s *Server) readRequest(conn net.Conn) (string, error) {
	want := groups * len(s.pools)
	var buf bytes.Buffer
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		buf.Write(chunk[:n])
		if bytes.Count(buf.Bytes(), []byte(";")) >= want || bytes.IndexByte(buf.Bytes(), '\n') >= 0 {
			return buf.String(), nil
		}
		if buf.Len() > maxRequestBytes {
			return "", errors.New("request too large")
		}
		if err != nil {
			var ne net.Error
			if buf.Len() > 0 && (errors.Is(err, io.EOF) || (errors.As(err, &ne) && ne.Timeout())) {
				return strings.TrimSpace(buf.String()), nil
			}
			return "", err
		}
	}
}
