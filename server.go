package switchboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxDrainBytes bounds how much of an unread request body is discarded to
// keep a connection alive.
const maxDrainBytes = 256 << 10

// Server runs the dispatch pipeline for every request it receives, either
// from its own listener (Start, Serve) or as an http.Handler (ServeHTTP).
type Server struct {
	Settings *Settings
	Routes   *Routes
	Events   *Events

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer validates settings and returns a server whose unmatched
// requests go to defaultRoute (404 when nil).
func NewServer(settings *Settings, defaultRoute Handler) (*Server, error) {
	if settings == nil {
		settings = NewSettings("127.0.0.1", 8000)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}
	return &Server{
		Settings: settings,
		Routes:   NewRoutes(defaultRoute),
		Events:   &Events{},
		conns:    map[net.Conn]struct{}{},
	}, nil
}

func (s *Server) logger() *slog.Logger {
	return s.Settings.logger()
}

// Start listens on Settings.Addr and serves until ctx is cancelled or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Settings.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Settings.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, one goroutine per connection. It returns
// nil once ctx is cancelled or Shutdown closes the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Settings.Validate(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("serve: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		cancel()
		_ = ln.Close()
		return fmt.Errorf("serve: already listening on %s: %w", s.listener.Addr(), ErrInvalidConfig)
	}
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.mu.Lock()
		for conn := range s.conns {
			// Unblocks connections idle in ReadRequest; writes in flight continue.
			_ = conn.SetReadDeadline(time.Now())
		}
		s.mu.Unlock()
	}()

	s.logger().Info("server started", "addr", ln.Addr().String())
	s.Events.serverStarted()
	defer func() {
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
		cancel()
		s.logger().Info("server stopped", "addr", ln.Addr().String())
		s.Events.serverStopped()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger().Warn("accept timeout", "err", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting connections, cancels in-flight requests and
// waits for connection goroutines to exit. When ctx expires first, the
// remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// Close releases the content directories held by the route groups.
func (s *Server) Close() error {
	return s.Routes.Close()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if rec := recover(); rec != nil && rec != http.ErrAbortHandler {
			s.logger().Error("connection panic", "remote", conn.RemoteAddr().String(), "panic", rec, "stack", string(debug.Stack()))
		}
		_ = conn.Close()
	}()

	cfg := s.Settings.IO
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	cr := newConnReader(conn)
	br := bufio.NewReaderSize(cr, bufSize)
	bw := bufio.NewWriterSize(conn, bufSize)

	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		timeout := cfg.ReadTimeout
		if !first && cfg.IdleTimeout > 0 {
			timeout = cfg.IdleTimeout
		}
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}
		first = false

		req, err := http.ReadRequest(br)
		if err != nil {
			if !isConnEnd(err) {
				s.logger().Debug("malformed request", "remote", conn.RemoteAddr().String(), "err", err)
				_, _ = bw.WriteString("HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
				_ = bw.Flush()
			}
			return
		}
		if cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		}
		req.RemoteAddr = conn.RemoteAddr().String()

		reqCtx, cancel := context.WithCancel(ctx)
		req = req.WithContext(reqCtx)
		body := req.Body
		if body == nil || body == http.NoBody {
			cr.watch(cancel)
		} else {
			req.Body = &eofBody{ReadCloser: req.Body, onEOF: func() { cr.watch(cancel) }}
		}
		keepAlive := s.Settings.KeepAlive && !req.Close && ctx.Err() == nil
		t := newConnTransport(conn, bw, keepAlive, req.ProtoAtLeast(1, 1), cfg.WriteTimeout)

		c := s.newContext(reqCtx, req, t, conn.RemoteAddr().String(), conn.LocalAddr().String())
		s.dispatch(c)
		cr.abortWatch()
		cancel()

		if !t.reusable() {
			return
		}
		if body == nil {
			continue
		}
		n, err := io.CopyN(io.Discard, body, maxDrainBytes+1)
		_ = body.Close()
		if n > maxDrainBytes || (err != nil && !errors.Is(err, io.EOF)) {
			return
		}
	}
}

// ServeHTTP runs the pipeline inside a net/http server. net/http owns the
// connection and the chunk framing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if max := s.Settings.IO.MaxRequestBodySize; max > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, max)
	}

	local := ""
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		local = addr.String()
	}

	c := s.newContext(r.Context(), r, newResponseWriterTransport(w), r.RemoteAddr, local)
	s.dispatch(c)

	if c.Response.aborted {
		// Incomplete framing: let net/http drop the connection.
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) newContext(ctx context.Context, r *http.Request, t Transport, remote, local string) *Context {
	id, err := uuid.Parse(r.Header.Get("X-Request-ID"))
	if err != nil {
		id = uuid.New()
	}

	req := newRequest(r, remote, local, s.Settings.IO.MaxRequestBodySize)
	resp := newResponse(ctx, t, s.Settings.defaultHeader(), req.Method == http.MethodHead, s.Settings.IO.BufferSize, s.logger())

	c := &Context{
		ID:       id,
		Request:  req,
		Response: resp,
		Metadata: map[string]any{},
		ctx:      ctx,
	}
	resp.Headers.Set("X-Request-ID", id.String())
	resp.onDisconnect = func() {
		s.logger().Debug("requestor disconnected",
			"request_id", c.ID.String(),
			"remote", c.Request.Source.String(),
			"method", c.Request.Method,
			"path", c.Request.Path,
		)
		s.Events.requestorDisconnected(c)
	}
	return c
}

func isConnEnd(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
