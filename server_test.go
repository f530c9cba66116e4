package switchboard_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/switchboard"
)

func startNative(t *testing.T, s *switchboard.Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		assert.NoError(t, s.Shutdown(shutdownCtx))
		assert.NoError(t, <-done)
	})
	return ln.Addr().String()
}

// exchange writes a raw request and returns everything the server sends
// until it closes the connection.
func exchange(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(conn, request)
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func streamHandler(c *switchboard.Context) error {
	if err := c.Response.SendChunk([]byte("ab")); err != nil {
		return err
	}
	if err := c.Response.SendChunkWithMetadata([]byte("cde"), "sig=1"); err != nil {
		return err
	}
	return c.Response.SendFinalChunk(nil)
}

func TestServer_Native_FixedLength(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))
	addr := startNative(t, s)

	raw := exchange(t, addr, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")

	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"), raw)
	assert.Contains(t, raw, "Content-Length: 2\r\n")
	assert.Contains(t, raw, "Connection: close\r\n")
	assert.Contains(t, raw, "X-Request-Id: ")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nhi"), raw)
}

func TestServer_Native_ChunkedWireFormat(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", streamHandler))
	addr := startNative(t, s)

	raw := exchange(t, addr, "GET /stream HTTP/1.1\r\nHost: test\r\n\r\n")

	assert.Contains(t, raw, "Transfer-Encoding: chunked\r\n")
	assert.NotContains(t, raw, "Content-Length")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n2\r\nab\r\n3;sig=1\r\ncde\r\n0\r\n\r\n"), raw)
}

func TestServer_Native_ChunkedDecodes(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", streamHandler))
	addr := startNative(t, s)

	resp, err := http.Get("http://" + addr + "/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(body))
	assert.Equal(t, []string{"chunked"}, resp.TransferEncoding)
}

func TestServer_Native_HTTP10HasNoChunkFraming(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", streamHandler))
	addr := startNative(t, s)

	raw := exchange(t, addr, "GET /stream HTTP/1.0\r\n\r\n")

	assert.NotContains(t, raw, "Transfer-Encoding")
	assert.Contains(t, raw, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nabcde"), raw)
}

func TestServer_Native_HeadOmitsBody(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("HEAD", "/hello", func(c *switchboard.Context) error {
		c.Response.ContentLength = 42
		return c.Response.Send(nil)
	}))
	addr := startNative(t, s)

	raw := exchange(t, addr, "HEAD /hello HTTP/1.1\r\nHost: test\r\n\r\n")

	assert.Contains(t, raw, "Content-Length: 42\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n"), raw)
}

func TestServer_Native_KeepAlive(t *testing.T) {
	settings := switchboard.NewSettings("127.0.0.1", 0)
	settings.KeepAlive = true
	s, err := switchboard.NewServer(settings, nil)
	require.NoError(t, err)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", streamHandler))
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("POST", "/ignore", sendString("ignored")))
	addr := startNative(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	br := bufio.NewReader(conn)

	roundTrip := func(request, wantBody string) *http.Response {
		t.Helper()
		_, err := io.WriteString(conn, request)
		require.NoError(t, err)
		resp, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, wantBody, string(body))
		return resp
	}

	resp := roundTrip("GET /hello HTTP/1.1\r\nHost: test\r\n\r\n", "hi")
	assert.Equal(t, "keep-alive", resp.Header.Get("Connection"))

	resp = roundTrip("GET /stream HTTP/1.1\r\nHost: test\r\n\r\n", "abcde")
	assert.Equal(t, "keep-alive", resp.Header.Get("Connection"))

	// The unread request body is drained before the next request.
	roundTrip("POST /ignore HTTP/1.1\r\nHost: test\r\nContent-Length: 5\r\n\r\nhello", "ignored")

	resp = roundTrip("GET /hello HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n", "hi")
	assert.True(t, resp.Close)

	_, err = br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_Native_HandlerAbortDropsConnection(t *testing.T) {
	s := newTestServer(t)
	var exceptions atomic.Int32
	s.Events.ExceptionEncountered = func(*switchboard.Context, error) { exceptions.Add(1) }
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/abort", switchboard.FromHTTPHandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})))
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))
	addr := startNative(t, s)

	raw := exchange(t, addr, "GET /abort HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Empty(t, raw)
	assert.Zero(t, exceptions.Load())

	// The server is still up.
	raw = exchange(t, addr, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nhi"), raw)
}

func TestServer_Native_ClientDisconnectCancelsContext(t *testing.T) {
	tests := map[string]string{
		"no body":   "GET /wait HTTP/1.1\r\nHost: test\r\n\r\n",
		"read body": "POST /wait HTTP/1.1\r\nHost: test\r\nContent-Length: 5\r\n\r\nhello",
	}

	for name, request := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)
			cancelled := make(chan bool, 1)
			wait := func(c *switchboard.Context) error {
				if _, err := c.Request.ReadBody(); err != nil {
					return err
				}
				select {
				case <-c.Done():
					cancelled <- true
				case <-time.After(5 * time.Second):
					cancelled <- false
				}
				return nil
			}
			require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/wait", wait))
			require.NoError(t, s.Routes.PostAuthentication.Static.Add("POST", "/wait", wait))
			addr := startNative(t, s)

			conn, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			_, err = io.WriteString(conn, request)
			require.NoError(t, err)
			time.Sleep(100 * time.Millisecond)
			require.NoError(t, conn.Close())

			select {
			case ok := <-cancelled:
				assert.True(t, ok, "request context not cancelled after client closed")
			case <-time.After(10 * time.Second):
				t.Fatal("handler did not return")
			}
		})
	}
}

func TestServer_Native_RequestArrivingDuringHandler(t *testing.T) {
	settings := switchboard.NewSettings("127.0.0.1", 0)
	settings.KeepAlive = true
	s, err := switchboard.NewServer(settings, nil)
	require.NoError(t, err)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/slow", func(c *switchboard.Context) error {
		select {
		case <-c.Done():
			return c.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}
		return c.Response.SendString("slow")
	}))
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))
	addr := startNative(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	br := bufio.NewReader(conn)

	_, err = io.WriteString(conn, "GET /slow HTTP/1.1\r\nHost: test\r\n\r\n")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = io.WriteString(conn, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	require.NoError(t, err)

	for _, want := range []string{"slow", "hi"} {
		resp, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, string(body))
	}
}

// zeros is an endless body.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestServer_Native_DisconnectDuringSend(t *testing.T) {
	chunk := bytes.Repeat([]byte("x"), 32<<10)
	tests := map[string]switchboard.Handler{
		"chunked": func(c *switchboard.Context) error {
			for range 10000 {
				if err := c.Response.SendChunk(chunk); err != nil {
					return err
				}
			}
			return c.Response.SendFinalChunk(nil)
		},
		"stream": func(c *switchboard.Context) error {
			return c.Response.SendStream(zeros{}, 1<<30)
		},
	}

	for name, send := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)
			var disconnects, exceptions atomic.Int32
			s.Events.RequestorDisconnected = func(*switchboard.Context) { disconnects.Add(1) }
			s.Events.ExceptionEncountered = func(*switchboard.Context, error) { exceptions.Add(1) }
			s.Routes.Exception = func(*switchboard.Context, error) error {
				exceptions.Add(1)
				return nil
			}

			sendErr := make(chan error, 1)
			require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", func(c *switchboard.Context) error {
				err := send(c)
				sendErr <- err
				return err
			}, switchboard.WithExceptionHandler(func(*switchboard.Context, error) error {
				exceptions.Add(1)
				return nil
			})))
			addr := startNative(t, s)

			conn, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
			_, err = io.WriteString(conn, "GET /stream HTTP/1.1\r\nHost: test\r\n\r\n")
			require.NoError(t, err)
			line, err := bufio.NewReader(conn).ReadString('\n')
			require.NoError(t, err)
			assert.Equal(t, "HTTP/1.1 200 OK\r\n", line)
			require.NoError(t, conn.Close())

			select {
			case err := <-sendErr:
				assert.True(t, errors.Is(err, switchboard.ErrClientDisconnected), "send error: %v", err)
			case <-time.After(10 * time.Second):
				t.Fatal("handler kept sending after the client closed")
			}

			assert.Eventually(t, func() bool { return disconnects.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
			assert.Zero(t, exceptions.Load())
		})
	}
}

func TestServer_Native_MalformedRequest(t *testing.T) {
	s := newTestServer(t)
	addr := startNative(t, s)

	raw := exchange(t, addr, "NONSENSE\r\n\r\n")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 400 Bad Request\r\n"), raw)
}

func TestServer_Native_SourceEndpoint(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/whoami", func(c *switchboard.Context) error {
		return c.Response.SendString(c.Request.Source.IP)
	}))
	addr := startNative(t, s)

	raw := exchange(t, addr, "GET /whoami HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n127.0.0.1"), raw)
}

func TestServer_Native_ShutdownClosesIdleConnections(t *testing.T) {
	settings := switchboard.NewSettings("127.0.0.1", 0)
	settings.KeepAlive = true
	s, err := switchboard.NewServer(settings, nil)
	require.NoError(t, err)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))

	var started, stopped atomic.Bool
	s.Events.ServerStarted = func() { started.Store(true) }
	s.Events.ServerStopped = func() { stopped.Store(true) }

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	br := bufio.NewReader(conn)

	_, err = io.WriteString(conn, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	require.NoError(t, err)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-done)

	_, err = br.ReadByte()
	assert.Error(t, err)
	assert.True(t, started.Load())
	assert.True(t, stopped.Load())
}

func TestServer_Serve_AlreadyListening(t *testing.T) {
	s := newTestServer(t)
	started := make(chan struct{})
	s.Events.ServerStarted = func() { close(started) }
	startNative(t, s)
	<-started

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	err = s.Serve(context.Background(), ln)
	assert.ErrorIs(t, err, switchboard.ErrInvalidConfig)
}

func TestServer_Start_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	s, err := switchboard.NewServer(switchboard.NewSettings("127.0.0.1", port), nil)
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.ErrorContains(t, err, "listen")
}

func TestServer_ServeHTTP_RealServer(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/stream", streamHandler))
	require.NoError(t, s.Routes.PostAuthentication.Static.Add("GET", "/hello", sendString("hi")))
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stream")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "abcde", string(body))
	assert.Equal(t, []string{"chunked"}, resp.TransferEncoding)

	resp, err = http.Get(ts.URL + "/hello")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "hi", string(body))
	assert.Equal(t, int64(2), resp.ContentLength)
}
