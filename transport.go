package switchboard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Transport is the connection-level write primitive a Response sends through.
//
// WriteHeader is called at most once per response. WriteChunk receives frames
// in order; the transport is responsible for the byte-level framing.
type Transport interface {
	WriteHeader(statusCode int, reason string, header http.Header) error
	Write(p []byte) (int, error)
	WriteChunk(c Chunk) error
	Flush() error
	Close() error
}

// connTransport writes raw HTTP/1.1 messages to a network connection.
type connTransport struct {
	conn      net.Conn
	bw        *bufio.Writer
	keepAlive bool
	framing   bool // chunk framing; false for HTTP/1.0 peers
	broken    bool
	closed    bool
	timeout   time.Duration
}

func newConnTransport(conn net.Conn, bw *bufio.Writer, keepAlive, framing bool, timeout time.Duration) *connTransport {
	return &connTransport{
		conn:      conn,
		bw:        bw,
		keepAlive: keepAlive && framing,
		framing:   framing,
		timeout:   timeout,
	}
}

func (t *connTransport) WriteHeader(statusCode int, reason string, header http.Header) error {
	if header.Get("Date") == "" {
		header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if header.Get("Transfer-Encoding") == "chunked" && !t.framing {
		header.Del("Transfer-Encoding")
		t.keepAlive = false
	}
	if header.Get("Content-Length") == "" && header.Get("Transfer-Encoding") == "" && bodyAllowedForStatus(statusCode) {
		t.keepAlive = false
	}
	if t.keepAlive {
		header.Set("Connection", "keep-alive")
	} else {
		header.Set("Connection", "close")
	}

	t.armDeadline()
	if _, err := fmt.Fprintf(t.bw, "HTTP/1.1 %03d %s\r\n", statusCode, reason); err != nil {
		return t.fail(err)
	}
	if err := header.Write(t.bw); err != nil {
		return t.fail(err)
	}
	if _, err := io.WriteString(t.bw, "\r\n"); err != nil {
		return t.fail(err)
	}
	return nil
}

func (t *connTransport) Write(p []byte) (int, error) {
	t.armDeadline()
	n, err := t.bw.Write(p)
	if err != nil {
		return n, t.fail(err)
	}
	return n, nil
}

func (t *connTransport) WriteChunk(c Chunk) error {
	t.armDeadline()
	if !t.framing {
		if c.IsFinal {
			return nil
		}
		_, err := t.Write(c.Data)
		return err
	}
	if _, err := c.WriteTo(t.bw); err != nil {
		return t.fail(err)
	}
	return nil
}

func (t *connTransport) Flush() error {
	if t.broken {
		return ErrClientDisconnected
	}
	t.armDeadline()
	if err := t.bw.Flush(); err != nil {
		return t.fail(err)
	}
	return nil
}

// Close flushes the response. The connection itself stays open when the
// exchange may be reused for another request.
func (t *connTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.Flush()
	if !t.keepAlive || t.broken {
		if cerr := t.conn.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	return err
}

func (t *connTransport) reusable() bool {
	return t.keepAlive && !t.broken
}

func (t *connTransport) armDeadline() {
	if t.timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
}

func (t *connTransport) fail(err error) error {
	t.broken = true
	t.keepAlive = false
	return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
}

// responseWriterTransport adapts an http.ResponseWriter. net/http owns the
// chunk framing, so chunk metadata is not carried on this transport.
type responseWriterTransport struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	broken bool
}

func newResponseWriterTransport(w http.ResponseWriter) *responseWriterTransport {
	return &responseWriterTransport{w: w, rc: http.NewResponseController(w)}
}

func (t *responseWriterTransport) WriteHeader(statusCode int, _ string, header http.Header) error {
	dst := t.w.Header()
	for k, v := range header {
		dst[k] = v
	}
	t.w.WriteHeader(statusCode)
	return nil
}

func (t *responseWriterTransport) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.broken = true
		return n, fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}
	return n, nil
}

func (t *responseWriterTransport) WriteChunk(c Chunk) error {
	if c.IsFinal || len(c.Data) == 0 {
		return nil
	}
	if _, err := t.Write(c.Data); err != nil {
		return err
	}
	return t.Flush()
}

func (t *responseWriterTransport) Flush() error {
	if t.broken {
		return ErrClientDisconnected
	}
	if err := t.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		t.broken = true
		return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}
	return nil
}

func (t *responseWriterTransport) Close() error {
	return t.Flush()
}
