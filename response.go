package switchboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

type responseState int

const (
	stateUnsent responseState = iota
	stateSendingFixed
	stateSendingChunked
	stateClosed
)

const defaultBufferSize = 64 * 1024

// Response is the outbound half of a Context. It writes headers exactly once,
// then either a fixed Content-Length body or a chunked stream, then closes.
//
// A Response is owned by the goroutine processing its request and is not
// safe for concurrent use.
type Response struct {
	StatusCode        int
	StatusDescription string
	Headers           http.Header
	ContentType       string

	// ContentLength is advertised by Send(nil) on HEAD requests.
	ContentLength int64

	ctx          context.Context
	transport    Transport
	logger       *slog.Logger
	bufferSize   int
	headOnly     bool
	state        responseState
	bytesSent    int64
	disconnected bool
	aborted      bool
	onDisconnect func()
}

func newResponse(ctx context.Context, t Transport, defaults http.Header, headOnly bool, bufferSize int, logger *slog.Logger) *Response {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := defaults.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    h,
		ctx:        ctx,
		transport:  t,
		logger:     logger,
		bufferSize: bufferSize,
		headOnly:   headOnly,
	}
}

// HeadersSent reports whether the status line and headers were written.
func (r *Response) HeadersSent() bool {
	return r.state != stateUnsent
}

// Sent reports whether the response is complete.
func (r *Response) Sent() bool {
	return r.state == stateClosed
}

// ChunkedTransfer reports whether the response is being sent chunked.
func (r *Response) ChunkedTransfer() bool {
	return r.state == stateSendingChunked
}

// Disconnected reports whether the client went away during transmission.
func (r *Response) Disconnected() bool {
	return r.disconnected
}

// BytesSent is the number of payload bytes written so far.
func (r *Response) BytesSent() int64 {
	return r.bytesSent
}

// Send writes headers with a Content-Length of len(data), the payload, and
// closes the response. Send(nil) sends an empty body.
func (r *Response) Send(data []byte) error {
	if err := r.checkUnsent("send"); err != nil {
		return err
	}

	length := int64(len(data))
	if length == 0 && r.headOnly && r.ContentLength > 0 {
		length = r.ContentLength
	}
	if err := r.writeHeaders(false, length); err != nil {
		return err
	}
	if len(data) > 0 && !r.headOnly && bodyAllowedForStatus(r.StatusCode) {
		if err := r.write(data); err != nil {
			return err
		}
	}
	return r.Close()
}

// SendString is Send for string payloads.
func (r *Response) SendString(s string) error {
	return r.Send([]byte(s))
}

// SendJSON encodes v as the response body. Content-Type defaults to
// application/json.
func (r *Response) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if r.ContentType == "" && r.Headers.Get("Content-Type") == "" {
		r.ContentType = "application/json"
	}
	return r.Send(data)
}

// SendStream writes headers with a Content-Length of length, then copies
// exactly length bytes from body in buffer-sized reads, and closes. The
// request's cancellation signal is polled between reads.
func (r *Response) SendStream(body io.Reader, length int64) error {
	if err := r.checkUnsent("send stream"); err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("stream length %d: %w", length, ErrInvalidInput)
	}
	if err := r.writeHeaders(false, length); err != nil {
		return err
	}
	if r.headOnly || body == nil || length == 0 || !bodyAllowedForStatus(r.StatusCode) {
		return r.Close()
	}

	buf := make([]byte, min(int64(r.bufferSize), length))
	src := io.LimitReader(body, length)
	var copied int64
	for copied < length {
		if err := r.ctx.Err(); err != nil {
			return r.abort(err)
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := r.write(buf[:n]); err != nil {
				return err
			}
			copied += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			r.discard()
			return fmt.Errorf("read response stream: %w", rerr)
		}
	}
	if copied < length {
		r.discard()
		return fmt.Errorf("response stream ended after %d of %d bytes: %w", copied, length, io.ErrUnexpectedEOF)
	}
	return r.Close()
}

// SendChunk writes one chunk. The first call sends the headers with
// Transfer-Encoding: chunked and no Content-Length.
func (r *Response) SendChunk(data []byte) error {
	return r.sendChunk(NewChunk(data))
}

// SendChunkWithMetadata is SendChunk with a chunk extension on the frame line.
func (r *Response) SendChunkWithMetadata(data []byte, metadata string) error {
	c := NewChunk(data)
	c.Metadata = metadata
	return r.sendChunk(c)
}

// SendFinalChunk writes data as a last payload chunk when non-empty, then the
// zero-length terminating chunk, and closes the response.
func (r *Response) SendFinalChunk(data []byte) error {
	if len(data) > 0 || r.state == stateUnsent {
		if err := r.sendChunk(NewChunk(data)); err != nil {
			return err
		}
	}
	if r.state != stateSendingChunked {
		return r.misuse("send final chunk")
	}
	if !r.headOnly && bodyAllowedForStatus(r.StatusCode) {
		if err := r.transport.WriteChunk(FinalChunk()); err != nil {
			return r.disconnect(err)
		}
	}
	return r.Close()
}

func (r *Response) sendChunk(c Chunk) error {
	switch r.state {
	case stateUnsent:
		if err := r.writeHeaders(true, 0); err != nil {
			return err
		}
	case stateSendingChunked:
	default:
		return r.misuse("send chunk")
	}

	if err := r.ctx.Err(); err != nil {
		return r.abort(err)
	}
	// A zero-length data frame would read as the terminator.
	if c.Length == 0 || r.headOnly || !bodyAllowedForStatus(r.StatusCode) {
		return nil
	}
	if err := r.transport.WriteChunk(c); err != nil {
		return r.disconnect(err)
	}
	r.bytesSent += int64(c.Length)
	if err := r.transport.Flush(); err != nil {
		return r.disconnect(err)
	}
	return nil
}

// Close flushes and releases the transport. Closing an already closed
// response is a no-op, and a transport that already disconnected is logged
// rather than reported.
func (r *Response) Close() error {
	if r.state == stateClosed {
		return nil
	}
	r.state = stateClosed
	if err := r.transport.Close(); err != nil {
		if r.disconnected || errors.Is(err, ErrClientDisconnected) {
			r.logger.Debug("transport closed after disconnect", "err", err)
			return nil
		}
		return fmt.Errorf("close response: %w", err)
	}
	return nil
}

func (r *Response) checkUnsent(op string) error {
	if r.state == stateUnsent {
		return nil
	}
	r.logger.Error("response headers already sent", "op", op, "status", r.StatusCode)
	return fmt.Errorf("%s: %w", op, ErrHeadersAlreadySent)
}

func (r *Response) misuse(op string) error {
	if r.state == stateClosed {
		return fmt.Errorf("%s: %w", op, ErrResponseClosed)
	}
	r.logger.Error("response already sending with a fixed length", "op", op)
	return fmt.Errorf("%s: %w", op, ErrHeadersAlreadySent)
}

func (r *Response) writeHeaders(chunked bool, length int64) error {
	h := r.Headers.Clone()
	if r.ContentType != "" {
		h.Set("Content-Type", r.ContentType)
	}
	switch {
	case !bodyAllowedForStatus(r.StatusCode):
		h.Del("Content-Length")
		h.Del("Transfer-Encoding")
	case chunked:
		h.Del("Content-Length")
		h.Set("Transfer-Encoding", "chunked")
	default:
		h.Del("Transfer-Encoding")
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	}

	reason := r.StatusDescription
	if reason == "" {
		reason = StatusDescription(r.StatusCode)
	}

	if chunked {
		r.state = stateSendingChunked
	} else {
		r.state = stateSendingFixed
	}
	if err := r.transport.WriteHeader(r.StatusCode, reason, h); err != nil {
		return r.disconnect(err)
	}
	return nil
}

func (r *Response) write(p []byte) error {
	n, err := r.transport.Write(p)
	r.bytesSent += int64(n)
	if err != nil {
		return r.disconnect(err)
	}
	return nil
}

// abort stops a send because the request was cancelled.
func (r *Response) abort(cause error) error {
	r.logger.Debug("response aborted", "err", cause)
	return r.disconnect(cause)
}

// disconnect records a transport failure and releases the transport.
func (r *Response) disconnect(cause error) error {
	if !r.disconnected {
		r.disconnected = true
		if r.onDisconnect != nil {
			r.onDisconnect()
		}
	}
	r.discard()
	if errors.Is(cause, ErrClientDisconnected) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrClientDisconnected, cause)
}

// discard closes a response whose framing can no longer be completed.
func (r *Response) discard() {
	r.aborted = true
	if ct, ok := r.transport.(*connTransport); ok {
		ct.broken = true
		ct.keepAlive = false
	}
	if r.state == stateClosed {
		return
	}
	r.state = stateClosed
	if err := r.transport.Close(); err != nil {
		r.logger.Debug("transport close after failed send", "err", err)
	}
}

func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent:
		return false
	case status == http.StatusNotModified:
		return false
	}
	return true
}
