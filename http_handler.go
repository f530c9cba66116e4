package switchboard

import (
	"net/http"
)

// FromHTTPHandler runs a net/http handler as a route handler. Output is
// buffered up to the configured IO buffer size and sent with a
// Content-Length; larger bodies, or a Flush, switch the response to chunked
// transfer. A handler that panics with http.ErrAbortHandler drops the
// connection without completing the response.
func FromHTTPHandler(h http.Handler) Handler {
	return func(c *Context) error {
		w := &handlerWriter{c: c}
		h.ServeHTTP(w, c.Request.HTTPRequest().WithContext(c.Context()))
		return w.finish()
	}
}

// FromHTTPHandlerFunc is FromHTTPHandler for plain functions.
func FromHTTPHandlerFunc(f func(http.ResponseWriter, *http.Request)) Handler {
	return FromHTTPHandler(http.HandlerFunc(f))
}

type handlerWriter struct {
	c           *Context
	wroteHeader bool
	streaming   bool
	buf         []byte
	err         error
}

var _ http.Flusher = (*handlerWriter)(nil)

func (w *handlerWriter) Header() http.Header {
	return w.c.Response.Headers
}

func (w *handlerWriter) WriteHeader(code int) {
	if w.wroteHeader || code < 100 || code > 999 {
		return
	}
	w.wroteHeader = true
	w.c.Response.StatusCode = code
}

func (w *handlerWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.WriteHeader(http.StatusOK)
	if w.streaming {
		if err := w.c.Response.SendChunk(p); err != nil {
			w.err = err
			return 0, err
		}
		return len(p), nil
	}

	w.buf = append(w.buf, p...)
	if len(w.buf) > w.c.Response.bufferSize {
		w.Flush()
		if w.err != nil {
			return 0, w.err
		}
	}
	return len(p), nil
}

func (w *handlerWriter) Flush() {
	if w.err != nil {
		return
	}
	w.WriteHeader(http.StatusOK)
	if !w.streaming {
		w.streaming = true
		if err := w.c.Response.SendChunk(w.buf); err != nil {
			w.err = err
		}
		w.buf = nil
	}
}

func (w *handlerWriter) finish() error {
	if w.err != nil {
		return w.err
	}
	if w.streaming {
		return w.c.Response.SendFinalChunk(nil)
	}
	if w.c.Response.HeadersSent() {
		return nil
	}
	if ct := w.c.Response.Headers.Get("Content-Type"); ct == "" && len(w.buf) > 0 {
		w.c.Response.ContentType = http.DetectContentType(w.buf)
	}
	return w.c.Response.Send(w.buf)
}
