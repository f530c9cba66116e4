package switchboard

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

var pastDeadline = time.Unix(1, 0)

// connReader sits between a native connection and its bufio.Reader. Once a
// request body has been consumed it keeps a one-byte read pending on the
// connection, so a client that goes away cancels the request context while
// the handler is still running.
type connReader struct {
	conn net.Conn

	mu      sync.Mutex
	cond    *sync.Cond
	inRead  bool
	aborted bool
	hasByte bool
	byteBuf [1]byte
	cancel  context.CancelFunc
}

func newConnReader(conn net.Conn) *connReader {
	cr := &connReader{conn: conn}
	cr.cond = sync.NewCond(&cr.mu)
	return cr
}

func (cr *connReader) Read(p []byte) (int, error) {
	cr.mu.Lock()
	for cr.inRead {
		cr.cond.Wait()
	}
	if len(p) == 0 {
		cr.mu.Unlock()
		return 0, nil
	}
	if cr.hasByte {
		p[0] = cr.byteBuf[0]
		cr.hasByte = false
		cr.mu.Unlock()
		return 1, nil
	}
	cr.inRead = true
	cr.mu.Unlock()

	n, err := cr.conn.Read(p)

	cr.mu.Lock()
	cr.inRead = false
	cr.cond.Broadcast()
	cr.mu.Unlock()
	return n, err
}

// watch starts the background read. cancel runs if the read fails for any
// reason other than abortWatch.
func (cr *connReader) watch(cancel context.CancelFunc) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cr.inRead || cr.hasByte {
		return
	}
	cr.inRead = true
	cr.cancel = cancel
	_ = cr.conn.SetReadDeadline(time.Time{})
	go cr.backgroundRead()
}

func (cr *connReader) backgroundRead() {
	n, err := cr.conn.Read(cr.byteBuf[:])

	cr.mu.Lock()
	if n == 1 {
		// Pipelined data for the next request.
		cr.hasByte = true
	}
	if err != nil && !cr.aborted && cr.cancel != nil {
		cr.cancel()
	}
	cr.aborted = false
	cr.cancel = nil
	cr.inRead = false
	cr.cond.Broadcast()
	cr.mu.Unlock()
}

// abortWatch stops a pending background read and waits for it to return.
func (cr *connReader) abortWatch() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if !cr.inRead {
		return
	}
	cr.aborted = true
	_ = cr.conn.SetReadDeadline(pastDeadline)
	for cr.inRead {
		cr.cond.Wait()
	}
	_ = cr.conn.SetReadDeadline(time.Time{})
}

// eofBody runs onEOF the first time the wrapped body reports io.EOF.
type eofBody struct {
	io.ReadCloser
	once  sync.Once
	onEOF func()
}

func (b *eofBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.once.Do(b.onEOF)
	}
	return n, err
}
