package switchboard

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Endpoint is one side of a connection.
type Endpoint struct {
	IP   string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

// Request is the parsed inbound request as seen by the pipeline.
type Request struct {
	Method          string
	Path            string
	// RawPath is the path as sent on the wire, still escaped. Dynamic
	// routes match against it.
	RawPath         string
	RawQuery        string
	Query           url.Values
	Headers         http.Header
	Protocol        string
	Host            string
	ContentLength   int64
	ChunkedTransfer bool
	Source          Endpoint
	Destination     Endpoint
	Timestamp       time.Time
	Body            io.Reader

	// Params holds values bound by parameter and dynamic routes.
	Params map[string]string

	raw     *http.Request
	maxBody int64
}

func newRequest(r *http.Request, remote, local string, maxBody int64) *Request {
	req := &Request{
		Method:        strings.ToUpper(r.Method),
		Path:          r.URL.Path,
		RawPath:       r.URL.EscapedPath(),
		RawQuery:      r.URL.RawQuery,
		Query:         r.URL.Query(),
		Headers:       r.Header,
		Protocol:      r.Proto,
		Host:          r.Host,
		ContentLength: r.ContentLength,
		Source:        parseEndpoint(remote),
		Destination:   parseEndpoint(local),
		Timestamp:     time.Now(),
		Body:          r.Body,
		Params:        map[string]string{},
		raw:           r,
		maxBody:       maxBody,
	}
	if req.Path == "" {
		req.Path = "/"
	}
	if req.RawPath == "" {
		req.RawPath = req.Path
	}
	for _, te := range r.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			req.ChunkedTransfer = true
		}
	}
	if req.Body == nil {
		req.Body = http.NoBody
	}
	return req
}

func parseEndpoint(addr string) Endpoint {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{IP: addr}
	}
	p, _ := strconv.Atoi(port)
	return Endpoint{IP: host, Port: p}
}

// Param returns a value bound by the matched route, or "".
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string {
	return r.Headers.Get(name)
}

// QueryValue returns the first value of the named query parameter.
func (r *Request) QueryValue(name string) string {
	return r.Query.Get(name)
}

// URL returns the request target (path and query).
func (r *Request) URL() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// HTTPRequest returns the underlying net/http request.
func (r *Request) HTTPRequest() *http.Request {
	return r.raw
}

// ReadBody reads the whole request body, bounded by the server's
// maximum request body size.
func (r *Request) ReadBody() ([]byte, error) {
	body := r.Body
	if r.maxBody > 0 {
		body = io.LimitReader(r.Body, r.maxBody+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, ErrInvalidInput)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if r.maxBody > 0 && int64(len(data)) > r.maxBody {
		return nil, fmt.Errorf("request body exceeds %d bytes: %w", r.maxBody, ErrInvalidInput)
	}
	return data, nil
}

// ReadBodyString is ReadBody as a string.
func (r *Request) ReadBodyString() (string, error) {
	data, err := r.ReadBody()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
