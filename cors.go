package switchboard

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSPreflight returns a Preflight handler answering OPTIONS requests with
// the policy in opts.
func CORSPreflight(opts cors.Options) Handler {
	policy := cors.New(opts)
	h := FromHTTPHandler(policy.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	return func(c *Context) error {
		clearCORSHeaders(c.Response.Headers)
		return h(c)
	}
}

// CORSHeaders returns a PreRouting hook that decorates non-preflight
// responses with the policy in opts. It never ends the request.
func CORSHeaders(opts cors.Options) Handler {
	policy := cors.New(opts).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	return func(c *Context) error {
		clearCORSHeaders(c.Response.Headers)
		policy.ServeHTTP(headerWriter(c.Response.Headers), c.Request.HTTPRequest())
		return nil
	}
}

// clearCORSHeaders drops the permissive defaults so the policy alone
// decides what is advertised.
func clearCORSHeaders(h http.Header) {
	for k := range h {
		if strings.HasPrefix(k, "Access-Control-") {
			h.Del(k)
		}
	}
}

// headerWriter collects headers and discards everything else.
type headerWriter http.Header

func (w headerWriter) Header() http.Header       { return http.Header(w) }
func (headerWriter) Write(p []byte) (int, error) { return len(p), nil }
func (headerWriter) WriteHeader(int)             {}
