package switchboard

import (
	"context"

	"github.com/google/uuid"
)

// RouteKind names the stage of the pipeline that claimed a request.
type RouteKind string

const (
	RouteKindNone      RouteKind = ""
	RouteKindPreflight RouteKind = "preflight"
	RouteKindPreRoute  RouteKind = "pre-routing"
	RouteKindDenied    RouteKind = "access-denied"
	RouteKindAuth      RouteKind = "authentication"
	RouteKindContent   RouteKind = "content"
	RouteKindStatic    RouteKind = "static"
	RouteKindParameter RouteKind = "parameter"
	RouteKindDynamic   RouteKind = "dynamic"
	RouteKindDefault   RouteKind = "default"
)

// MatchedRoute describes the route that handled a request.
type MatchedRoute struct {
	Kind     RouteKind
	ID       uuid.UUID
	Method   string
	Path     string
	Metadata any

	// PreAuthentication is true when the route was found in the
	// pre-authentication group.
	PreAuthentication bool
}

// Context is the unit of work flowing through the pipeline. There is exactly
// one per request and it is never shared across requests.
type Context struct {
	ID       uuid.UUID
	Request  *Request
	Response *Response
	Route    MatchedRoute

	// Metadata is free-form state attached by hooks for later stages.
	Metadata map[string]any

	ctx context.Context
}

// Context returns the request's cancellation context. It is cancelled when
// the client disconnects or the server shuts down. The native listener
// notices a disconnect once the request body has been read.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Done is shorthand for Context().Done().
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Set stores a metadata value.
func (c *Context) Set(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	c.Metadata[key] = value
}

// Get returns a metadata value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// Handler processes a request. A returned error is routed to the exception
// handlers; it never reaches the connection layer.
type Handler func(c *Context) error

// ExceptionHandler handles an error returned (or a panic raised) by a Handler.
type ExceptionHandler func(c *Context, err error) error
