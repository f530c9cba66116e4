package switchboard

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/sagarc03/switchboard/filesystem"
)

// dispatch runs one request through the pipeline:
// preflight, pre-routing, access control, pre-authentication routes,
// authentication, post-authentication routes, default, post-routing.
func (s *Server) dispatch(c *Context) {
	start := time.Now()
	s.Events.requestReceived(c)
	if s.Settings.Debug.Requests {
		s.logger().Debug("request received",
			"request_id", c.ID.String(),
			"remote", c.Request.Source.String(),
			"method", c.Request.Method,
			"path", c.Request.Path,
			"protocol", c.Request.Protocol,
		)
	}

	defer func() {
		s.finish(c)
		if s.Routes.PostRouting != nil {
			if err := s.call(c, s.Routes.PostRouting); err != nil {
				s.logger().Error("post-routing hook failed", "request_id", c.ID.String(), "err", err)
			}
		}
		elapsed := time.Since(start)
		if s.Settings.Debug.Responses {
			s.logger().Debug("response sent",
				"request_id", c.ID.String(),
				"status", c.Response.StatusCode,
				"bytes", c.Response.BytesSent(),
				"chunked", c.Response.ChunkedTransfer(),
				"route", string(c.Route.Kind),
				"elapsed", elapsed,
			)
		}
		s.Events.responseSent(c, elapsed)
	}()

	s.route(c)
}

func (s *Server) route(c *Context) {
	routes := s.Routes

	if c.Request.Method == http.MethodOptions && routes.Preflight != nil {
		c.Route = MatchedRoute{Kind: RouteKindPreflight}
		s.invoke(c, routes.Preflight, nil)
		return
	}

	if routes.PreRouting != nil && !s.hook(c, RouteKindPreRoute, routes.PreRouting) {
		return
	}

	if !s.permitted(c) {
		return
	}

	if s.matchGroup(c, routes.PreAuthentication, true) {
		return
	}

	if routes.AuthenticateRequest != nil && !s.hook(c, RouteKindAuth, routes.AuthenticateRequest) {
		return
	}

	if s.matchGroup(c, routes.PostAuthentication, false) {
		return
	}

	c.Route = MatchedRoute{Kind: RouteKindDefault}
	if s.Settings.Debug.Routing {
		s.logger().Debug("no route matched", "request_id", c.ID.String(), "method", c.Request.Method, "path", c.Request.Path)
	}
	if routes.Default != nil {
		s.invoke(c, routes.Default, nil)
		return
	}
	s.invoke(c, NotFound, nil)
}

// hook runs a pipeline hook and reports whether processing continues. A hook
// ends the request by sending a response or by failing.
func (s *Server) hook(c *Context, kind RouteKind, h Handler) bool {
	if err := s.call(c, h); err != nil {
		c.Route = MatchedRoute{Kind: kind}
		s.exception(c, nil, err)
		return false
	}
	if c.Response.HeadersSent() {
		c.Route = MatchedRoute{Kind: kind}
		if s.Settings.Debug.Routing {
			s.logger().Debug("request terminated by hook", "request_id", c.ID.String(), "hook", string(kind))
		}
		return false
	}
	return true
}

func (s *Server) permitted(c *Context) bool {
	if s.Settings.AccessControl == nil {
		return true
	}
	ip := c.Request.Source.IP
	ok, err := s.Settings.AccessControl.Permit(ip)
	if err != nil {
		s.logger().Warn("access control check failed", "ip", ip, "err", err)
		ok = false
	}
	if ok {
		if s.Settings.Debug.AccessControl {
			s.logger().Debug("request permitted", "request_id", c.ID.String(), "ip", ip)
		}
		return true
	}

	c.Route = MatchedRoute{Kind: RouteKindDenied}
	s.logger().Info("request denied",
		"request_id", c.ID.String(),
		"ip", ip,
		"method", c.Request.Method,
		"path", c.Request.Path,
	)
	s.Events.requestDenied(c)

	if err := WriteError(c, s.Settings.denyStatus(), "access_denied", "Access denied"); err != nil && !errors.Is(err, ErrClientDisconnected) {
		s.logger().Error("write access denied response", "request_id", c.ID.String(), "err", err)
	}
	return false
}

// matchGroup searches g in content, static, parameter, dynamic order and
// invokes the first match.
func (s *Server) matchGroup(c *Context, g *RoutingGroup, preAuth bool) bool {
	if g == nil {
		return false
	}
	method, path := c.Request.Method, c.Request.Path

	if g.Content != nil && (method == http.MethodGet || method == http.MethodHead) {
		if r, ok := g.Content.Match(path); ok {
			s.matched(c, MatchedRoute{Kind: RouteKindContent, ID: r.ID, Method: method, Path: r.Path, Metadata: r.Metadata, PreAuthentication: preAuth})
			content := g.Content
			s.invoke(c, func(c *Context) error { return serveContent(c, content) }, nil)
			return true
		}
	}

	if g.Static != nil {
		if r, ok := g.Static.Match(method, path); ok {
			s.matched(c, MatchedRoute{Kind: RouteKindStatic, ID: r.ID, Method: r.Method, Path: r.Path, Metadata: r.Metadata, PreAuthentication: preAuth})
			s.invoke(c, r.Handler, r.ExceptionHandler)
			return true
		}
	}

	if g.Parameter != nil {
		if r, params, ok := g.Parameter.Match(method, path); ok {
			c.Request.Params = params
			s.matched(c, MatchedRoute{Kind: RouteKindParameter, ID: r.ID, Method: r.Method, Path: r.Path, Metadata: r.Metadata, PreAuthentication: preAuth})
			s.invoke(c, r.Handler, r.ExceptionHandler)
			return true
		}
	}

	if g.Dynamic != nil {
		if r, params, ok := g.Dynamic.Match(method, c.Request.RawPath); ok {
			c.Request.Params = params
			s.matched(c, MatchedRoute{Kind: RouteKindDynamic, ID: r.ID, Method: r.Method, Path: r.Path, Metadata: r.Metadata, PreAuthentication: preAuth})
			s.invoke(c, r.Handler, r.ExceptionHandler)
			return true
		}
	}

	return false
}

func (s *Server) matched(c *Context, m MatchedRoute) {
	c.Route = m
	if s.Settings.Debug.Routing {
		s.logger().Debug("route matched",
			"request_id", c.ID.String(),
			"kind", string(m.Kind),
			"route", m.Path,
			"pre_authentication", m.PreAuthentication,
		)
	}
}

func (s *Server) invoke(c *Context, h Handler, eh ExceptionHandler) {
	if err := s.call(c, h); err != nil {
		s.exception(c, eh, err)
	}
}

// call runs h, converting a panic into an error.
func (s *Server) call(c *Context, h Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				// The handler gave up on the response. The listener drops
				// the connection once dispatch returns.
				s.logger().Debug("handler aborted", "request_id", c.ID.String())
				c.Response.discard()
				err = errHandlerAborted
				return
			}
			s.logger().Error("handler panic", "request_id", c.ID.String(), "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(c)
}

func (s *Server) callException(c *Context, eh ExceptionHandler, cause error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger().Error("exception handler panic", "request_id", c.ID.String(), "panic", rec)
			err = fmt.Errorf("exception handler panic: %v", rec)
		}
	}()
	return eh(c, cause)
}

// exception handles a failed handler: the route's exception handler, then
// the global one, then a generic 500.
func (s *Server) exception(c *Context, eh ExceptionHandler, err error) {
	if errors.Is(err, ErrClientDisconnected) {
		s.logger().Debug("request ended by disconnect", "request_id", c.ID.String(), "err", err)
		return
	}
	if errors.Is(err, errHandlerAborted) {
		return
	}

	s.logger().Error("request failed",
		"request_id", c.ID.String(),
		"method", c.Request.Method,
		"path", c.Request.Path,
		"err", err,
	)
	s.Events.exceptionEncountered(c, err)

	if c.Response.HeadersSent() {
		if !c.Response.Sent() {
			// Mid-stream failure; the framing cannot be completed honestly.
			c.Response.discard()
		}
		return
	}

	if eh == nil {
		eh = s.Routes.Exception
	}
	if eh != nil {
		if herr := s.callException(c, eh, err); herr != nil && !errors.Is(herr, ErrClientDisconnected) {
			s.logger().Error("exception handler failed", "request_id", c.ID.String(), "err", herr)
		}
		if c.Response.HeadersSent() {
			return
		}
	}

	if werr := WriteError(c, http.StatusInternalServerError, "internal_error", "Internal server error"); werr != nil && !errors.Is(werr, ErrClientDisconnected) {
		s.logger().Error("write error response", "request_id", c.ID.String(), "err", werr)
	}
}

// finish completes a response the handler left open.
func (s *Server) finish(c *Context) {
	r := c.Response
	var err error
	switch r.state {
	case stateUnsent:
		err = r.Send(nil)
	case stateSendingChunked:
		err = r.SendFinalChunk(nil)
	case stateSendingFixed:
		err = r.Close()
	}
	if err != nil && !errors.Is(err, ErrClientDisconnected) {
		s.logger().Debug("complete response", "request_id", c.ID.String(), "err", err)
	}
}

func serveContent(c *Context, content *ContentRoutes) error {
	f, err := content.Open(c.Context(), c.Request.Path)
	if err != nil {
		switch {
		case errors.Is(err, filesystem.ErrInvalidPath):
			return WriteError(c, http.StatusBadRequest, "invalid_path", "Invalid path")
		case errors.Is(err, fs.ErrNotExist):
			return WriteError(c, http.StatusNotFound, "not_found", "File not found")
		default:
			return fmt.Errorf("open content %s: %w", c.Request.Path, err)
		}
	}
	defer func() { _ = f.Close() }()

	if c.Response.ContentType == "" {
		c.Response.ContentType = f.ContentType
	}
	if !f.ModTime.IsZero() {
		c.Response.Headers.Set("Last-Modified", f.ModTime.UTC().Format(http.TimeFormat))
	}
	if c.Request.Method == http.MethodHead {
		c.Response.ContentLength = f.Size
		return c.Response.Send(nil)
	}
	return c.Response.SendStream(f, f.Size)
}
