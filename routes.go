package switchboard

import (
	"errors"
	"net/http"
)

// RoutingGroup bundles the four route tables searched as one unit, in the
// order Content, Static, Parameter, Dynamic.
type RoutingGroup struct {
	Content   *ContentRoutes
	Static    *StaticRoutes
	Parameter *ParameterRoutes
	Dynamic   *DynamicRoutes
}

// NewRoutingGroup returns a group of empty tables.
func NewRoutingGroup() *RoutingGroup {
	return &RoutingGroup{
		Content:   NewContentRoutes(),
		Static:    NewStaticRoutes(),
		Parameter: NewParameterRoutes(),
		Dynamic:   NewDynamicRoutes(),
	}
}

// Close releases the content base directory.
func (g *RoutingGroup) Close() error {
	if g == nil || g.Content == nil {
		return nil
	}
	return g.Content.Close()
}

// Routes holds the replaceable handler references of the pipeline.
//
// Routes in PreAuthentication are reachable without running
// AuthenticateRequest; PostAuthentication routes are searched after it.
type Routes struct {
	Preflight           Handler
	PreRouting          Handler
	PreAuthentication   *RoutingGroup
	AuthenticateRequest Handler
	PostAuthentication  *RoutingGroup
	Default             Handler
	Exception           ExceptionHandler
	PostRouting         Handler
}

// NewRoutes returns routes with the default preflight handler and empty
// routing groups. defaultRoute may be nil, in which case unmatched
// requests receive a 404.
func NewRoutes(defaultRoute Handler) *Routes {
	return &Routes{
		Preflight:          DefaultPreflight,
		PreAuthentication:  NewRoutingGroup(),
		PostAuthentication: NewRoutingGroup(),
		Default:            defaultRoute,
	}
}

// Close releases both routing groups.
func (r *Routes) Close() error {
	return errors.Join(r.PreAuthentication.Close(), r.PostAuthentication.Close())
}

// DefaultPreflight answers an OPTIONS request with the configured default
// headers (which carry the CORS headers), 200 and an empty body.
func DefaultPreflight(c *Context) error {
	c.Response.StatusCode = http.StatusOK
	return c.Response.Send(nil)
}

// NotFound is a Default handler that answers 404.
func NotFound(c *Context) error {
	return WriteError(c, http.StatusNotFound, "not_found", "No route matches "+c.Request.Method+" "+c.Request.Path)
}
