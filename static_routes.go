package switchboard

import (
	"fmt"
	"strings"
)

// StaticRoute matches one exact (method, path) pair.
type StaticRoute struct {
	Route
	key string
}

func (r *StaticRoute) routeKey() string { return r.key }

// StaticRoutes is the exact-match route table. Paths are compared after
// normalization, so "/Hello", "/hello/" and "hello" are the same route.
type StaticRoutes struct {
	table routeTable[*StaticRoute]
}

// NewStaticRoutes returns an empty table.
func NewStaticRoutes() *StaticRoutes {
	return &StaticRoutes{}
}

// Add registers handler for method and path. Adding a route whose
// normalized key already exists is a no-op.
func (s *StaticRoutes) Add(method, path string, handler Handler, opts ...RouteOption) error {
	method = normalizeMethod(method)
	if method == "" {
		return fmt.Errorf("add static route %q: empty method: %w", path, ErrInvalidConfig)
	}
	if handler == nil {
		return fmt.Errorf("add static route %s %s: %w", method, path, ErrNilHandler)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("add static route %s: empty path: %w", method, ErrInvalidConfig)
	}

	norm := normalizePath(path)
	r := &StaticRoute{
		Route: newRoute(method, norm, handler, opts),
		key:   consolidatedKey(method, norm),
	}
	s.table.add(r)
	return nil
}

// Remove deletes the route for method and path, if any.
func (s *StaticRoutes) Remove(method, path string) bool {
	return s.table.remove(consolidatedKey(normalizeMethod(method), normalizePath(path)))
}

// Exists reports whether a route is registered for method and path.
func (s *StaticRoutes) Exists(method, path string) bool {
	_, ok := s.table.get(consolidatedKey(normalizeMethod(method), normalizePath(path)))
	return ok
}

// Match returns the route registered for method and path.
func (s *StaticRoutes) Match(method, path string) (*StaticRoute, bool) {
	return s.table.get(consolidatedKey(normalizeMethod(method), normalizePath(path)))
}

// All returns the routes in declaration order.
func (s *StaticRoutes) All() []*StaticRoute {
	return s.table.list()
}

// Len returns the number of routes.
func (s *StaticRoutes) Len() int {
	return s.table.len()
}
