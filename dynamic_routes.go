package switchboard

import (
	"fmt"
	"regexp"
	"strings"
)

// DynamicRoute matches a regular expression against "<METHOD> <path>".
type DynamicRoute struct {
	Route
	Pattern *regexp.Regexp
	key     string
}

func (r *DynamicRoute) routeKey() string { return r.key }

// DynamicRoutes is the regular-expression route table. Patterns are tried
// in declaration order and the first match wins.
type DynamicRoutes struct {
	table routeTable[*DynamicRoute]
}

// NewDynamicRoutes returns an empty table.
func NewDynamicRoutes() *DynamicRoutes {
	return &DynamicRoutes{}
}

// Add registers handler for method and pattern. Leading "^" anchors are
// stripped; the pattern is matched from the start of the request path.
// Adding a pattern whose key already exists is a no-op.
func (d *DynamicRoutes) Add(method, pattern string, handler Handler, opts ...RouteOption) error {
	method = normalizeMethod(method)
	if method == "" {
		return fmt.Errorf("add dynamic route %q: empty method: %w", pattern, ErrInvalidConfig)
	}
	if handler == nil {
		return fmt.Errorf("add dynamic route %s %s: %w", method, pattern, ErrNilHandler)
	}

	stripped := stripAnchor(pattern)
	if stripped == "" {
		return fmt.Errorf("add dynamic route %s: empty pattern: %w", method, ErrInvalidConfig)
	}
	re, err := regexp.Compile("^" + regexp.QuoteMeta(method) + " (?:" + stripped + ")")
	if err != nil {
		return fmt.Errorf("add dynamic route %s %s: %w: %w", method, pattern, ErrInvalidPattern, err)
	}

	r := &DynamicRoute{
		Route:   newRoute(method, stripped, handler, opts),
		Pattern: re,
		key:     consolidatedKey(method, stripped),
	}
	d.table.add(r)
	return nil
}

// Remove deletes the route for method and pattern, if any.
func (d *DynamicRoutes) Remove(method, pattern string) bool {
	return d.table.remove(consolidatedKey(normalizeMethod(method), stripAnchor(pattern)))
}

// Exists reports whether a route is registered for method and pattern.
func (d *DynamicRoutes) Exists(method, pattern string) bool {
	_, ok := d.table.get(consolidatedKey(normalizeMethod(method), stripAnchor(pattern)))
	return ok
}

// Match returns the first route whose pattern matches "<METHOD> <path>",
// with any named capture groups as parameters. path is the escaped request
// path.
func (d *DynamicRoutes) Match(method, path string) (*DynamicRoute, map[string]string, bool) {
	target := consolidatedKey(normalizeMethod(method), path)
	var groups []string
	r, ok := d.table.first(func(r *DynamicRoute) bool {
		groups = r.Pattern.FindStringSubmatch(target)
		return groups != nil
	})
	if !ok {
		return nil, nil, false
	}

	params := map[string]string{}
	for i, name := range r.Pattern.SubexpNames() {
		if name != "" && i < len(groups) {
			params[name] = groups[i]
		}
	}
	return r, params, true
}

// All returns the routes in declaration order.
func (d *DynamicRoutes) All() []*DynamicRoute {
	return d.table.list()
}

// Len returns the number of routes.
func (d *DynamicRoutes) Len() int {
	return d.table.len()
}

func stripAnchor(pattern string) string {
	return strings.TrimLeft(strings.TrimSpace(pattern), "^")
}
