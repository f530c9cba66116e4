package switchboard

import (
	"fmt"
	"strings"
)

// ParameterRoute matches a path template such as /user/{id}.
type ParameterRoute struct {
	Route
	segments []templateSegment
	key      string
}

type templateSegment struct {
	literal string
	param   string
}

func (r *ParameterRoute) routeKey() string { return r.key }

// bind matches path segment-by-segment. Literal segments compare
// case-insensitively; placeholders bind non-empty values.
func (r *ParameterRoute) bind(path string) (map[string]string, bool) {
	parts := splitSegments(path)
	if len(parts) != len(r.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range r.segments {
		if seg.param == "" {
			if !strings.EqualFold(seg.literal, parts[i]) {
				return nil, false
			}
			continue
		}
		if parts[i] == "" {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string, len(r.segments))
		}
		params[seg.param] = parts[i]
	}
	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// ParameterRoutes is the path-template route table. When two templates
// match the same path, the one registered first wins.
type ParameterRoutes struct {
	table routeTable[*ParameterRoute]
}

// NewParameterRoutes returns an empty table.
func NewParameterRoutes() *ParameterRoutes {
	return &ParameterRoutes{}
}

// Add registers handler for method and template. Adding a template whose
// normalized key already exists is a no-op.
func (p *ParameterRoutes) Add(method, template string, handler Handler, opts ...RouteOption) error {
	method = normalizeMethod(method)
	if method == "" {
		return fmt.Errorf("add parameter route %q: empty method: %w", template, ErrInvalidConfig)
	}
	if handler == nil {
		return fmt.Errorf("add parameter route %s %s: %w", method, template, ErrNilHandler)
	}

	segments, err := parseTemplate(template)
	if err != nil {
		return fmt.Errorf("add parameter route %s %s: %w", method, template, err)
	}

	r := &ParameterRoute{
		Route:    newRoute(method, template, handler, opts),
		segments: segments,
		key:      consolidatedKey(method, normalizePath(template)),
	}
	p.table.add(r)
	return nil
}

// Remove deletes the route for method and template, if any.
func (p *ParameterRoutes) Remove(method, template string) bool {
	return p.table.remove(consolidatedKey(normalizeMethod(method), normalizePath(template)))
}

// Exists reports whether a route is registered for method and template.
func (p *ParameterRoutes) Exists(method, template string) bool {
	_, ok := p.table.get(consolidatedKey(normalizeMethod(method), normalizePath(template)))
	return ok
}

// Match returns the first route whose template binds path, together with
// the extracted parameters.
func (p *ParameterRoutes) Match(method, path string) (*ParameterRoute, map[string]string, bool) {
	method = normalizeMethod(method)
	var params map[string]string
	r, ok := p.table.first(func(r *ParameterRoute) bool {
		if r.Method != method {
			return false
		}
		bound, ok := r.bind(path)
		if ok {
			params = bound
		}
		return ok
	})
	if !ok {
		return nil, nil, false
	}
	return r, params, true
}

// All returns the routes in declaration order.
func (p *ParameterRoutes) All() []*ParameterRoute {
	return p.table.list()
}

// Len returns the number of routes.
func (p *ParameterRoutes) Len() int {
	return p.table.len()
}

func parseTemplate(template string) ([]templateSegment, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("empty template: %w", ErrInvalidConfig)
	}
	parts := splitSegments(template)
	segments := make([]templateSegment, 0, len(parts))
	seen := map[string]bool{}
	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.TrimSpace(part[1 : len(part)-1])
			if name == "" {
				return nil, fmt.Errorf("empty placeholder: %w", ErrInvalidConfig)
			}
			if seen[name] {
				return nil, fmt.Errorf("duplicate placeholder %q: %w", name, ErrInvalidConfig)
			}
			seen[name] = true
			segments = append(segments, templateSegment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return nil, fmt.Errorf("placeholder must span a whole segment: %q: %w", part, ErrInvalidConfig)
		}
		segments = append(segments, templateSegment{literal: part})
	}
	return segments, nil
}

func splitSegments(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
