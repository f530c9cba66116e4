package switchboard

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Route is the part every route variant shares.
type Route struct {
	ID               uuid.UUID
	Method           string
	Path             string
	Handler          Handler
	ExceptionHandler ExceptionHandler
	Metadata         any
}

// RouteOption configures a route at registration.
type RouteOption func(*Route)

// WithExceptionHandler sets a per-route exception handler. It takes
// precedence over Routes.Exception.
func WithExceptionHandler(h ExceptionHandler) RouteOption {
	return func(r *Route) {
		r.ExceptionHandler = h
	}
}

// WithMetadata attaches opaque user metadata to a route.
func WithMetadata(v any) RouteOption {
	return func(r *Route) {
		r.Metadata = v
	}
}

// WithID sets the route identifier instead of a generated one.
func WithID(id uuid.UUID) RouteOption {
	return func(r *Route) {
		r.ID = id
	}
}

func newRoute(method, path string, h Handler, opts []RouteOption) Route {
	r := Route{
		ID:      uuid.New(),
		Method:  method,
		Path:    path,
		Handler: h,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// keyed is implemented by every route variant stored in a routeTable.
type keyed interface {
	routeKey() string
}

// routeTable is an ordered, copy-on-write route collection. Writers are
// serialized by mu and publish a fresh snapshot; readers load the current
// snapshot without locking and never observe a partial mutation.
type routeTable[R keyed] struct {
	mu   sync.Mutex
	snap atomic.Pointer[routeSnapshot[R]]
}

type routeSnapshot[R keyed] struct {
	routes []R
	index  map[string]R
}

func (t *routeTable[R]) load() *routeSnapshot[R] {
	if s := t.snap.Load(); s != nil {
		return s
	}
	return &routeSnapshot[R]{}
}

// add appends r in declaration order. It reports false, leaving the table
// unchanged, when a route with the same key exists.
func (t *routeTable[R]) add(r R) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.load()
	key := r.routeKey()
	if _, ok := cur.index[key]; ok {
		return false
	}

	next := &routeSnapshot[R]{
		routes: make([]R, 0, len(cur.routes)+1),
		index:  make(map[string]R, len(cur.routes)+1),
	}
	next.routes = append(next.routes, cur.routes...)
	next.routes = append(next.routes, r)
	for k, v := range cur.index {
		next.index[k] = v
	}
	next.index[key] = r
	t.snap.Store(next)
	return true
}

func (t *routeTable[R]) remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.load()
	if _, ok := cur.index[key]; !ok {
		return false
	}

	next := &routeSnapshot[R]{
		routes: make([]R, 0, len(cur.routes)),
		index:  make(map[string]R, len(cur.routes)),
	}
	for _, r := range cur.routes {
		if r.routeKey() == key {
			continue
		}
		next.routes = append(next.routes, r)
		next.index[r.routeKey()] = r
	}
	t.snap.Store(next)
	return true
}

func (t *routeTable[R]) get(key string) (R, bool) {
	r, ok := t.load().index[key]
	return r, ok
}

// first returns the earliest-registered route accepted by match.
func (t *routeTable[R]) first(match func(R) bool) (R, bool) {
	for _, r := range t.load().routes {
		if match(r) {
			return r, true
		}
	}
	var zero R
	return zero, false
}

func (t *routeTable[R]) list() []R {
	routes := t.load().routes
	out := make([]R, len(routes))
	copy(out, routes)
	return out
}

func (t *routeTable[R]) len() int {
	return len(t.load().routes)
}

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// normalizePath case-folds p and gives it exactly one leading and one
// trailing slash.
func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.ToLower(trimmed) + "/"
}

func consolidatedKey(method, path string) string {
	return method + " " + path
}
