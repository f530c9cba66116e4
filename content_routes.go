package switchboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sagarc03/switchboard/filesystem"
)

// DefaultFiles is the search order used when a directory is requested.
var DefaultFiles = []string{
	"index.html",
	"index.htm",
	"default.html",
	"default.htm",
	"home.html",
	"home.htm",
	"welcome.html",
	"welcome.htm",
}

// ContentRoute serves a file or a directory tree from the base directory.
type ContentRoute struct {
	ID          uuid.UUID
	Path        string
	IsDirectory bool
	Metadata    any
	key         string
}

func (r *ContentRoute) routeKey() string { return r.key }

func (r *ContentRoute) matches(path string) bool {
	lower := strings.ToLower(path)
	if !r.IsDirectory {
		return lower == r.key
	}
	if strings.HasPrefix(lower, r.key) {
		return true
	}
	// "/docs" names the "/docs/" directory itself.
	return lower+"/" == r.key
}

// ContentRoutes is the file-serving route table. Directory routes match
// every path below their prefix; file routes need an exact match.
type ContentRoutes struct {
	table        routeTable[*ContentRoute]
	store        atomic.Pointer[filesystem.Store]
	defaultFiles atomic.Pointer[[]string]
	once         sync.Once
	onceErr      error
}

// NewContentRoutes returns an empty table serving from the working
// directory until SetBaseDirectory is called.
func NewContentRoutes() *ContentRoutes {
	c := &ContentRoutes{}
	files := append([]string(nil), DefaultFiles...)
	c.defaultFiles.Store(&files)
	return c
}

// SetBaseDirectory opens dir as the root all content routes resolve against.
func (c *ContentRoutes) SetBaseDirectory(dir string) error {
	store, err := filesystem.Open(dir)
	if err != nil {
		return fmt.Errorf("set content base directory: %w: %w", ErrInvalidConfig, err)
	}
	if old := c.store.Swap(store); old != nil {
		_ = old.Close()
	}
	return nil
}

// BaseDirectory returns the directory content is served from, or "" when
// none has been opened yet.
func (c *ContentRoutes) BaseDirectory() string {
	if s := c.store.Load(); s != nil {
		return s.Dir()
	}
	return ""
}

// SetDefaultFiles replaces the ordered list of directory default files.
func (c *ContentRoutes) SetDefaultFiles(names ...string) {
	files := append([]string(nil), names...)
	c.defaultFiles.Store(&files)
}

// DefaultFiles returns the ordered list of directory default files.
func (c *ContentRoutes) DefaultFiles() []string {
	files := *c.defaultFiles.Load()
	return append([]string(nil), files...)
}

// Add registers a content route. Directory paths are stored with a trailing
// slash. Adding an existing path is a no-op.
func (c *ContentRoutes) Add(path string, isDirectory bool, opts ...RouteOption) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("add content route: empty path: %w", ErrInvalidConfig)
	}

	norm := normalizeContentPath(path, isDirectory)
	base := Route{ID: uuid.New()}
	for _, opt := range opts {
		opt(&base)
	}
	c.table.add(&ContentRoute{
		ID:          base.ID,
		Path:        norm,
		IsDirectory: isDirectory,
		Metadata:    base.Metadata,
		key:         strings.ToLower(norm),
	})
	return nil
}

// Remove deletes the content route for path, if any.
func (c *ContentRoutes) Remove(path string) bool {
	if c.table.remove(strings.ToLower(normalizeContentPath(path, true))) {
		return true
	}
	return c.table.remove(strings.ToLower(normalizeContentPath(path, false)))
}

// Exists reports whether path is registered as a file or directory route.
func (c *ContentRoutes) Exists(path string) bool {
	if _, ok := c.table.get(strings.ToLower(normalizeContentPath(path, true))); ok {
		return true
	}
	_, ok := c.table.get(strings.ToLower(normalizeContentPath(path, false)))
	return ok
}

// Match returns the first content route that covers path.
func (c *ContentRoutes) Match(path string) (*ContentRoute, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.table.first(func(r *ContentRoute) bool {
		return r.matches(path)
	})
}

// Open resolves a request path against the base directory. Directories
// resolve to their first existing default file. Paths with ".." segments
// are rejected with filesystem.ErrInvalidPath.
func (c *ContentRoutes) Open(ctx context.Context, path string) (*filesystem.File, error) {
	store, err := c.storeOrDefault()
	if err != nil {
		return nil, err
	}
	return store.Resolve(ctx, path, c.DefaultFiles())
}

// All returns the routes in declaration order.
func (c *ContentRoutes) All() []*ContentRoute {
	return c.table.list()
}

// Len returns the number of routes.
func (c *ContentRoutes) Len() int {
	return c.table.len()
}

// Close releases the base directory.
func (c *ContentRoutes) Close() error {
	if s := c.store.Swap(nil); s != nil {
		return s.Close()
	}
	return nil
}

func (c *ContentRoutes) storeOrDefault() (*filesystem.Store, error) {
	if s := c.store.Load(); s != nil {
		return s, nil
	}
	c.once.Do(func() {
		store, err := filesystem.Open(".")
		if err != nil {
			c.onceErr = err
			return
		}
		if !c.store.CompareAndSwap(nil, store) {
			_ = store.Close()
		}
	})
	if s := c.store.Load(); s != nil {
		return s, nil
	}
	if c.onceErr != nil {
		return nil, fmt.Errorf("open content base directory: %w", c.onceErr)
	}
	return nil, fmt.Errorf("content base directory closed: %w", ErrInvalidConfig)
}

func normalizeContentPath(path string, isDirectory bool) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "/"
	}
	if isDirectory {
		return "/" + trimmed + "/"
	}
	return "/" + trimmed
}
