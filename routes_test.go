package switchboard_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/switchboard"
)

func noop(*switchboard.Context) error { return nil }

func TestStaticRoutes_Normalization(t *testing.T) {
	routes := switchboard.NewStaticRoutes()
	require.NoError(t, routes.Add("get", "/Hello", noop))

	for _, path := range []string{"/hello", "/hello/", "hello", "/HELLO", "/hello?x=1"} {
		r, ok := routes.Match("GET", path)
		require.True(t, ok, path)
		assert.Equal(t, "/hello/", r.Path)
		assert.Equal(t, "GET", r.Method)
	}

	_, ok := routes.Match("POST", "/hello")
	assert.False(t, ok)
	_, ok = routes.Match("GET", "/hello/world")
	assert.False(t, ok)
}

func TestStaticRoutes_DuplicateIsNoop(t *testing.T) {
	routes := switchboard.NewStaticRoutes()
	id := uuid.New()
	require.NoError(t, routes.Add("GET", "/a", noop, switchboard.WithID(id)))
	require.NoError(t, routes.Add("GET", "/A/", noop))

	assert.Equal(t, 1, routes.Len())
	r, ok := routes.Match("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, id, r.ID)
}

func TestStaticRoutes_RemoveAndExists(t *testing.T) {
	routes := switchboard.NewStaticRoutes()
	require.NoError(t, routes.Add("GET", "/a", noop))

	assert.True(t, routes.Exists("get", "/a/"))
	assert.True(t, routes.Remove("GET", "/A"))
	assert.False(t, routes.Remove("GET", "/a"))
	assert.False(t, routes.Exists("GET", "/a"))
}

func TestStaticRoutes_AddInvalid(t *testing.T) {
	routes := switchboard.NewStaticRoutes()

	assert.ErrorIs(t, routes.Add("GET", "/a", nil), switchboard.ErrNilHandler)
	assert.ErrorIs(t, routes.Add("", "/a", noop), switchboard.ErrInvalidConfig)
	assert.ErrorIs(t, routes.Add("GET", " ", noop), switchboard.ErrInvalidConfig)
	assert.Equal(t, 0, routes.Len())
}

func TestRouteOptions(t *testing.T) {
	routes := switchboard.NewStaticRoutes()
	eh := func(*switchboard.Context, error) error { return nil }
	require.NoError(t, routes.Add("GET", "/a", noop,
		switchboard.WithMetadata("meta"),
		switchboard.WithExceptionHandler(eh),
	))

	r, ok := routes.Match("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, "meta", r.Metadata)
	assert.NotNil(t, r.ExceptionHandler)
	assert.NotEqual(t, uuid.Nil, r.ID)
}

func TestParameterRoutes_Bind(t *testing.T) {
	routes := switchboard.NewParameterRoutes()
	require.NoError(t, routes.Add("GET", "/{x}/foo/{y}", noop))

	r, params, ok := routes.Match("GET", "/1/FOO/2")
	require.True(t, ok)
	assert.Equal(t, "/{x}/foo/{y}", r.Path)
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, params)

	_, _, ok = routes.Match("GET", "/1/foo")
	assert.False(t, ok, "segment count differs")
	_, _, ok = routes.Match("GET", "/1/foo/2/3")
	assert.False(t, ok, "segment count differs")
	_, _, ok = routes.Match("GET", "/1/bar/2")
	assert.False(t, ok, "literal mismatch")
	_, _, ok = routes.Match("POST", "/1/foo/2")
	assert.False(t, ok, "method mismatch")
}

func TestParameterRoutes_FirstRegisteredWins(t *testing.T) {
	routes := switchboard.NewParameterRoutes()
	require.NoError(t, routes.Add("GET", "/users/{id}", noop))
	require.NoError(t, routes.Add("GET", "/users/me", noop))

	r, params, ok := routes.Match("GET", "/users/me")
	require.True(t, ok)
	assert.Equal(t, "/users/{id}", r.Path)
	assert.Equal(t, "me", params["id"])
}

func TestParameterRoutes_NoPlaceholders(t *testing.T) {
	routes := switchboard.NewParameterRoutes()
	require.NoError(t, routes.Add("GET", "/plain", noop))

	_, params, ok := routes.Match("GET", "/plain/")
	require.True(t, ok)
	assert.Empty(t, params)
	assert.NotNil(t, params)
}

func TestParameterRoutes_InvalidTemplate(t *testing.T) {
	routes := switchboard.NewParameterRoutes()

	for _, tmpl := range []string{"", "/{}", "/{a}/{a}", "/pre{a}"} {
		assert.ErrorIs(t, routes.Add("GET", tmpl, noop), switchboard.ErrInvalidConfig, tmpl)
	}
	assert.ErrorIs(t, routes.Add("GET", "/{a}", nil), switchboard.ErrNilHandler)
}

func TestParameterRoutes_RemoveAndExists(t *testing.T) {
	routes := switchboard.NewParameterRoutes()
	require.NoError(t, routes.Add("GET", "/users/{id}", noop))

	assert.True(t, routes.Exists("GET", "/users/{id}/"))
	assert.True(t, routes.Remove("GET", "/users/{id}"))
	assert.Equal(t, 0, routes.Len())
}

func TestDynamicRoutes_FirstMatchWins(t *testing.T) {
	routes := switchboard.NewDynamicRoutes()
	require.NoError(t, routes.Add("GET", `^/foo/\d+`, noop, switchboard.WithMetadata("first")))
	require.NoError(t, routes.Add("GET", `/foo/.*`, noop, switchboard.WithMetadata("second")))

	r, _, ok := routes.Match("GET", "/foo/42")
	require.True(t, ok)
	assert.Equal(t, "first", r.Metadata)

	r, _, ok = routes.Match("GET", "/foo/bar")
	require.True(t, ok)
	assert.Equal(t, "second", r.Metadata)

	_, _, ok = routes.Match("POST", "/foo/42")
	assert.False(t, ok)
}

func TestDynamicRoutes_NamedGroups(t *testing.T) {
	routes := switchboard.NewDynamicRoutes()
	require.NoError(t, routes.Add("GET", `/files/(?P<name>[a-z]+)\.(?P<ext>txt|md)$`, noop))

	_, params, ok := routes.Match("GET", "/files/readme.md")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"name": "readme", "ext": "md"}, params)

	_, _, ok = routes.Match("GET", "/files/readme.exe")
	assert.False(t, ok)
}

func TestDynamicRoutes_AnchoredAtPathStart(t *testing.T) {
	routes := switchboard.NewDynamicRoutes()
	require.NoError(t, routes.Add("GET", `/api`, noop))

	_, _, ok := routes.Match("GET", "/v1/api")
	assert.False(t, ok)
}

func TestDynamicRoutes_MatchesEscapedPath(t *testing.T) {
	routes := switchboard.NewDynamicRoutes()
	require.NoError(t, routes.Add("GET", `/files/[^/]+$`, noop))

	_, _, ok := routes.Match("GET", "/files/a%2Fb")
	assert.True(t, ok)

	_, _, ok = routes.Match("GET", "/files/a/b")
	assert.False(t, ok)
}

func TestRouteTables_ConcurrentMutationDuringMatch(t *testing.T) {
	static := switchboard.NewStaticRoutes()
	params := switchboard.NewParameterRoutes()
	dynamic := switchboard.NewDynamicRoutes()
	require.NoError(t, static.Add("GET", "/stable", noop))
	require.NoError(t, params.Add("GET", "/stable/{id}", noop))
	require.NoError(t, dynamic.Add("GET", `/stable/\d+$`, noop))

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				path := fmt.Sprintf("/w%d/%d", w, i)
				assert.NoError(t, static.Add("GET", path, noop))
				assert.NoError(t, params.Add("GET", path+"/{x}", noop))
				assert.NoError(t, dynamic.Add("GET", path+"$", noop))
				assert.True(t, static.Remove("GET", path))
				assert.True(t, params.Remove("GET", path+"/{x}"))
				assert.True(t, dynamic.Remove("GET", path+"$"))
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				_, ok := static.Match("GET", "/stable")
				assert.True(t, ok)
				_, bound, ok := params.Match("GET", "/stable/7")
				assert.True(t, ok)
				assert.Equal(t, "7", bound["id"])
				_, _, ok = dynamic.Match("GET", "/stable/42")
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, static.Len())
	assert.Equal(t, 1, params.Len())
	assert.Equal(t, 1, dynamic.Len())
}

func TestDynamicRoutes_InvalidPattern(t *testing.T) {
	routes := switchboard.NewDynamicRoutes()

	assert.ErrorIs(t, routes.Add("GET", `/(unclosed`, noop), switchboard.ErrInvalidPattern)
	assert.ErrorIs(t, routes.Add("GET", `^`, noop), switchboard.ErrInvalidConfig)
	assert.Equal(t, 0, routes.Len())

	require.NoError(t, routes.Add("GET", `^/x`, noop))
	assert.True(t, routes.Exists("GET", `/x`))
	assert.True(t, routes.Remove("GET", `^/x`))
}

func TestContentRoutes_Match(t *testing.T) {
	routes := switchboard.NewContentRoutes()
	require.NoError(t, routes.Add("/docs", true))
	require.NoError(t, routes.Add("robots.txt", false))

	r, ok := routes.Match("/docs/guide/intro.html")
	require.True(t, ok)
	assert.Equal(t, "/docs/", r.Path)
	assert.True(t, r.IsDirectory)

	_, ok = routes.Match("/DOCS")
	assert.True(t, ok, "directory itself")

	r, ok = routes.Match("/robots.txt?v=2")
	require.True(t, ok)
	assert.Equal(t, "/robots.txt", r.Path)

	_, ok = routes.Match("/robots.txt/extra")
	assert.False(t, ok)
	_, ok = routes.Match("/documents")
	assert.False(t, ok)
}

func TestContentRoutes_AddRemove(t *testing.T) {
	routes := switchboard.NewContentRoutes()
	require.NoError(t, routes.Add("/docs/", true))
	require.NoError(t, routes.Add("/docs", true))
	assert.Equal(t, 1, routes.Len())

	assert.ErrorIs(t, routes.Add(" ", false), switchboard.ErrInvalidConfig)
	assert.True(t, routes.Exists("/docs"))
	assert.True(t, routes.Remove("/docs"))
	assert.False(t, routes.Exists("/docs"))
}

func TestContentRoutes_BaseDirectoryAndDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"), []byte("home"), 0o644))

	routes := switchboard.NewContentRoutes()
	t.Cleanup(func() { _ = routes.Close() })
	require.NoError(t, routes.SetBaseDirectory(dir))
	assert.Equal(t, dir, routes.BaseDirectory())
	assert.Equal(t, switchboard.DefaultFiles, routes.DefaultFiles())

	routes.SetDefaultFiles("home.html")
	assert.Equal(t, []string{"home.html"}, routes.DefaultFiles())

	assert.ErrorIs(t, routes.SetBaseDirectory(filepath.Join(dir, "missing")), switchboard.ErrInvalidConfig)
	assert.Equal(t, dir, routes.BaseDirectory(), "failed change keeps the old directory")
}

func TestNewRoutes(t *testing.T) {
	routes := switchboard.NewRoutes(nil)
	assert.NotNil(t, routes.Preflight)
	assert.NotNil(t, routes.PreAuthentication)
	assert.NotNil(t, routes.PostAuthentication)
	assert.Nil(t, routes.Default)
	assert.NoError(t, routes.Close())
}
