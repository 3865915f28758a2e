package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/internal/database"
	"kairos/internal/handlers"
	"kairos/internal/metrics"
	"kairos/internal/profile"
	"kairos/internal/webconfig"
)

var appJS = strings.Repeat("console.log('kairos');\n", 200)

const indexHTML = "<!DOCTYPE html><html><body>kairos</body></html>"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newStaticDir lays out a development tree and a production build under dist.
func newStaticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "<html>dev</html>")
	writeFile(t, filepath.Join(dir, "hello.txt"), "hello")
	writeFile(t, filepath.Join(dir, "dist", "index.html"), indexHTML)
	writeFile(t, filepath.Join(dir, "dist", "scripts", "app.js"), appJS)
	return dir
}

type app struct {
	ctx      *webconfig.Context
	registry *metrics.Registry
}

func newApp(t *testing.T, profiles string) *app {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	set := profile.Parse(profiles)
	registry := metrics.NewRegistry()
	configurer := NewConfigurer(Options{
		Profiles:     set,
		Registry:     registry,
		ConsoleStore: db,
		REST:         handlers.New(db, set),
		StaticDir:    newStaticDir(t),
	})

	ctx := webconfig.NewContext()
	require.NoError(t, configurer.OnStartup(ctx))
	require.NoError(t, ctx.Start(context.Background()))
	t.Cleanup(func() { _ = ctx.Close() })

	return &app{ctx: ctx, registry: registry}
}

func (a *app) do(method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.ctx.ServeHTTP(rec, req)
	return rec
}

func (a *app) get(target string) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, target, http.NoBody, nil)
}

func gunzip(t *testing.T, r io.Reader) string {
	t.Helper()
	zr, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer zr.Close()
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func filterNames(snap webconfig.Snapshot) []string {
	var names []string
	for _, f := range snap.Filters {
		names = append(names, f.Name)
	}
	return names
}

func servlets(snap webconfig.Snapshot) map[string]webconfig.ServletInfo {
	out := make(map[string]webconfig.ServletInfo)
	for _, s := range snap.Servlets {
		out[s.Name] = s
	}
	return out
}

func TestOnStartupRegistrations(t *testing.T) {
	tests := []struct {
		name     string
		profiles string
		filters  []string
		servlets []string
	}{
		{
			name:     "dev",
			profiles: "dev",
			filters: []string{
				CharacterEncodingFilterName, MetricsFilterName, GzipFilterName, ServerTimingFilterName,
			},
			servlets: []string{MetricsServletName, ConsoleServletName},
		},
		{
			name:     "prod",
			profiles: "prod",
			filters: []string{
				CharacterEncodingFilterName, MetricsFilterName, CachingFilterName,
				StaticResourcesFilterName, GzipFilterName,
			},
			servlets: []string{MetricsServletName},
		},
		{
			name:     "neither",
			profiles: "test",
			filters:  []string{CharacterEncodingFilterName, MetricsFilterName, GzipFilterName},
			servlets: []string{MetricsServletName},
		},
		{
			name:     "both",
			profiles: "prod,dev",
			filters: []string{
				CharacterEncodingFilterName, MetricsFilterName, CachingFilterName,
				StaticResourcesFilterName, GzipFilterName, ServerTimingFilterName,
			},
			servlets: []string{MetricsServletName, ConsoleServletName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := webconfig.NewContext()
			c := NewConfigurer(Options{
				Profiles:     profile.Parse(tt.profiles),
				ConsoleStore: &stubStore{},
			})
			require.NoError(t, c.OnStartup(ctx))

			snap := ctx.Registrations()
			assert.Equal(t, tt.filters, filterNames(snap))

			var names []string
			for _, s := range snap.Servlets {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.servlets, names)
			assert.Equal(t, profile.Parse(tt.profiles).IsActive(profile.Development), c.Console() != nil)
		})
	}
}

func TestOnStartupMappings(t *testing.T) {
	ctx := webconfig.NewContext()
	require.NoError(t, NewConfigurer(Options{
		Profiles:     profile.New(profile.Development, profile.Production),
		ConsoleStore: &stubStore{},
	}).OnStartup(ctx))

	snap := ctx.Registrations()
	all := webconfig.Dispatchers(webconfig.Request, webconfig.Forward, webconfig.Async)

	patterns := make(map[string][]string)
	for _, m := range snap.Mappings {
		assert.Equal(t, all, m.Dispatchers, m.Filter)
		assert.True(t, m.MatchAfter, m.Filter)
		patterns[m.Filter] = append(patterns[m.Filter], m.Patterns...)
	}

	assert.Equal(t, []string{"/*"}, patterns[CharacterEncodingFilterName])
	assert.Equal(t, []string{"/*"}, patterns[MetricsFilterName])
	assert.Equal(t, []string{"/images/*", "/fonts/*", "/scripts/*", "/styles/*"}, patterns[CachingFilterName])
	assert.Equal(t, []string{"/", "/index.html", "/images/*", "/fonts/*", "/scripts/*", "/styles/*", "/views/*"}, patterns[StaticResourcesFilterName])
	assert.Equal(t, []string{"*.css", "*.json", "*.html", "*.js", "/app/rest/*", "/metrics/*"}, patterns[GzipFilterName])

	for _, f := range snap.Filters {
		switch f.Name {
		case CharacterEncodingFilterName:
			assert.Equal(t, map[string]string{"encoding": "UTF-8", "forceEncoding": "true"}, f.InitParameters)
			assert.False(t, f.AsyncSupported)
		case GzipFilterName:
			assert.Empty(t, f.InitParameters)
			assert.True(t, f.AsyncSupported)
		case MetricsFilterName, CachingFilterName, StaticResourcesFilterName:
			assert.True(t, f.AsyncSupported, f.Name)
		}
	}

	byName := servlets(snap)
	assert.Equal(t, []string{"/metrics/metrics/*"}, byName[MetricsServletName].Patterns)
	assert.Equal(t, 2, byName[MetricsServletName].LoadOnStartup)
	assert.True(t, byName[MetricsServletName].AsyncSupported)
	assert.Equal(t, []string{"/console/*"}, byName[ConsoleServletName].Patterns)
	assert.Equal(t, 1, byName[ConsoleServletName].LoadOnStartup)
}

func TestOnStartupSharesRegistry(t *testing.T) {
	registry := metrics.NewRegistry()
	ctx := webconfig.NewContext()
	require.NoError(t, NewConfigurer(Options{Profiles: profile.New("prod"), Registry: registry}).OnStartup(ctx))

	for _, key := range []string{metrics.FilterRegistryAttribute, metrics.ServletRegistryAttribute} {
		v, ok := ctx.Attribute(key)
		require.True(t, ok, key)
		assert.Same(t, registry, v, key)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.ActiveProfiles.WithLabelValues("prod")))
}

func TestOnStartupTwiceFails(t *testing.T) {
	ctx := webconfig.NewContext()
	c := NewConfigurer(Options{Profiles: profile.New("prod")})
	require.NoError(t, c.OnStartup(ctx))

	err := c.OnStartup(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, webconfig.ErrDuplicateName)
}

func TestOnStartupWithoutConsoleStore(t *testing.T) {
	ctx := webconfig.NewContext()
	c := NewConfigurer(Options{Profiles: profile.New("dev")})
	require.NoError(t, c.OnStartup(ctx))

	assert.Nil(t, c.Console())
	assert.NotContains(t, servlets(ctx.Registrations()), ConsoleServletName)
}

func TestDevelopmentServing(t *testing.T) {
	a := newApp(t, "dev")

	t.Run("console", func(t *testing.T) {
		rec := a.get("/console/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=UTF-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "metadata")
	})

	t.Run("console statement is timed", func(t *testing.T) {
		form := url.Values{"sql": {"SELECT key FROM metadata"}}
		rec := a.do(http.MethodPost, "/console/", strings.NewReader(form.Encode()), http.Header{
			"Content-Type": {"application/x-www-form-urlencoded"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Server-Timing"), "db")
		assert.Equal(t, 1.0, testutil.ToFloat64(a.registry.ConsoleQueryTotal.WithLabelValues("query", "success")))
	})

	t.Run("metrics are gzipped", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/metrics/metrics", http.NoBody, http.Header{"Accept-Encoding": {"gzip"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		body := gunzip(t, rec.Body)
		assert.Contains(t, body, "kairos_http_responses_total")
		assert.Contains(t, body, `kairos_active_profile{profile="dev"} 1`)
	})

	t.Run("rest", func(t *testing.T) {
		rec := a.get("/app/rest/profiles")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json; charset=UTF-8", rec.Header().Get("Content-Type"))

		var resp handlers.ProfilesResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Development)
		assert.False(t, resp.Production)
	})

	t.Run("static files are not cached", func(t *testing.T) {
		rec := a.get("/hello.txt")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello", rec.Body.String())
		assert.Empty(t, rec.Header().Get("Pragma"))
	})

	t.Run("root serves the development index", func(t *testing.T) {
		rec := a.get("/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<html>dev</html>", rec.Body.String())
	})

	t.Run("responses are counted", func(t *testing.T) {
		before := testutil.ToFloat64(a.registry.HTTPResponses.WithLabelValues(metrics.CodeNotFound))
		assert.Equal(t, http.StatusNotFound, a.get("/missing.txt").Code)
		after := testutil.ToFloat64(a.registry.HTTPResponses.WithLabelValues(metrics.CodeNotFound))
		assert.Equal(t, before+1, after)
	})
}

func TestProductionServing(t *testing.T) {
	a := newApp(t, "prod")

	t.Run("root is forwarded to the build", func(t *testing.T) {
		for _, path := range []string{"/", "/index.html"} {
			rec := a.get(path)
			require.Equal(t, http.StatusOK, rec.Code, path)
			assert.Equal(t, indexHTML, rec.Body.String(), path)
			assert.Equal(t, "text/html; charset=utf-8", strings.ToLower(rec.Header().Get("Content-Type")), path)
		}
	})

	t.Run("scripts are cached and compressed", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/scripts/app.js", http.NoBody, http.Header{"Accept-Encoding": {"gzip"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "max-age=126230400, public", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "cache", rec.Header().Get("Pragma"))
		assert.NotEmpty(t, rec.Header().Get("Expires"))
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		assert.Empty(t, rec.Header().Get("Content-Length"))
		assert.Empty(t, rec.Header().Get("Accept-Ranges"))
		assert.Equal(t, appJS, gunzip(t, rec.Body))
	})

	t.Run("ranges are served uncompressed", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/scripts/app.js", http.NoBody, http.Header{
			"Accept-Encoding": {"gzip"},
			"Range":           {"bytes=0-1999"},
		})
		require.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, fmt.Sprintf("bytes 0-1999/%d", len(appJS)), rec.Header().Get("Content-Range"))
		assert.Equal(t, appJS[:2000], rec.Body.String())
	})

	t.Run("missing build files are 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, a.get("/views/missing.html").Code)
	})

	t.Run("no console", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, a.get("/console/").Code)
	})

	t.Run("no server timing", func(t *testing.T) {
		assert.Empty(t, a.get("/app/rest/health").Header().Get("Server-Timing"))
	})
}

func TestCacheTimeToLiveOption(t *testing.T) {
	ctx := webconfig.NewContext()
	require.NoError(t, NewConfigurer(Options{
		Profiles:        profile.New("prod"),
		CacheTimeToLive: 7 * 24 * time.Hour,
		StaticDir:       newStaticDir(t),
	}).OnStartup(ctx))
	require.NoError(t, ctx.Start(context.Background()))
	t.Cleanup(func() { _ = ctx.Close() })

	rec := httptest.NewRecorder()
	ctx.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scripts/app.js", http.NoBody))
	assert.Equal(t, "max-age=604800, public", rec.Header().Get("Cache-Control"))
}

type stubStore struct{}

func (stubStore) Path() string                             { return "stub" }
func (stubStore) Ping(context.Context) error               { return nil }
func (stubStore) Tables(context.Context) ([]string, error) { return nil, nil }
func (stubStore) Execute(context.Context, string, int) (*database.Result, error) {
	return &database.Result{}, nil
}
