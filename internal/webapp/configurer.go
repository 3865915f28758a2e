package webapp

import (
	"fmt"
	"net/http"
	"time"

	"kairos/internal/console"
	"kairos/internal/logging"
	"kairos/internal/metrics"
	"kairos/internal/middleware"
	"kairos/internal/profile"
	"kairos/internal/webconfig"
)

// Registered component names.
const (
	CharacterEncodingFilterName = "characterEncodingFilter"
	MetricsFilterName           = "webappMetricsFilter"
	MetricsServletName          = "metricsServlet"
	CachingFilterName           = "cachingHttpHeadersFilter"
	StaticResourcesFilterName   = "staticResourcesProductionFilter"
	GzipFilterName              = "gzipFilter"
	ConsoleServletName          = "H2Console"
	ServerTimingFilterName      = "serverTimingFilter"
	RESTServletName             = "restServlet"
)

// Options configures what the Configurer registers.
type Options struct {
	Profiles profile.Set
	Registry *metrics.Registry

	// CacheTimeToLive defaults to middleware.DefaultCacheTimeToLiveDays.
	CacheTimeToLive time.Duration
	// CompressionMinSize defaults to 1024 bytes when zero.
	CompressionMinSize int
	StaticPrefix       string

	// ConsoleStore backs the database console. The console is skipped
	// when it is nil.
	ConsoleStore  console.Store
	ConsoleConfig console.Config

	// REST is mounted on /app/rest/* when set.
	REST http.Handler
	// StaticDir is served by the default servlet when set.
	StaticDir string
}

// Configurer registers the web application's filters and servlets.
type Configurer struct {
	opts    Options
	disps   webconfig.DispatcherSet
	console *console.Servlet
}

// NewConfigurer creates a Configurer.
func NewConfigurer(opts Options) *Configurer {
	if opts.Registry == nil {
		opts.Registry = metrics.NewRegistry()
	}
	return &Configurer{
		opts:  opts,
		disps: webconfig.Dispatchers(webconfig.Request, webconfig.Forward, webconfig.Async),
	}
}

// Console returns the console servlet once OnStartup registered it.
func (c *Configurer) Console() *console.Servlet {
	return c.console
}

// OnStartup registers everything into ctx according to the active profiles.
func (c *Configurer) OnStartup(ctx *webconfig.Context) error {
	profiles := c.opts.Profiles
	logging.Info("Web application configuration, using profiles: %s", profiles)

	steps := []struct {
		when string
		init func(*webconfig.Context) error
	}{
		{"", c.initCharacterEncodingFilter},
		{"", c.initMetrics},
		{profile.Production, c.initCachingHTTPHeadersFilter},
		{profile.Production, c.initStaticResourcesProductionFilter},
		{"", c.initGzipFilter},
		{profile.Development, c.initConsole},
		{profile.Development, c.initServerTimingFilter},
		{"", c.initApplication},
	}

	for _, step := range steps {
		if step.when != "" && !profiles.Accepts(step.when) {
			continue
		}
		if err := step.init(ctx); err != nil {
			return err
		}
	}

	logging.Info("Web application fully configured")
	return nil
}

func (c *Configurer) initCharacterEncodingFilter(ctx *webconfig.Context) error {
	logging.Debug("Registering UTF-8 Filter")
	reg, err := ctx.AddFilter(CharacterEncodingFilterName, middleware.NewCharacterEncodingFilter())
	if err != nil {
		return fmt.Errorf("registering %s: %w", CharacterEncodingFilterName, err)
	}
	reg.SetInitParameters(map[string]string{
		"encoding":      middleware.DefaultEncoding,
		"forceEncoding": "true",
	})
	return c.mapFilter(reg, "/*")
}

func (c *Configurer) initMetrics(ctx *webconfig.Context) error {
	logging.Debug("Initializing Metrics registries")
	ctx.SetAttribute(metrics.FilterRegistryAttribute, c.opts.Registry)
	ctx.SetAttribute(metrics.ServletRegistryAttribute, c.opts.Registry)
	c.opts.Registry.SetActiveProfiles(c.opts.Profiles.Active())

	logging.Debug("Registering Metrics Filter")
	filter, err := ctx.AddFilter(MetricsFilterName, middleware.NewInstrumentedFilter())
	if err != nil {
		return fmt.Errorf("registering %s: %w", MetricsFilterName, err)
	}
	if err := c.mapFilter(filter, "/*"); err != nil {
		return err
	}
	filter.SetAsyncSupported(true)

	logging.Debug("Registering Metrics Servlet")
	v, _ := ctx.Attribute(metrics.ServletRegistryAttribute)
	registry, ok := v.(*metrics.Registry)
	if !ok {
		return fmt.Errorf("registering %s: %w", MetricsServletName, middleware.ErrNoRegistry)
	}
	servlet, err := ctx.AddServlet(MetricsServletName, metrics.NewServlet(registry))
	if err != nil {
		return fmt.Errorf("registering %s: %w", MetricsServletName, err)
	}
	if err := servlet.AddMapping("/metrics/metrics/*"); err != nil {
		return fmt.Errorf("mapping %s: %w", MetricsServletName, err)
	}
	servlet.SetAsyncSupported(true)
	servlet.SetLoadOnStartup(2)
	return nil
}

func (c *Configurer) initCachingHTTPHeadersFilter(ctx *webconfig.Context) error {
	logging.Debug("Registering Caching HTTP Headers Filter")
	config := middleware.DefaultCachingConfig()
	if c.opts.CacheTimeToLive > 0 {
		config.TimeToLive = c.opts.CacheTimeToLive
	}
	reg, err := ctx.AddFilter(CachingFilterName, webconfig.Middleware(middleware.CachingHeaders(config)))
	if err != nil {
		return fmt.Errorf("registering %s: %w", CachingFilterName, err)
	}
	if err := c.mapFilter(reg, "/images/*", "/fonts/*", "/scripts/*", "/styles/*"); err != nil {
		return err
	}
	reg.SetAsyncSupported(true)
	return nil
}

func (c *Configurer) initStaticResourcesProductionFilter(ctx *webconfig.Context) error {
	logging.Debug("Registering static resources production Filter")
	config := middleware.DefaultStaticResourcesConfig()
	if c.opts.StaticPrefix != "" {
		config.Prefix = c.opts.StaticPrefix
	}
	reg, err := ctx.AddFilter(StaticResourcesFilterName, middleware.StaticResourcesProduction(config))
	if err != nil {
		return fmt.Errorf("registering %s: %w", StaticResourcesFilterName, err)
	}
	if err := c.mapFilter(reg, "/", "/index.html", "/images/*", "/fonts/*", "/scripts/*", "/styles/*", "/views/*"); err != nil {
		return err
	}
	reg.SetAsyncSupported(true)
	return nil
}

func (c *Configurer) initGzipFilter(ctx *webconfig.Context) error {
	logging.Debug("Registering GZip Filter")
	config := middleware.DefaultCompressionConfig()
	if c.opts.CompressionMinSize > 0 {
		config.MinSize = c.opts.CompressionMinSize
	}
	reg, err := ctx.AddFilter(GzipFilterName, webconfig.Middleware(middleware.Compression(config)))
	if err != nil {
		return fmt.Errorf("registering %s: %w", GzipFilterName, err)
	}
	reg.SetInitParameters(map[string]string{})
	if err := c.mapFilter(reg, "*.css", "*.json", "*.html", "*.js", "/app/rest/*", "/metrics/*"); err != nil {
		return err
	}
	reg.SetAsyncSupported(true)
	return nil
}

func (c *Configurer) initConsole(ctx *webconfig.Context) error {
	if c.opts.ConsoleStore == nil {
		logging.Warn("No database configured, skipping database console")
		return nil
	}

	logging.Debug("Initialize database console")
	cfg := c.opts.ConsoleConfig
	if cfg.Registry == nil {
		cfg.Registry = c.opts.Registry
	}
	c.console = console.New(c.opts.ConsoleStore, cfg)

	reg, err := ctx.AddServlet(ConsoleServletName, c.console)
	if err != nil {
		return fmt.Errorf("registering %s: %w", ConsoleServletName, err)
	}
	if err := reg.AddMapping("/console/*"); err != nil {
		return fmt.Errorf("mapping %s: %w", ConsoleServletName, err)
	}
	reg.SetLoadOnStartup(1)
	return nil
}

func (c *Configurer) initServerTimingFilter(ctx *webconfig.Context) error {
	logging.Debug("Registering Server-Timing Filter")
	reg, err := ctx.AddFilter(ServerTimingFilterName, middleware.ServerTiming())
	if err != nil {
		return fmt.Errorf("registering %s: %w", ServerTimingFilterName, err)
	}
	return c.mapFilter(reg, "/*")
}

// initApplication mounts the REST endpoints and static files.
func (c *Configurer) initApplication(ctx *webconfig.Context) error {
	if c.opts.REST != nil {
		logging.Debug("Registering REST Servlet")
		reg, err := ctx.AddServlet(RESTServletName, c.opts.REST)
		if err != nil {
			return fmt.Errorf("registering %s: %w", RESTServletName, err)
		}
		if err := reg.AddMapping("/app/rest/*"); err != nil {
			return fmt.Errorf("mapping %s: %w", RESTServletName, err)
		}
	}

	if c.opts.StaticDir != "" {
		logging.Debug("Serving static files from %s", c.opts.StaticDir)
		ctx.SetDefaultServlet(newStaticServlet(c.opts.StaticDir))
	}
	return nil
}

func (c *Configurer) mapFilter(reg *webconfig.FilterRegistration, patterns ...string) error {
	if err := reg.AddMappingForURLPatterns(c.disps, true, patterns...); err != nil {
		return fmt.Errorf("mapping %s: %w", reg.Name(), err)
	}
	return nil
}
