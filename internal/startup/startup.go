package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"kairos/internal/config"
	"kairos/internal/logging"
	"kairos/internal/webconfig"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LogStartup prints the banner, system information and the effective
// configuration.
func LogStartup(cfg *config.Config) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if cfg.File != "" {
		logging.Info("  Config file:           %s", cfg.File)
	} else {
		logging.Info("  Config file:           none (defaults and %s_* environment)", config.EnvPrefix)
	}
	logging.Info("  server.address:        %s", cfg.Server.Address)
	logging.Info("  profiles.active:       %s", cfg.ActiveProfiles())
	logging.Info("  static.dir:            %s", cfg.Static.Dir)
	logging.Info("  database.path:         %s", cfg.Database.Path)
	logging.Info("  http.cache ttl:        %d days", cfg.HTTP.Cache.TimeToLiveInDays)
	logging.Info("  http.compression:      %d bytes minimum", cfg.HTTP.Compression.MinSize)
	logging.Info("  console.max_rows:      %d", cfg.Console.MaxRows)
	logging.Info("  console auth:          %s", enabledString(cfg.Console.PasswordHash != ""))
	logging.Info("  metrics interval:      %v", cfg.Metrics.CollectInterval)
	logging.Info("  logging:               %s (%s)", logging.GetLevel(), cfg.Logging.Format)
	logging.Info("")
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
	logging.Info("")
}

// LogRegistrations logs the filter chain and servlet mappings of a web
// context. Details are logged at debug level.
func LogRegistrations(snap webconfig.Snapshot) {
	logging.Info("------------------------------------------------------------")
	logging.Info("WEB CONTEXT")
	logging.Info("------------------------------------------------------------")
	logging.Info("  %d filters, %d servlets registered", len(snap.Filters), len(snap.Servlets))

	if !logging.IsDebugEnabled() {
		logging.Info("")
		return
	}

	logging.Debug("  Filter mappings (chain order):")
	for i, m := range snap.Mappings {
		logging.Debug("    %2d. %-34s %-22s %s", i+1, m.Filter, m.Dispatchers, strings.Join(m.Patterns, " "))
	}

	for _, f := range snap.Filters {
		if len(f.InitParameters) == 0 {
			continue
		}
		keys := make([]string, 0, len(f.InitParameters))
		for k := range f.InitParameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			logging.Debug("    %s: %s=%s", f.Name, k, f.InitParameters[k])
		}
	}

	logging.Debug("  Servlet mappings:")
	for _, s := range snap.Servlets {
		load := "lazy"
		if s.LoadOnStartup >= 0 {
			load = fmt.Sprintf("load-on-startup %d", s.LoadOnStartup)
		}
		logging.Debug("    %-20s %-28s %s", s.Name, strings.Join(s.Patterns, " "), load)
	}
	logging.Debug("")
}

// GetRoutes walks a router and returns its routes.
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}

		methods, err := route.GetMethods()
		if err != nil || len(methods) == 0 {
			methods = []string{"ANY"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the routes a servlet serves at debug level.
func LogHTTPRoutes(servlet string, router *mux.Router) {
	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	logging.Debug("  [%s] %d routes", servlet, len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// LogAccessLogging logs the access log settings.
func LogAccessLogging(logStaticFiles, logHealthChecks bool) {
	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set %s_LOGGING_STATIC_FILES=true to enable)", config.EnvPrefix)
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set %s_LOGGING_HEALTH_CHECKS=true to enable)", config.EnvPrefix)
	}
	logging.Info("")
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Address         string
	Profiles        string
	ConsoleEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	base := "http://" + displayHost(config.Address)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Profiles:        %s", config.Profiles)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   %s/", base)
	logging.Info("    REST:          %s/app/rest/", base)
	logging.Info("    Metrics:       %s/metrics/metrics", base)
	if config.ConsoleEnabled {
		logging.Info("    Console:       %s/console/", base)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// displayHost turns a listen address into something a browser can open.
func displayHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return addr
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __         _
   / /______ _(_)________  _____
  / //_/ __ '/ / ___/ __ \/ ___/
 / ,< / /_/ / / /  / /_/ (__  )
/_/|_|\__,_/_/_/   \____/____/

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if mem := ConfigureMemoryLimit(); mem.Configured {
		logging.Info("  GOMEMLIMIT:      %s (from %s)", formatBytes(mem.GoMemLimit), mem.Source)
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}
