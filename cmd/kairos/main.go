package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/justinas/alice"
	"github.com/spf13/pflag"

	"kairos/internal/config"
	"kairos/internal/console"
	"kairos/internal/database"
	"kairos/internal/handlers"
	"kairos/internal/logging"
	"kairos/internal/metrics"
	"kairos/internal/middleware"
	"kairos/internal/startup"
	"kairos/internal/webapp"
	"kairos/internal/webconfig"
)

const serverName = "kairos"

func main() {
	startTime := time.Now()

	fs := pflag.NewFlagSet(serverName, pflag.ExitOnError)
	config.AddFlags(fs)
	showVersion := fs.BoolP("version", "v", false, "Print version information and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		info := startup.GetBuildInfo()
		fmt.Printf("%s %s (commit %s, built %s, %s)\n", serverName, info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return
	}

	cfg, err := config.Load(fs)
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.Configure(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)
	startup.LogStartup(cfg)

	ctx := context.Background()
	profiles := cfg.ActiveProfiles()

	registry := metrics.NewRegistry()
	registry.SetBuildInfo(startup.Version, startup.Commit, startup.GoVersion)

	// Initialize database
	dbStart := time.Now()
	if err := ensureDatabaseDir(cfg.Database.Path); err != nil {
		startup.LogFatal("Failed to create database directory: %v", err)
	}
	db, err := database.New(ctx, cfg.Database.Path, database.WithMetrics(registry))
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	if err := db.RecordStartup(ctx, startTime, startup.Version, profiles.String()); err != nil {
		logging.Warn("Failed to record startup metadata: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	collector := metrics.NewCollector(registry, db, cfg.Metrics.CollectInterval)
	collector.Start()

	rest := handlers.New(db, profiles)

	configurer := webapp.NewConfigurer(webapp.Options{
		Profiles:           profiles,
		Registry:           registry,
		CacheTimeToLive:    cfg.CacheTimeToLive(),
		CompressionMinSize: cfg.HTTP.Compression.MinSize,
		ConsoleStore:       db,
		ConsoleConfig: console.Config{
			PasswordHash: cfg.Console.PasswordHash,
			MaxRows:      cfg.Console.MaxRows,
		},
		REST:      rest,
		StaticDir: cfg.Static.Dir,
	})

	webCtx := webconfig.NewContext()
	if err := configurer.OnStartup(webCtx); err != nil {
		startup.LogFatal("Web application configuration failed: %v", err)
	}
	startup.LogRegistrations(webCtx.Registrations())
	startup.LogHTTPRoutes(webapp.RESTServletName, rest.Router())
	if c := configurer.Console(); c != nil {
		startup.LogHTTPRoutes(webapp.ConsoleServletName, c.Router())
	}

	if err := webCtx.Start(ctx); err != nil {
		startup.LogFatal("Failed to start web context: %v", err)
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = cfg.Logging.StaticFiles
	loggingConfig.LogHealthChecks = cfg.Logging.HealthChecks
	startup.LogAccessLogging(loggingConfig.LogStaticFiles, loggingConfig.LogHealthChecks)

	srv := newServer(cfg.Server, newHandler(webCtx, loggingConfig))

	done := make(chan struct{})
	go handleShutdown(srv, cfg.Server.ShutdownTimeout, done,
		shutdownStep{"web context", webCtx.Close},
		shutdownStep{"metrics collector", func() error { collector.Stop(); return nil }},
		shutdownStep{"database", db.Close},
	)

	startup.LogServerStarted(startup.ServerConfig{
		Address:         cfg.Server.Address,
		Profiles:        profiles.String(),
		ConsoleEnabled:  configurer.Console() != nil,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server failed: %v", err)
	}
	<-done
}

// newHandler wraps the web context with the server wide middleware.
func newHandler(webCtx http.Handler, loggingConfig middleware.LoggingConfig) http.Handler {
	return alice.New(
		middleware.Recover,
		middleware.Logger(loggingConfig),
		middleware.ServerHeader(serverName),
	).Then(webCtx)
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		// No WriteTimeout: console queries may run long
	}
}

func ensureDatabaseDir(path string) error {
	if path == database.MemoryPath {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

type shutdownStep struct {
	name  string
	close func() error
}

func handleShutdown(srv *http.Server, timeout time.Duration, done chan<- struct{}, steps ...shutdownStep) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	startup.LogShutdownInitiated(sig.String())

	shutdown(srv, timeout, steps...)
	close(done)
}

// shutdown stops accepting requests, waits up to timeout for in-flight ones
// and then runs steps in order.
func shutdown(srv *http.Server, timeout time.Duration, steps ...shutdownStep) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	startup.LogShutdownStep("HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("HTTP server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server")
	}

	for _, step := range steps {
		startup.LogShutdownStep(step.name)
		if err := step.close(); err != nil {
			logging.Error("Failed to close %s: %v", step.name, err)
			continue
		}
		startup.LogShutdownStepComplete(step.name)
	}

	startup.LogShutdownComplete()
}
