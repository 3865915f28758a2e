// Package startup handles startup and shutdown logging for the server.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Memory Limit
//
// [ConfigureMemoryLimit] sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
// (default 0.85) when the runtime was not given GOMEMLIMIT directly. It is
// called while logging system information.
//
// # Lifecycle Logging
//
//   - [LogStartup]: Banner, system information and effective configuration
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogRegistrations]: Filter chain and servlet mappings of the web context
//   - [LogHTTPRoutes]: Routes served by a mux based servlet (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	startup.LogStartup(cfg)
//	startup.LogDatabaseInit(time.Since(dbStart))
//	startup.LogRegistrations(webCtx.Registrations())
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Address:         cfg.Server.Address,
//	    Profiles:        cfg.ActiveProfiles().String(),
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
