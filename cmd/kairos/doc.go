// Package main provides the entry point for the kairos server.
//
// kairos is a small web application whose servlet container is configured
// at startup according to the active profiles. The dev profile enables the
// SQL database console and Server-Timing headers. The prod profile enables
// far-future cache headers and index.html forwarding for static resources.
//
// # Application Lifecycle
//
//  1. Configuration: flags, KAIROS_ environment variables and an optional
//     config.yaml are merged and validated
//  2. Logging: level and format are applied, the banner and effective
//     configuration are logged, GOMEMLIMIT is derived from MEMORY_LIMIT
//  3. Database: the SQLite file is opened (its directory is created when
//     missing) and the startup is recorded in the metadata table
//  4. Metrics: the Prometheus registry is created and the database
//     collector started
//  5. Web context: filters and servlets are registered for the active
//     profiles, then servlets with a load-on-startup order are initialized
//  6. HTTP server: the context is wrapped with panic recovery, the W3C
//     access log and the Server header
//
// # Endpoints
//
//   - /: static files from static.dir
//   - /app/rest/health, /app/rest/health/live, /app/rest/health/ready
//   - /app/rest/version, /app/rest/profiles
//   - /metrics/metrics: Prometheus exposition
//   - /console/: SQL console (dev profile only)
//
// # Flags
//
//	-c, --config    Config file
//	-p, --profiles  Comma-separated active profiles
//	    --address   Listen address
//	-v, --version   Print version information and exit
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting requests and waits up to
// server.shutdown_timeout for in-flight ones. The web context is then closed
// (servlets are destroyed), followed by the metrics collector and the
// database.
//
// # Build Requirements
//
// CGO is required for SQLite:
//
//	CGO_ENABLED=1 go build -o kairos ./cmd/kairos
//
// Version information is injected with ldflags:
//
//	go build -ldflags "-X kairos/internal/startup.Version=1.0.0 -X kairos/internal/startup.Commit=$(git rev-parse --short HEAD)" ./cmd/kairos
//
// # Related Packages
//
//   - [kairos/internal/webconfig]: Filter and servlet container
//   - [kairos/internal/webapp]: Profile dependent registrations
//   - [kairos/internal/console]: SQL console servlet
//   - [kairos/internal/config]: Configuration loading and validation
package main
