// Package handlers provides the application REST endpoints served under
// /app/rest:
//   - /health: status, uptime, version, active profiles and database state
//   - /health/live and /health/ready: probes for orchestrators
//   - /version: build information
//   - /profiles: active deployment profiles
package handlers
