// Package metrics provides Prometheus instrumentation for the kairos web
// application.
//
// Unlike a promauto default-registry setup, every metric lives on a
// [Registry] created at startup. The same registry is published as a web
// context attribute under [FilterRegistryAttribute] and
// [ServletRegistryAttribute], so the request instrumentation filter and the
// metrics servlet observe and expose one set of series.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPActiveRequests: Gauge of requests currently being processed
//   - HTTPRequestDuration: Histogram of request duration by method
//   - HTTPResponses: Counter of responses by code meter (ok, created,
//     noContent, badRequest, notFound, serverError, other)
//
// ## Database Metrics
//   - DBSizeBytes: Gauge of SQLite file sizes (main, WAL, SHM)
//   - DBQueryTotal / DBQueryDuration: Query counts and latency by operation
//   - DBConnectionsOpen: Gauge of open connections
//   - ConsoleQueryTotal / ConsoleRowsReturned: Database console activity
//
// ## Application Info
//   - AppInfo: Gauge with version, commit and Go version labels
//   - ActiveProfiles: Gauge per active deployment profile
//
// # Collector
//
// [Collector] periodically copies database statistics from a
// [StatsProvider] into the database gauges:
//
//	collector := metrics.NewCollector(registry, db, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Error rate:
//
//	sum(rate(kairos_http_responses_total{code="serverError"}[5m])) / sum(rate(kairos_http_responses_total[5m]))
//
// P95 response time:
//
//	histogram_quantile(0.95, sum(rate(kairos_http_request_duration_seconds_bucket[5m])) by (le))
package metrics
