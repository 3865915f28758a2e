package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kairos"

// Context attribute keys under which the shared registry is published for
// the instrumentation filter and the metrics servlet.
const (
	FilterRegistryAttribute  = "kairos.metrics.filter.registry"
	ServletRegistryAttribute = "kairos.metrics.servlet.registry"
)

// Response code meter names, one per tracked status.
const (
	CodeOK          = "ok"
	CodeCreated     = "created"
	CodeNoContent   = "noContent"
	CodeBadRequest  = "badRequest"
	CodeNotFound    = "notFound"
	CodeServerError = "serverError"
	CodeOther       = "other"
)

// ResponseCodes lists every response code meter name.
var ResponseCodes = []string{CodeOK, CodeCreated, CodeNoContent, CodeBadRequest, CodeNotFound, CodeServerError, CodeOther}

// MethodOther labels request methods outside Methods.
const MethodOther = "OTHER"

// Methods lists the request methods tracked under their own label.
var Methods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// Registry owns a Prometheus registry and the application's metrics.
type Registry struct {
	reg *prometheus.Registry

	// HTTP metrics
	HTTPActiveRequests  prometheus.Gauge
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponses       *prometheus.CounterVec

	// Database metrics
	DBSizeBytes         *prometheus.GaugeVec
	DBQueryTotal        *prometheus.CounterVec
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsOpen   prometheus.Gauge
	ConsoleQueryTotal   *prometheus.CounterVec
	ConsoleRowsReturned prometheus.Histogram

	// Application info
	AppInfo        *prometheus.GaugeVec
	ActiveProfiles *prometheus.GaugeVec
}

// NewRegistry creates a registry with the Go runtime and process collectors
// plus every application metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		HTTPActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Number of HTTP requests currently being processed",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "Total number of HTTP responses by response code meter",
		}, []string{"code"}),

		DBSizeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_size_bytes",
			Help:      "Size of SQLite database files in bytes",
		}, []string{"file"}), // "main", "wal", "shm"
		DBQueryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		}, []string{"operation", "status"}),
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		DBConnectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		}),
		ConsoleQueryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "console_statements_total",
			Help:      "Statements executed through the database console",
		}, []string{"kind", "status"}),
		ConsoleRowsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "console_rows_returned",
			Help:      "Rows returned per console query",
			Buckets:   []float64{0, 1, 10, 100, 500, 1000},
		}),

		AppInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application build information",
		}, []string{"version", "commit", "go_version"}),
		ActiveProfiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_profile",
			Help:      "Active deployment profiles (1 = active)",
		}, []string{"profile"}),
	}
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// SetBuildInfo publishes the running build as a constant 1 gauge.
func (r *Registry) SetBuildInfo(version, commit, goVersion string) {
	r.AppInfo.Reset()
	r.AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// SetActiveProfiles marks each active profile with 1.
func (r *Registry) SetActiveProfiles(profiles []string) {
	r.ActiveProfiles.Reset()
	for _, p := range profiles {
		r.ActiveProfiles.WithLabelValues(p).Set(1)
	}
}

// ResponseCodeName maps an HTTP status to its response code meter.
func ResponseCodeName(status int) string {
	switch status {
	case 200:
		return CodeOK
	case 201:
		return CodeCreated
	case 204:
		return CodeNoContent
	case 400:
		return CodeBadRequest
	case 404:
		return CodeNotFound
	case 500:
		return CodeServerError
	default:
		return CodeOther
	}
}

// MethodName maps a request method to its duration label.
func MethodName(method string) string {
	for _, m := range Methods {
		if method == m {
			return m
		}
	}
	return MethodOther
}
