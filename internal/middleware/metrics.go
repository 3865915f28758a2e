package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"kairos/internal/metrics"
	"kairos/internal/webconfig"
)

// ErrNoRegistry is returned by InstrumentedFilter.Init when the context
// carries no metrics registry.
var ErrNoRegistry = errors.New("no metrics registry in web context")

// metricsResponseWriter wraps http.ResponseWriter to capture status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// InstrumentedFilter counts active requests, times them, and meters
// responses by status code. The registry is read from the web context
// attribute metrics.FilterRegistryAttribute at init.
type InstrumentedFilter struct {
	registry *metrics.Registry
}

// NewInstrumentedFilter returns a filter that must be initialized by a
// webconfig.Context before use.
func NewInstrumentedFilter() *InstrumentedFilter {
	return &InstrumentedFilter{}
}

// Init implements webconfig.Initializer.
func (f *InstrumentedFilter) Init(cfg webconfig.FilterConfig) error {
	v, ok := cfg.Attribute(metrics.FilterRegistryAttribute)
	if !ok {
		return fmt.Errorf("%w: attribute %s not set", ErrNoRegistry, metrics.FilterRegistryAttribute)
	}
	reg, ok := v.(*metrics.Registry)
	if !ok || reg == nil {
		return fmt.Errorf("%w: attribute %s holds %T", ErrNoRegistry, metrics.FilterRegistryAttribute, v)
	}
	f.registry = reg
	return nil
}

// DoFilter implements webconfig.Filter.
func (f *InstrumentedFilter) DoFilter(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if f.registry == nil {
		next.ServeHTTP(w, r)
		return
	}

	f.registry.HTTPActiveRequests.Inc()
	defer f.registry.HTTPActiveRequests.Dec()

	wrapped := newMetricsResponseWriter(w)
	start := time.Now()

	next.ServeHTTP(wrapped, r)

	f.registry.HTTPRequestDuration.WithLabelValues(metrics.MethodName(r.Method)).Observe(time.Since(start).Seconds())
	f.registry.HTTPResponses.WithLabelValues(metrics.ResponseCodeName(wrapped.statusCode)).Inc()
}
