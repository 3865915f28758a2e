package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kairos/internal/logging"
)

// Servlet serves the registry in the Prometheus exposition format.
type Servlet struct {
	registry *Registry
	handler  http.Handler
}

// NewServlet creates the metrics endpoint for registry.
func NewServlet(registry *Registry) *Servlet {
	return &Servlet{
		registry: registry,
		handler: promhttp.HandlerFor(registry.Gatherer(), promhttp.HandlerOpts{
			Registry:          registry.Registerer(),
			EnableOpenMetrics: true,
		}),
	}
}

// Init pre-populates labelled series so the first scrape is complete.
func (s *Servlet) Init(context.Context) error {
	s.registry.InitializeMetrics()
	logging.Debug("Metrics servlet initialized")
	return nil
}

// ServeHTTP implements http.Handler
func (s *Servlet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
