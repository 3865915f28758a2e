package middleware

import (
	"net/http"
	"strings"

	"kairos/internal/logging"
	"kairos/internal/webconfig"
)

// DefaultStaticPrefix is the directory holding the production build.
const DefaultStaticPrefix = "/dist"

// StaticResourcesConfig holds configuration for production forwarding
type StaticResourcesConfig struct {
	// Prefix is prepended to the request path before forwarding
	Prefix string
}

// DefaultStaticResourcesConfig returns the default forwarding configuration
func DefaultStaticResourcesConfig() StaticResourcesConfig {
	return StaticResourcesConfig{Prefix: DefaultStaticPrefix}
}

// StaticResourcesProduction forwards requests to the optimized build under
// config.Prefix. "/" is served as "/index.html". The rest of the chain is
// never called.
func StaticResourcesProduction(config StaticResourcesConfig) webconfig.Filter {
	prefix := strings.TrimSuffix(config.Prefix, "/")
	if prefix == "" {
		prefix = DefaultStaticPrefix
	}

	return webconfig.FilterFunc(func(w http.ResponseWriter, r *http.Request, _ http.Handler) {
		path := r.URL.Path
		if path == "" || path == "/" {
			path = "/index.html"
		}

		target := prefix + path
		logging.Debug("Forwarding %s to %s", r.URL.Path, target)

		if err := webconfig.Forward(w, r, target); err != nil {
			logging.Error("Failed to forward %s: %v", r.URL.Path, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
