package middleware

import (
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"

	"kairos/internal/webconfig"
)

// ServerTiming exposes the timing header so servlets can report their own
// spans through servertiming.FromContext.
func ServerTiming() webconfig.Filter {
	return webconfig.FilterFunc(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		servertiming.Middleware(next, nil).ServeHTTP(w, r)
	})
}

// StartTiming starts a named metric when the request carries a timing
// header. The returned func stops it and is always safe to call.
func StartTiming(r *http.Request, name string) func() {
	timing := servertiming.FromContext(r.Context())
	if timing == nil {
		return func() {}
	}
	m := timing.NewMetric(name).Start()
	return func() { m.Stop() }
}
