package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"kairos/internal/logging"
)

// Recover turns a panic in next into a 500 and closes the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				w.Header().Set("Connection", "close")
				err := fmt.Errorf("%v", rec)
				logging.Logger().Error().
					Err(err).
					Str("method", r.Method).
					Str("uri", sanitizeLogField(r.URL.RequestURI())).
					Bytes("stack", debug.Stack()).
					Msg("panic while serving request")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ServerHeader sets the Server response header.
func ServerHeader(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", name)
			next.ServeHTTP(w, r)
		})
	}
}
