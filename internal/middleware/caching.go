package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultCacheTimeToLiveDays is four years, leap day included.
const DefaultCacheTimeToLiveDays = 1461

// CachingConfig holds configuration for the caching headers filter
type CachingConfig struct {
	// TimeToLive is how long clients may cache the response
	TimeToLive time.Duration
}

// DefaultCachingConfig returns the default caching configuration
func DefaultCachingConfig() CachingConfig {
	return CachingConfig{TimeToLive: DaysToDuration(DefaultCacheTimeToLiveDays)}
}

// DaysToDuration converts a whole number of days to a duration.
func DaysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// now is replaced in tests
var now = time.Now

// CachingHeaders returns a middleware that marks responses as cacheable
// for config.TimeToLive. Last-Modified is the time the middleware was built.
func CachingHeaders(config CachingConfig) func(http.Handler) http.Handler {
	ttl := config.TimeToLive
	if ttl <= 0 {
		ttl = DefaultCachingConfig().TimeToLive
	}
	cacheControl := fmt.Sprintf("max-age=%d, public", int64(ttl/time.Second))
	lastModified := now().UTC().Format(http.TimeFormat)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", cacheControl)
			h.Set("Pragma", "cache")
			h.Set("Expires", now().Add(ttl).UTC().Format(http.TimeFormat))
			h.Set("Last-Modified", lastModified)

			next.ServeHTTP(w, r)
		})
	}
}
