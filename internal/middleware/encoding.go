package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"kairos/internal/webconfig"
)

// DefaultEncoding is the charset applied when no encoding param is set.
const DefaultEncoding = "UTF-8"

// CharacterEncodingFilter sets the charset on request and response content
// types. Init params: encoding, forceEncoding.
type CharacterEncodingFilter struct {
	encoding string
	force    bool
}

// NewCharacterEncodingFilter returns a filter applying DefaultEncoding
// without forcing it.
func NewCharacterEncodingFilter() *CharacterEncodingFilter {
	return &CharacterEncodingFilter{encoding: DefaultEncoding}
}

// Init implements webconfig.Initializer.
func (f *CharacterEncodingFilter) Init(cfg webconfig.FilterConfig) error {
	if v, ok := cfg.Param("encoding"); ok {
		v = strings.TrimSpace(v)
		if v == "" {
			return fmt.Errorf("filter %s: empty encoding", cfg.Name)
		}
		f.encoding = v
	}
	if v, ok := cfg.Param("forceEncoding"); ok {
		force, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("filter %s: invalid forceEncoding %q: %w", cfg.Name, v, err)
		}
		f.force = force
	}
	return nil
}

// Encoding returns the configured charset.
func (f *CharacterEncodingFilter) Encoding() string { return f.encoding }

// Forced reports whether existing charsets are overridden.
func (f *CharacterEncodingFilter) Forced() bool { return f.force }

// DoFilter implements webconfig.Filter.
func (f *CharacterEncodingFilter) DoFilter(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if updated, ok := withCharset(ct, f.encoding, f.force); ok {
			r.Header.Set("Content-Type", updated)
		}
	}
	next.ServeHTTP(&charsetResponseWriter{ResponseWriter: w, filter: f}, r)
}

type charsetResponseWriter struct {
	http.ResponseWriter
	filter      *CharacterEncodingFilter
	wroteHeader bool
}

func (cw *charsetResponseWriter) applyCharset() {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true

	ct := cw.Header().Get("Content-Type")
	if ct == "" || !isTextual(ct) {
		return
	}
	if updated, ok := withCharset(ct, cw.filter.encoding, cw.filter.force); ok {
		cw.Header().Set("Content-Type", updated)
	}
}

func (cw *charsetResponseWriter) WriteHeader(code int) {
	cw.applyCharset()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *charsetResponseWriter) Write(b []byte) (int, error) {
	cw.applyCharset()
	return cw.ResponseWriter.Write(b)
}

func (cw *charsetResponseWriter) Flush() {
	cw.applyCharset()
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *charsetResponseWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// withCharset returns ct with its charset parameter set to enc. The second
// result is false when ct is left unchanged.
func withCharset(ct, enc string, force bool) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct, false
	}
	current, has := params["charset"]
	if has && (!force || strings.EqualFold(current, enc)) {
		return ct, false
	}
	params["charset"] = enc
	return mime.FormatMediaType(mediaType, params), true
}

func isTextual(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "+xml"), strings.HasSuffix(mediaType, "+json"):
		return true
	}
	switch mediaType {
	case "application/json", "application/javascript", "application/xml", "application/x-www-form-urlencoded":
		return true
	}
	return false
}
