package webapp

import (
	"net/http"
	"strings"
)

const indexPage = "index.html"

// newStaticServlet serves dir. http.FileServer answers ".../index.html"
// with a redirect to the directory, which would loop for forwarded
// requests, so those are served as the directory index instead.
func newStaticServlet(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/"+indexPage) {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimSuffix(r.URL.Path, indexPage)
			r2.URL.RawPath = ""
			files.ServeHTTP(w, r2)
			return
		}
		files.ServeHTTP(w, r)
	})
}
