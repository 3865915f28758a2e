package console

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"kairos/internal/database"
	"kairos/internal/logging"
	"kairos/internal/metrics"
	"kairos/internal/middleware"
)

// DefaultPrefix is where the console is mounted.
const DefaultPrefix = "/console"

// DefaultMaxRows caps query results when Config.MaxRows is unset.
const DefaultMaxRows = 1000

const realm = "Database Console"

//go:embed templates/console.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/console.html"))

// ErrNotReady is returned for requests served before Init or after Destroy.
var ErrNotReady = errors.New("console is not available")

// Store is the database the console runs statements against.
type Store interface {
	Path() string
	Ping(ctx context.Context) error
	Tables(ctx context.Context) ([]string, error)
	Execute(ctx context.Context, stmt string, maxRows int) (*database.Result, error)
}

// Config holds console settings.
type Config struct {
	Prefix string
	// PasswordHash enables HTTP basic auth when set. Any user name is
	// accepted.
	PasswordHash string
	MaxRows      int
	Registry     *metrics.Registry
}

// Servlet is a web SQL console over a Store.
type Servlet struct {
	store  Store
	config Config
	router *mux.Router
	ready  atomic.Bool
}

type pageData struct {
	Path    string
	Action  string
	Tables  []string
	SQL     string
	Result  *database.Result
	Error   string
	MaxRows int
}

// New creates the console. It does not touch the store until Init.
func New(store Store, config Config) *Servlet {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	config.Prefix = strings.TrimSuffix(config.Prefix, "/")
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultMaxRows
	}

	s := &Servlet{store: store, config: config}

	r := mux.NewRouter()
	r.Use(s.requireReady)
	// Statements are only accepted from pages served by this origin
	r.Use(http.NewCrossOriginProtection().Handler)
	if config.PasswordHash != "" {
		r.Use(s.basicAuth)
	}
	r.Handle(config.Prefix, http.RedirectHandler(config.Prefix+"/", http.StatusMovedPermanently)).
		Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(config.Prefix+"/", s.handlePage).Methods(http.MethodGet, http.MethodHead).Name("console")
	r.HandleFunc(config.Prefix+"/", s.handleExecute).Methods(http.MethodPost).Name("console-execute")
	r.HandleFunc(config.Prefix+"/tables", s.handleTables).Methods(http.MethodGet).Name("console-tables")
	s.router = r

	return s
}

// Router exposes the console routes for startup logging.
func (s *Servlet) Router() *mux.Router {
	return s.router
}

// Init verifies the database is reachable.
func (s *Servlet) Init(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("console database unavailable: %w", err)
	}
	s.ready.Store(true)
	logging.Info("Database console available at %s/ (%s)", s.config.Prefix, s.store.Path())
	if s.config.PasswordHash == "" {
		logging.Warn("Database console has no password configured")
	}
	return nil
}

// Destroy stops serving. The store is owned by the caller.
func (s *Servlet) Destroy() error {
	s.ready.Store(false)
	logging.Debug("Database console stopped")
	return nil
}

// ServeHTTP implements http.Handler
func (s *Servlet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Servlet) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			http.Error(w, ErrNotReady.Error(), http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Servlet) basicAuth(next http.Handler) http.Handler {
	hash := []byte(s.config.PasswordHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
			if ok {
				logging.Warn("Console authentication failed from %s", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Servlet) handlePage(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r)
	data.SQL = r.URL.Query().Get("sql")
	s.render(w, http.StatusOK, data)
}

func (s *Servlet) handleExecute(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r)

	if err := r.ParseForm(); err != nil {
		data.Error = "Invalid form: " + err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}
	data.SQL = r.PostFormValue("sql")

	result, err := s.execute(r, data.SQL)
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}
	data.Result = result

	// DDL may have changed the table list.
	if !result.IsQuery {
		data.Tables = s.tables(r)
	}

	s.render(w, http.StatusOK, data)
}

func (s *Servlet) execute(r *http.Request, stmt string) (*database.Result, error) {
	kind := "exec"
	if database.IsQuery(stmt) {
		kind = "query"
	}

	done := middleware.StartTiming(r, "db")
	result, err := s.store.Execute(r.Context(), stmt, s.config.MaxRows)
	done()

	if reg := s.config.Registry; reg != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		reg.ConsoleQueryTotal.WithLabelValues(kind, status).Inc()
		if err == nil && result.IsQuery {
			reg.ConsoleRowsReturned.Observe(float64(len(result.Rows)))
		}
	}

	if err != nil {
		logging.Debug("Console %s failed: %v", kind, err)
		return nil, err
	}

	logging.Debug("Console %s completed in %v (rows=%d affected=%d truncated=%v)",
		kind, result.Duration, len(result.Rows), result.RowsAffected, result.Truncated)
	return result, nil
}

func (s *Servlet) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.Tables(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		logging.Error("Console failed to list tables: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": err.Error()})
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, map[string][]string{"tables": tables})
}

func (s *Servlet) newPage(r *http.Request) pageData {
	return pageData{
		Path:    s.store.Path(),
		Action:  s.config.Prefix + "/",
		Tables:  s.tables(r),
		MaxRows: s.config.MaxRows,
	}
}

func (s *Servlet) tables(r *http.Request) []string {
	tables, err := s.store.Tables(r.Context())
	if err != nil {
		logging.Warn("Console failed to list tables: %v", err)
		return nil
	}
	return tables
}

func (s *Servlet) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		logging.Error("failed to render console page: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}
