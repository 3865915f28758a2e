package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"kairos/internal/metrics"
	"kairos/internal/profile"
)

// Prefix is where the REST endpoints are mounted.
const Prefix = "/app/rest"

// Database is what the REST endpoints need from the application database.
type Database interface {
	Ping(ctx context.Context) error
	GetStats() metrics.Stats
	GetStartedAt(ctx context.Context) (time.Time, error)
}

type Handlers struct {
	db        Database
	profiles  profile.Set
	startTime time.Time
	router    *mux.Router
}

func New(db Database, profiles profile.Set) *Handlers {
	h := &Handlers{
		db:        db,
		profiles:  profiles,
		startTime: time.Now(),
	}

	r := mux.NewRouter()
	api := r.PathPrefix(Prefix).Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead).Name("health")
	api.HandleFunc("/health/live", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	api.HandleFunc("/health/ready", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead).Name("readiness")
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
	api.HandleFunc("/profiles", h.GetProfiles).Methods(http.MethodGet).Name("profiles")
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	h.router = r

	return h
}

// Router exposes the REST routes for startup logging.
func (h *Handlers) Router() *mux.Router {
	return h.router
}

// ServeHTTP implements http.Handler
func (h *Handlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}
