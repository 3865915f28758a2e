package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"kairos/internal/logging"
	"kairos/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	healthCheckTimeout = 2 * time.Second
)

// DatabaseHealth describes the database part of a health check
type DatabaseHealth struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	SizeBytes int64  `json:"sizeBytes"`
	WALBytes  int64  `json:"walBytes"`
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	StartedAt string         `json:"startedAt"`
	Uptime    string         `json:"uptime"`
	Profiles  []string       `json:"profiles"`
	Database  DatabaseHealth `json:"database"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	startedAt := h.startTime
	if recorded, err := h.db.GetStartedAt(ctx); err == nil && !recorded.IsZero() {
		startedAt = recorded
	}

	stats := h.db.GetStats()
	response := HealthResponse{
		Status:    statusHealthy,
		Version:   startup.Version,
		StartedAt: startedAt.Format(time.RFC3339),
		Uptime:    time.Since(startedAt).Round(time.Second).String(),
		Profiles:  h.profiles.Active(),
		Database: DatabaseHealth{
			Status:    statusHealthy,
			SizeBytes: stats.MainBytes,
			WALBytes:  stats.WALBytes,
		},
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.db.Ping(ctx); err != nil {
		logging.Warn("Health check: database unreachable: %v", err)
		response.Status = statusDegraded
		response.Database.Status = statusDegraded
		response.Database.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if response.Status != statusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready", http.StatusOK)
}
