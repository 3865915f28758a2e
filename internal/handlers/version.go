package handlers

import (
	"net/http"

	"kairos/internal/profile"
	"kairos/internal/startup"
)

// ProfilesResponse lists the active deployment profiles
type ProfilesResponse struct {
	Active      []string `json:"activeProfiles"`
	Development bool     `json:"dev"`
	Production  bool     `json:"prod"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	buildInfo := startup.GetBuildInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, buildInfo)
}

// GetProfiles returns the active profiles
func (h *Handlers) GetProfiles(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ProfilesResponse{
		Active:      h.profiles.Active(),
		Development: h.profiles.IsActive(profile.Development),
		Production:  h.profiles.IsActive(profile.Production),
	})
}
