package startup

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"kairos/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
const DefaultMemoryRatio = 0.85

// MemoryLimit describes how GOMEMLIMIT was configured.
type MemoryLimit struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureMemoryLimit derives GOMEMLIMIT from MEMORY_LIMIT (bytes, e.g.
// from the Kubernetes Downward API) and MEMORY_RATIO. An explicit
// GOMEMLIMIT wins.
func ConfigureMemoryLimit() MemoryLimit {
	if os.Getenv("GOMEMLIMIT") != "" {
		limit := debug.SetMemoryLimit(-1)
		if limit <= 0 || limit == math.MaxInt64 {
			return MemoryLimit{Source: "none"}
		}
		return MemoryLimit{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: limit}
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		return MemoryLimit{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return MemoryLimit{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if rawRatio := os.Getenv("MEMORY_RATIO"); rawRatio != "" {
		parsed, err := strconv.ParseFloat(rawRatio, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			logging.Warn("Ignoring invalid MEMORY_RATIO %q, using %.2f", rawRatio, DefaultMemoryRatio)
		} else {
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	return MemoryLimit{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// formatBytes formats bytes into a human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
