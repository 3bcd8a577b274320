package main

import (
	"encoding/json"
	"net/http"

	"github.com/kyungseopkim/algorithm-trading/internal/stream"
	"github.com/kyungseopkim/algorithm-trading/internal/version"
	"github.com/kyungseopkim/algorithm-trading/internal/writer"
)

type sessionStatus interface {
	State() stream.State
	Stats() stream.Stats
}

type writerStatus interface {
	Stats() writer.Metrics
}

// createHealthHandler creates the HTTP handler for health checks.
// db may be nil when the database sink is disabled.
func createHealthHandler(session sessionStatus, db writerStatus) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Version,
			Components: make(map[string]any),
		}

		switch session.State() {
		case stream.Subscribed:
		case stream.Closing, stream.Closed:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}
		health.Components["stream"] = session.Stats()

		if db != nil {
			stats := db.Stats()
			health.Components["timescaledb"] = stats
			if stats.Errors > 0 && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
