package handler

import (
	"context"
	"net/http"

	"github.com/voxelmed/voxelmed/internal/api/response"
)

// Pinger reports connectivity for one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// It reports degraded with 503 when the database or cache is unreachable.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{
			"status":   "ok",
			"database": "up",
			"cache":    "up",
		}
		healthy := true

		if err := db.Ping(r.Context()); err != nil {
			status["database"] = "down"
			healthy = false
		}
		if err := cache.Ping(r.Context()); err != nil {
			status["cache"] = "down"
			healthy = false
		}

		if !healthy {
			status["status"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "One or more dependencies are down", status)
			return
		}

		response.JSON(w, status)
	}
}
