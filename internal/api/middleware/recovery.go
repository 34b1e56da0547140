package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/voxelmed/voxelmed/internal/api/response"
)

// Recovery turns a handler panic into a 500 so one bad request cannot take
// the server down. It only covers the request path; the detached inference
// run carries its own recover in the orchestrator.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
