package httpx

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	healthResponse = `{"status":"ok"}`

	readinessTimeout = 2 * time.Second
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// readinessHandler checks each dependency and answers 503 naming the first that failed.
func readinessHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, c := range checks {
			if c == nil {
				continue
			}
			if err := c.Health(ctx); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":     "unavailable",
					"dependency": name,
					"error":      err.Error(),
				})
				return
			}
		}
		healthHandler(w, r)
	}
}
