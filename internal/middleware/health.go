package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything whose health can be checked, such as the database
type Pinger interface {
	Health(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler reports 200 when the database answers within timeout and
// 503 otherwise
func HealthHandler(db Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK
		if err := db.Health(ctx); err != nil {
			slog.Default().Warn("Health check failed", "error", err)
			resp = healthResponse{Status: "unavailable", Database: err.Error()}
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
