package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// metricsHandler serves GET /metrics: one rendered exposition per request.
// A render only fails on a gathering or encoding bug, so a 500 here means a
// programming error, not a flaky sensor — probe failures were already
// absorbed upstream.
func metricsHandler(renderer Renderer, logger *zap.Logger) http.HandlerFunc {
	contentType := string(expfmt.NewFormat(expfmt.TypeTextPlain))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := renderer.Render(r.Context())
		if err != nil {
			logger.Error("Render failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// healthHandler serves GET /health with the process status and uptime.
func healthHandler(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
