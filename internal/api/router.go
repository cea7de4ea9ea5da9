package api

import (
	"log/slog"
	"net/http"
	"time"
)

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(m Monitor, pushInterval time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(m, logger)

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /submit", h.Submit)
	mux.HandleFunc("GET /results", h.Results)
	mux.HandleFunc("GET /results/live", h.LiveResults(pushInterval))
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}
