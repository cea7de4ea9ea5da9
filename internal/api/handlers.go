package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pingwatch/internal/models"
	"pingwatch/internal/monitor"
)

// Monitor is the application surface the handlers depend on.
type Monitor interface {
	Submit(ctx context.Context, candidate string) error
	Results(ctx context.Context) ([]models.Result, error)
	Healthy(ctx context.Context) error
}

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	monitor Monitor
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(m Monitor, logger *slog.Logger) *Handlers {
	return &Handlers{monitor: m, logger: logger}
}

type submitRequest struct {
	URL *string `json:"url"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type resultsResponse struct {
	Items []models.Result `json:"items"`
}

// Index redirects to the results page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/results", http.StatusFound)
}

// Submit accepts a new target, probes it and records the result.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var reqBody submitRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil || reqBody.URL == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be a JSON object with a url field"})
		return
	}

	err := h.monitor.Submit(r.Context(), *reqBody.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, messageResponse{Message: "URL submitted successfully"})
	case errors.Is(err, monitor.ErrInvalidTarget):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("error submitting url", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// Results renders all recorded results, as HTML by default or as JSON when
// requested through the Accept header or ?format=json.
func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.monitor.Results(r.Context())
	if err != nil {
		h.logger.Error("error reading results", slog.Any("err", err))
		if wantsJSON(r) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, resultsResponse{Items: results})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultsPage.Execute(w, newResultsView(results)); err != nil {
		h.logger.Error("error rendering results", slog.Any("err", err))
	}
}

// Healthz reports whether the store is reachable.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Healthy(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.Any("err", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
