package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/rack/internal/repository"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error  string `json:"error"`
	Output string `json:"output,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeRepositoryError maps repository sentinels onto HTTP status codes
func (a *API) writeRepositoryError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, repository.ErrInvalidEntity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseID reads a positive integer URL parameter
func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
