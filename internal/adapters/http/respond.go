package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is a standard structure for returning errors in JSON format.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{Error: message}, logger)
}

// writeText answers the provider with a plain human-readable body.
func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
