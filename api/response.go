package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON encodes data with the given status. Encoding failures after
// WriteHeader cannot reach the client anymore; they are only logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response body", "error", err)
	}
}

// ErrorResponse is the JSON shape of every error reply. Error is a
// stable machine-readable kind tag; Message is human-readable and never
// carries internal diagnostics.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}
