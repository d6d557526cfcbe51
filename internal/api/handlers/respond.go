package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chatflow/chatflow/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an error to its HTTP status and static client message.
// Store failures are logged with their cause; the cause never reaches the
// response body.
func writeError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	if status >= 500 {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": apierr.ClientMessage(err)})
}
