// Package httpx provides the JSON response helpers shared by the
// handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorPayload is the wire shape of a JSON error:
// {"error":{"code":"...","message":"..."}}
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v with the JSON content type and the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with a consistent shape.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"error": ErrorPayload{Code: http.StatusText(status), Message: message},
	})
}
