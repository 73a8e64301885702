package handlers

import (
	"encoding/json"
	"net/http"
)

// StatusResponse is the body the webhook replies with: "success" or "error"
// plus a human-readable message.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteStatus writes a StatusResponse with the given HTTP status.
func WriteStatus(w http.ResponseWriter, statusCode int, status, message string) error {
	return WriteJSON(w, statusCode, StatusResponse{Status: status, Message: message})
}
