// Package api provides the HTTP handlers for tracked notes, stored notes and settings.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/aei/innovision/internal/session"
	"github.com/aei/innovision/internal/upload"
)

// Controller is the live detection state the handlers act on.
type Controller interface {
	// Notes returns the annotated tracks of the latest frame.
	Notes() []session.Note
	Lock(trackID int, text string) (session.Note, error)
	Unlock(trackID int) error
	// Reset clears tracks and session state.
	Reset()
	SessionID() string
	Endpoint() upload.Endpoint
	SetEndpoint(e upload.Endpoint) error
	// Suggestions are the expected note texts OCR readings snap to.
	Suggestions() []string
	SetSuggestions(list []string) error
}

// errorResponse represents an error response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
