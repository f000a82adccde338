package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aei/innovision/internal/upload"
)

// SettingsHandler reads and changes the upload endpoint and the OCR
// suggestion list.
type SettingsHandler struct {
	controller Controller
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(c Controller) *SettingsHandler {
	return &SettingsHandler{controller: c}
}

// Register adds the handler's routes to r.
func (h *SettingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/settings/endpoint", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/settings/endpoint", h.put).Methods(http.MethodPut)
	r.HandleFunc("/api/settings/suggestions", h.getSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/api/settings/suggestions", h.putSuggestions).Methods(http.MethodPut)
}

type endpointBody struct {
	URL string `json:"url"`
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, endpointBody{URL: h.controller.Endpoint().String()})
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var req endpointBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	endpoint, err := upload.ParseEndpoint(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.SetEndpoint(endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save endpoint")
		return
	}

	writeJSON(w, http.StatusOK, endpointBody{URL: endpoint.String()})
}

type suggestionsBody struct {
	Suggestions []string `json:"suggestions"`
}

func (h *SettingsHandler) getSuggestions(w http.ResponseWriter, r *http.Request) {
	list := h.controller.Suggestions()
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, suggestionsBody{Suggestions: list})
}

func (h *SettingsHandler) putSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.controller.SetSuggestions(req.Suggestions); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save suggestions")
		return
	}

	h.getSuggestions(w, r)
}
