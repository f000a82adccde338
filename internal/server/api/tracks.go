package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aei/innovision/internal/session"
)

// TracksHandler exposes the live notes and the lock controls.
type TracksHandler struct {
	controller Controller
}

// NewTracksHandler creates a TracksHandler.
func NewTracksHandler(c Controller) *TracksHandler {
	return &TracksHandler{controller: c}
}

// Register adds the handler's routes to r.
func (h *TracksHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/tracks", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks/{id:[0-9]+}/lock", h.lock).Methods(http.MethodPost)
	r.HandleFunc("/api/tracks/{id:[0-9]+}/lock", h.unlock).Methods(http.MethodDelete)
	r.HandleFunc("/api/reset", h.reset).Methods(http.MethodPost)
}

type tracksResponse struct {
	SessionID string         `json:"sessionId"`
	Notes     []session.Note `json:"notes"`
}

type lockRequest struct {
	Text string `json:"text"`
}

func (h *TracksHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tracksResponse{
		SessionID: h.controller.SessionID(),
		Notes:     h.controller.Notes(),
	})
}

func (h *TracksHandler) lock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.controller.Lock(id, req.Text)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *TracksHandler) unlock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	if err := h.controller.Unlock(id); err != nil {
		writeSessionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TracksHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownTrack):
		writeError(w, http.StatusNotFound, "Track not found")
	case errors.Is(err, session.ErrEmptyText):
		writeError(w, http.StatusUnprocessableEntity, "Note has no text to lock")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
