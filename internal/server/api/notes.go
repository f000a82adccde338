package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aei/innovision/internal/store"
)

// NotesHandler serves stored notes.
type NotesHandler struct {
	store *store.Store
}

// NewNotesHandler creates a NotesHandler with the given store.
func NewNotesHandler(s *store.Store) *NotesHandler {
	return &NotesHandler{store: s}
}

// Register adds the handler's routes to r.
func (h *NotesHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/notes", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/notes/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/notes/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions", h.sessions).Methods(http.MethodGet)
}

type notesResponse struct {
	Notes []*store.Note `json:"notes"`
}

type sessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// list handles GET /api/notes, optionally filtered by ?session=.
func (h *NotesHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		notes []*store.Note
		err   error
	)
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		notes, err = h.store.Notes().ListBySession(sessionID)
	} else {
		notes, err = h.store.Notes().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notes")
		return
	}
	if notes == nil {
		notes = []*store.Note{}
	}

	writeJSON(w, http.StatusOK, notesResponse{Notes: notes})
}

func (h *NotesHandler) get(w http.ResponseWriter, r *http.Request) {
	note, err := h.store.Notes().GetByID(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get note")
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *NotesHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Notes().Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotesHandler) sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}

	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}
