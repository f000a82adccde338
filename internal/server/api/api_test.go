package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"github.com/aei/innovision/internal/detector"
	"github.com/aei/innovision/internal/geometry"
	"github.com/aei/innovision/internal/session"
	"github.com/aei/innovision/internal/store"
	"github.com/aei/innovision/internal/tracker"
	"github.com/aei/innovision/internal/upload"
)

// fakeController wraps a real session with a fixed set of tracks.
type fakeController struct {
	session  *session.Session
	endpoint    upload.Endpoint
	suggestions []string
	resets      int
}

func newFakeController() *fakeController {
	s := session.New()
	s.Observe([]tracker.Track{{
		ID: 1,
		Detection: detector.Detection{
			Box:   geometry.Box{Left: 10, Top: 10, Right: 60, Bottom: 60},
			Label: detector.DefaultLabel,
			Score: 0.9,
		},
	}, {
		ID:        2,
		Detection: detector.Detection{Box: geometry.Box{Left: 100, Top: 10, Right: 150, Bottom: 60}, Score: 0.7},
	}}, map[int]string{1: "Cool Stuff"})
	return &fakeController{session: s, endpoint: upload.DefaultEndpoint}
}

func (c *fakeController) Notes() []session.Note { return c.session.Notes() }
func (c *fakeController) Lock(id int, text string) (session.Note, error) {
	return c.session.Lock(id, text)
}
func (c *fakeController) Unlock(id int) error            { return c.session.Unlock(id) }
func (c *fakeController) Reset()                         { c.resets++; c.session.Reset() }
func (c *fakeController) SessionID() string              { return c.session.ID() }
func (c *fakeController) Endpoint() upload.Endpoint      { return c.endpoint }
func (c *fakeController) SetEndpoint(e upload.Endpoint) error {
	c.endpoint = e
	return nil
}
func (c *fakeController) Suggestions() []string { return c.suggestions }
func (c *fakeController) SetSuggestions(list []string) error {
	c.suggestions = nil
	for _, v := range list {
		if v != "" {
			c.suggestions = append(c.suggestions, v)
		}
	}
	return nil
}

func newRouter(c Controller, s *store.Store) *mux.Router {
	r := mux.NewRouter()
	NewTracksHandler(c).Register(r)
	NewSettingsHandler(c).Register(r)
	if s != nil {
		NewNotesHandler(s).Register(r)
	}
	return r
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTracksHandler_List(t *testing.T) {
	c := newFakeController()
	rec := do(t, newRouter(c, nil), http.MethodGet, "/api/tracks", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		SessionID string `json:"sessionId"`
		Notes     []struct {
			ID     int    `json:"id"`
			Text   string `json:"text"`
			Locked bool   `json:"locked"`
		} `json:"notes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.SessionID != c.SessionID() {
		t.Errorf("sessionId = %q, want %q", resp.SessionID, c.SessionID())
	}
	if len(resp.Notes) != 2 || resp.Notes[0].ID != 1 || resp.Notes[0].Text != "Cool Stuff" {
		t.Errorf("notes = %+v", resp.Notes)
	}
}

func TestTracksHandler_Lock(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{name: "uses OCR text", path: "/api/tracks/1/lock", wantStatus: http.StatusOK},
		{name: "explicit text", path: "/api/tracks/2/lock", body: `{"text":"Edited"}`, wantStatus: http.StatusOK},
		{name: "no text", path: "/api/tracks/2/lock", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown track", path: "/api/tracks/9/lock", wantStatus: http.StatusNotFound},
		{name: "bad body", path: "/api/tracks/1/lock", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "non-numeric id", path: "/api/tracks/abc/lock", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newRouter(newFakeController(), nil), http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTracksHandler_Unlock(t *testing.T) {
	c := newFakeController()
	router := newRouter(c, nil)

	if rec := do(t, router, http.MethodPost, "/api/tracks/1/lock", ""); rec.Code != http.StatusOK {
		t.Fatalf("lock status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/api/tracks/1/lock", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("unlock status = %d", rec.Code)
	}
	if c.session.IsLocked(1) {
		t.Error("track 1 still locked")
	}
	if rec := do(t, router, http.MethodDelete, "/api/tracks/9/lock", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unlock unknown status = %d, want 404", rec.Code)
	}
}

func TestTracksHandler_Reset(t *testing.T) {
	c := newFakeController()
	rec := do(t, newRouter(c, nil), http.MethodPost, "/api/reset", "")

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if c.resets != 1 {
		t.Errorf("resets = %d, want 1", c.resets)
	}
}

func TestSettingsHandler(t *testing.T) {
	c := newFakeController()
	router := newRouter(c, nil)

	rec := do(t, router, http.MethodPut, "/api/settings/endpoint", `{"url":"http://10.0.0.9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	if c.endpoint.Host != "10.0.0.9" || c.endpoint.Port != 80 {
		t.Errorf("endpoint = %+v", c.endpoint)
	}

	rec = do(t, router, http.MethodGet, "/api/settings/endpoint", "")
	var body struct {
		URL string `json:"url"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.URL != "http://10.0.0.9:80" {
		t.Errorf("url = %q", body.URL)
	}

	if rec := do(t, router, http.MethodPut, "/api/settings/endpoint", `{"url":"ftp://x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid URL status = %d, want 400", rec.Code)
	}
}

func TestSettingsHandler_Suggestions(t *testing.T) {
	c := newFakeController()
	router := newRouter(c, nil)

	var body struct {
		Suggestions []string `json:"suggestions"`
	}

	rec := do(t, router, http.MethodGet, "/api/settings/suggestions", "")
	json.NewDecoder(rec.Body).Decode(&body)
	if rec.Code != http.StatusOK || body.Suggestions == nil || len(body.Suggestions) != 0 {
		t.Fatalf("GET = %d %q, want an empty list", rec.Code, body.Suggestions)
	}

	rec = do(t, router, http.MethodPut, "/api/settings/suggestions", `{"suggestions":["Retro","","Roadmap"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Suggestions) != 2 || body.Suggestions[0] != "Retro" || body.Suggestions[1] != "Roadmap" {
		t.Errorf("suggestions = %q", body.Suggestions)
	}

	if rec := do(t, router, http.MethodPut, "/api/settings/suggestions", `{"suggestions":"Retro"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", rec.Code)
	}
}

func TestNotesHandler(t *testing.T) {
	s := newTestStore(t)
	router := newRouter(newFakeController(), s)

	if err := s.Sessions().Create(&store.Session{ID: "session-1"}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	note := &store.Note{ID: "note-1", SessionID: "session-1", TrackID: 1, Text: "Cool Stuff", Confidence: 0.9}
	if err := s.Notes().Create(note); err != nil {
		t.Fatalf("failed to create note: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/notes", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var resp struct {
			Notes []store.Note `json:"notes"`
		}
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Notes) != 1 || resp.Notes[0].Text != "Cool Stuff" {
			t.Errorf("notes = %+v", resp.Notes)
		}
	})

	t.Run("list by unknown session is empty", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/notes?session=other", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if got := rec.Body.String(); got != "{\"notes\":[]}\n" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("get", func(t *testing.T) {
		if rec := do(t, router, http.MethodGet, "/api/notes/note-1", ""); rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec := do(t, router, http.MethodGet, "/api/notes/missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("sessions", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/sessions", "")
		var resp struct {
			Sessions []store.Session `json:"sessions"`
		}
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Sessions) != 1 {
			t.Errorf("sessions = %+v", resp.Sessions)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rec := do(t, router, http.MethodDelete, "/api/notes/note-1", ""); rec.Code != http.StatusNoContent {
			t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
		}
		if rec := do(t, router, http.MethodDelete, "/api/notes/note-1", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}
