// Package session holds the user-facing state layered on top of tracks:
// which notes are locked, what text they carry and whether they have been
// uploaded. All state is keyed by track ID and safe for concurrent use.
package session

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aei/innovision/internal/tracker"
)

var (
	// ErrEmptyText is returned when locking a note without text.
	ErrEmptyText = errors.New("note text is empty")

	// ErrUnknownTrack is returned for track IDs not in the latest snapshot.
	ErrUnknownTrack = errors.New("unknown track")
)

// Note is a track annotated with session state.
type Note struct {
	tracker.Track
	Text      string `json:"text"`
	Locked    bool   `json:"locked"`
	Uploaded  bool   `json:"uploaded"`
	Uploading bool   `json:"uploading"`
}

// Session tracks lock and upload state for one camera session.
type Session struct {
	id string

	mu        sync.RWMutex
	current   map[int]tracker.Track
	order     []int
	texts     map[int]string
	locked    map[int]string
	lastSeen  map[int]tracker.Track
	uploaded  map[int]bool
	uploading map[int]string // text in flight
}

// New creates an empty Session with a random ID.
func New() *Session {
	s := &Session{id: uuid.New().String()}
	s.clear()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) clear() {
	s.current = make(map[int]tracker.Track)
	s.order = nil
	s.texts = make(map[int]string)
	s.locked = make(map[int]string)
	s.lastSeen = make(map[int]tracker.Track)
	s.uploaded = make(map[int]bool)
	s.uploading = make(map[int]string)
}

// Observe records the latest tracks and any freshly read text, and returns
// the annotated notes in track order. Locked notes keep their locked text.
func (s *Session) Observe(tracks []tracker.Track, texts map[int]string) []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, text := range texts {
		if text = normalize(text); text != "" {
			s.texts[id] = text
		}
	}

	s.current = make(map[int]tracker.Track, len(tracks))
	s.order = s.order[:0]
	for _, t := range tracks {
		if t.ID == 0 {
			continue
		}
		s.current[t.ID] = t
		s.order = append(s.order, t.ID)
		if _, ok := s.locked[t.ID]; ok {
			s.lastSeen[t.ID] = t
		}
	}

	return s.notesLocked(tracks)
}

// Notes returns the annotated notes of the latest snapshot.
func (s *Session) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := make([]tracker.Track, 0, len(s.order))
	for _, id := range s.order {
		tracks = append(tracks, s.current[id])
	}
	return s.notesLocked(tracks)
}

func (s *Session) notesLocked(tracks []tracker.Track) []Note {
	notes := make([]Note, 0, len(tracks))
	for _, t := range tracks {
		n := Note{Track: t, Text: s.texts[t.ID]}
		if text, ok := s.locked[t.ID]; ok {
			n.Locked = true
			n.Text = text
		}
		n.Uploaded = s.uploaded[t.ID]
		_, n.Uploading = s.uploading[t.ID]
		notes = append(notes, n)
	}
	return notes
}

// Lock confirms a note with the given text. An empty text falls back to the
// last text read for the track.
func (s *Session) Lock(id int, text string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.current[id]
	if !ok {
		return Note{}, ErrUnknownTrack
	}

	text = normalize(text)
	if text == "" {
		text = s.texts[id]
	}
	if text == "" {
		return Note{}, ErrEmptyText
	}

	if prev, ok := s.locked[id]; ok && prev != text {
		delete(s.uploaded, id)
		delete(s.uploading, id)
	}
	s.locked[id] = text
	s.lastSeen[id] = t
	s.texts[id] = text
	return Note{Track: t, Text: text, Locked: true, Uploaded: s.uploaded[id]}, nil
}

// Unlock releases a locked note. Unlocking also clears its upload status so
// that a later lock uploads again.
func (s *Session) Unlock(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locked[id]; !ok {
		if _, known := s.current[id]; !known {
			return ErrUnknownTrack
		}
		return nil
	}
	delete(s.locked, id)
	delete(s.lastSeen, id)
	delete(s.uploaded, id)
	delete(s.uploading, id)
	return nil
}

// Toggle locks an unlocked note or unlocks a locked one. It reports the new
// locked state.
func (s *Session) Toggle(id int, text string) (bool, error) {
	s.mu.RLock()
	_, locked := s.locked[id]
	s.mu.RUnlock()

	if locked {
		return false, s.Unlock(id)
	}
	if _, err := s.Lock(id, text); err != nil {
		return false, err
	}
	return true, nil
}

// Text returns the last text read or locked for a track.
func (s *Session) Text(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if text, ok := s.locked[id]; ok {
		return text
	}
	return s.texts[id]
}

// IsLocked reports whether a track is locked.
func (s *Session) IsLocked(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.locked[id]
	return ok
}

// Pending returns the locked notes that still need uploading, ordered by
// track ID. Notes whose track has left the frame are included with their
// last known box.
func (s *Session) Pending() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Note
	for id, text := range s.locked {
		if text == "" || s.uploaded[id] {
			continue
		}
		if _, inFlight := s.uploading[id]; inFlight {
			continue
		}
		t := s.lastSeen[id]
		pending = append(pending, Note{Track: t, Text: text, Locked: true})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID < pending[j].ID
	})
	return pending
}

// MarkUploading flags notes as in flight with the text being sent.
func (s *Session) MarkUploading(notes ...Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.uploading[n.ID] = n.Text
	}
}

// MarkUploaded records a successful upload. Notes unlocked or re-locked with
// other text since the upload started are left pending.
func (s *Session) MarkUploaded(notes ...Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.clearInFlight(n)
		if text, ok := s.locked[n.ID]; ok && text == n.Text {
			s.uploaded[n.ID] = true
		}
	}
}

// MarkFailed returns notes to the pending state.
func (s *Session) MarkFailed(notes ...Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.clearInFlight(n)
	}
}

// clearInFlight clears the in-flight flag set for this upload. A newer upload
// of the same track keeps its flag.
func (s *Session) clearInFlight(n Note) {
	if text, ok := s.uploading[n.ID]; ok && text == n.Text {
		delete(s.uploading, n.ID)
	}
}

// Counts returns the number of locked and uploaded notes.
func (s *Session) Counts() (locked, uploaded int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locked), len(s.uploaded)
}

// Reset clears all session state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// normalize flattens multi-line OCR output to a single trimmed line.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}
