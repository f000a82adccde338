package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/aei/innovision/internal/geometry"
)

// NoteStatus is the upload state of a stored note.
type NoteStatus string

const (
	// NoteLocked is a note confirmed by the user but not yet uploaded.
	NoteLocked NoteStatus = "locked"
	// NoteUploaded is a note accepted by the backend.
	NoteUploaded NoteStatus = "uploaded"
	// NoteFailed is a note whose last upload attempt failed.
	NoteFailed NoteStatus = "failed"
)

// Note is a locked post-it.
type Note struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"sessionId"`
	TrackID    int          `json:"trackId"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"box"`
	Status     NoteStatus   `json:"status"`
	RemoteID   string       `json:"remoteId,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

const noteColumns = `id, session_id, track_id, text, confidence,
	box_left, box_top, box_right, box_bottom, status, remote_id, created_at, updated_at`

// NoteRepository provides CRUD operations for notes.
type NoteRepository struct {
	db *sql.DB
}

// Notes returns the note repository for this store.
func (s *Store) Notes() *NoteRepository {
	return &NoteRepository{db: s.db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*Note, error) {
	n := &Note{}
	var status string
	err := row.Scan(&n.ID, &n.SessionID, &n.TrackID, &n.Text, &n.Confidence,
		&n.Box.Left, &n.Box.Top, &n.Box.Right, &n.Box.Bottom,
		&status, &n.RemoteID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Status = NoteStatus(status)
	return n, nil
}

// Create inserts a note. A note for the same session and track replaces the
// previous one, keeping its ID.
func (r *NoteRepository) Create(n *Note) error {
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = NoteLocked
	}

	err := r.db.QueryRow(
		`INSERT INTO notes (`+noteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, track_id) DO UPDATE SET
			text = excluded.text,
			confidence = excluded.confidence,
			box_left = excluded.box_left,
			box_top = excluded.box_top,
			box_right = excluded.box_right,
			box_bottom = excluded.box_bottom,
			status = excluded.status,
			updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		n.ID, n.SessionID, n.TrackID, n.Text, n.Confidence,
		n.Box.Left, n.Box.Top, n.Box.Right, n.Box.Bottom,
		string(n.Status), n.RemoteID, n.CreatedAt, n.UpdatedAt,
	).Scan(&n.ID, &n.CreatedAt)
	return err
}

// GetByID retrieves a note by its ID.
func (r *NoteRepository) GetByID(id string) (*Note, error) {
	n, err := scanNote(r.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// GetByTrack retrieves the note stored for a track within a session.
func (r *NoteRepository) GetByTrack(sessionID string, trackID int) (*Note, error) {
	n, err := scanNote(r.db.QueryRow(
		`SELECT `+noteColumns+` FROM notes WHERE session_id = ? AND track_id = ?`,
		sessionID, trackID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// List retrieves all notes, newest first.
func (r *NoteRepository) List() ([]*Note, error) {
	return r.query(`SELECT ` + noteColumns + ` FROM notes ORDER BY created_at DESC`)
}

// ListBySession retrieves a session's notes ordered by track ID.
func (r *NoteRepository) ListBySession(sessionID string) ([]*Note, error) {
	return r.query(`SELECT `+noteColumns+` FROM notes WHERE session_id = ? ORDER BY track_id`, sessionID)
}

func (r *NoteRepository) query(q string, args ...any) ([]*Note, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

// UpdateStatus sets a note's upload status and the ID the backend gave it.
func (r *NoteRepository) UpdateStatus(id string, status NoteStatus, remoteID string) error {
	result, err := r.db.Exec(
		`UPDATE notes SET status = ?, remote_id = ?, updated_at = ? WHERE id = ?`,
		string(status), remoteID, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a note by its ID.
func (r *NoteRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
