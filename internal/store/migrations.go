package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per camera session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Notes table - post-its locked by the user
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			confidence REAL NOT NULL,
			box_left REAL NOT NULL,
			box_top REAL NOT NULL,
			box_right REAL NOT NULL,
			box_bottom REAL NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('locked', 'uploaded', 'failed')),
			remote_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, track_id)
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notes_session_id ON notes(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
