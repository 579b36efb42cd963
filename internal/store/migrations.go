package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Gestures table - mirrors the recognizer's gesture list
		`CREATE TABLE IF NOT EXISTS gestures (
			name TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0 CHECK(count >= 0),
			color TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sessions table - one row per connection cycle
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			end_reason TEXT NOT NULL DEFAULT ''
		)`,

		// Detections table - every gesture reported by the recognizer
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			gesture TEXT NOT NULL,
			session_id TEXT REFERENCES sessions(id) ON DELETE SET NULL,
			detected_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_detected_at ON detections(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_session_id ON detections(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
