package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one recognition session, from connect to disconnect.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	EndReason string
}

// SessionRepository records recognition sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start records a new session. Starting an existing session is a no-op.
func (r *SessionRepository) Start(id string, at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, at,
	)
	return err
}

// End marks a session as finished. reason is empty for a manual stop.
func (r *SessionRepository) End(id string, at time.Time, reason string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		at, reason, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, ended_at, end_reason FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.StartedAt, &ended, &s.EndReason)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}
