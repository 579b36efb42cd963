package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Detection is one gesture reported by the recognizer.
type Detection struct {
	ID         string    `json:"id"`
	Gesture    string    `json:"gesture"`
	SessionID  string    `json:"session_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectionRepository stores the detection history.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Create inserts d, assigning an ID and timestamp when missing.
func (r *DetectionRepository) Create(d *Detection) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now()
	}

	var session any
	if d.SessionID != "" {
		session = d.SessionID
	}

	_, err := r.db.Exec(
		`INSERT INTO detections (id, gesture, session_id, detected_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Gesture, session, d.DetectedAt,
	)
	return err
}

// Recent returns up to limit detections, newest first.
func (r *DetectionRepository) Recent(limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, gesture, session_id, detected_at FROM detections
		 ORDER BY detected_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detections := []*Detection{}
	for rows.Next() {
		d := &Detection{}
		var session sql.NullString
		if err := rows.Scan(&d.ID, &d.Gesture, &session, &d.DetectedAt); err != nil {
			return nil, err
		}
		d.SessionID = session.String
		detections = append(detections, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detections, nil
}

// CountBySession returns how many detections a session produced.
func (r *DetectionRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM detections WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
