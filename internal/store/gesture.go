package store

import (
	"database/sql"
	"errors"
	"time"
)

// Gesture is a stored gesture registry entry.
type Gesture struct {
	Name      string
	Count     int
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GestureRepository persists the gesture registry.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

// Upsert inserts g, or resets the count and colour of an existing gesture.
func (r *GestureRepository) Upsert(g *Gesture) error {
	now := time.Now()
	g.UpdatedAt = now
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}

	_, err := r.db.Exec(
		`INSERT INTO gestures (name, count, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET count = excluded.count, color = excluded.color, updated_at = excluded.updated_at`,
		g.Name, g.Count, g.Color, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// Replace swaps the full set of gestures in one transaction.
func (r *GestureRepository) Replace(gestures []*Gesture) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gestures`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO gestures (name, count, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, g := range gestures {
		g.CreatedAt = now
		g.UpdatedAt = now
		if _, err := stmt.Exec(g.Name, g.Count, g.Color, g.CreatedAt, g.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByName retrieves a gesture by its name.
func (r *GestureRepository) GetByName(name string) (*Gesture, error) {
	g := &Gesture{}

	err := r.db.QueryRow(
		`SELECT name, count, color, created_at, updated_at FROM gestures WHERE name = ?`,
		name,
	).Scan(&g.Name, &g.Count, &g.Color, &g.CreatedAt, &g.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return g, nil
}

// List retrieves all gestures ordered by name.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(
		`SELECT name, count, color, created_at, updated_at FROM gestures ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g := &Gesture{}
		if err := rows.Scan(&g.Name, &g.Count, &g.Color, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gestures, nil
}

// SetCount stores the observation count of a gesture.
func (r *GestureRepository) SetCount(name string, count int) error {
	result, err := r.db.Exec(
		`UPDATE gestures SET count = ?, updated_at = ? WHERE name = ?`,
		count, time.Now(), name,
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

// Delete removes a gesture by name.
func (r *GestureRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM gestures WHERE name = ?`, name)
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
