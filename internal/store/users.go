package store

import (
	"database/sql"
	"fmt"
)

// UpsertUserProfile saves or refreshes a user's display profile.
func (s *Store) UpsertUserProfile(m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var photo sql.NullString
	if m.PhotoURL != "" {
		photo = sql.NullString{String: m.PhotoURL, Valid: true}
	}

	_, err := s.db.Exec(`
	INSERT INTO users (uid, display_name, photo_url) VALUES (?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET display_name = excluded.display_name, photo_url = excluded.photo_url
	`, m.UID, m.DisplayName, photo)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

// GetUserProfile retrieves one profile. Returns nil, nil if unknown.
func (s *Store) GetUserProfile(uid string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &Member{}
	var photo sql.NullString
	err := s.db.QueryRow(`SELECT uid, display_name, photo_url FROM users WHERE uid = ?`, uid).
		Scan(&m.UID, &m.DisplayName, &photo)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	if photo.Valid {
		m.PhotoURL = photo.String
	}
	return m, nil
}
