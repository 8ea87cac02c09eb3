package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendActivity records one line in a team's live feed.
func (s *Store) AppendActivity(teamID, kind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendActivityLocked(teamID, kind, message)
}

func (s *Store) appendActivityLocked(teamID, kind, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO activity (id, team_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), teamID, kind, message, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivity returns the newest feed lines for a team, newest first.
func (s *Store) ListActivity(teamID string, limit int) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
	SELECT id, team_id, kind, message, created_at FROM activity
	WHERE team_id = ? ORDER BY created_at DESC LIMIT ?
	`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var items []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.TeamID, &a.Kind, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
