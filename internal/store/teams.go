package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
)

// ErrAlreadyMember is returned when adding a user who is already on the roster.
var ErrAlreadyMember = errors.New("user is already a team member")

// CreateTeam creates a team with the creator as its first member.
func (s *Store) CreateTeam(name, creatorID string) (*Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Team{
		ID:        uuid.New().String(),
		Name:      name,
		Members:   []string{creatorID},
		CreatedAt: time.Now().UnixMilli(),
	}

	members, err := json.Marshal(t.Members)
	if err != nil {
		return nil, fmt.Errorf("failed to encode members: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO teams (id, name, members, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, string(members), t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return t, nil
}

// GetTeam retrieves a team document. Returns nil, nil if it does not exist.
func (s *Store) GetTeam(id string) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTeamLocked(id)
}

func (s *Store) getTeamLocked(id string) (*Team, error) {
	t := &Team{}
	var members string

	err := s.db.QueryRow(
		`SELECT id, name, members, created_at FROM teams WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &members, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	return t, nil
}

// ListTeamsByMember returns every team whose roster contains uid, oldest
// first. Team counts are small; the membership filter runs in process.
func (s *Store) ListTeamsByMember(uid string) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, members, created_at FROM teams ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		var members string
		if err := rows.Scan(&t.ID, &t.Name, &members, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
			return nil, fmt.Errorf("failed to decode members: %w", err)
		}
		for _, m := range t.Members {
			if m == uid {
				teams = append(teams, t)
				break
			}
		}
	}
	return teams, rows.Err()
}

// RenameTeam updates the team's display name. The roster is untouched.
func (s *Store) RenameTeam(teamID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE teams SET name = ? WHERE id = ?`, name, teamID)
	if err != nil {
		return fmt.Errorf("failed to rename team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("team %s: %w", teamID, derrors.ErrNotFound)
	}

	s.hub.Notify(teamTopic(teamID))
	return nil
}

// AddTeamMember appends memberID to the roster, preserving order and
// uniqueness, and records the addition in the team's activity feed.
func (s *Store) AddTeamMember(teamID, memberID, addedByName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTeamLocked(teamID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("team %s: %w", teamID, derrors.ErrNotFound)
	}
	for _, m := range t.Members {
		if m == memberID {
			return ErrAlreadyMember
		}
	}

	t.Members = append(t.Members, memberID)
	members, err := json.Marshal(t.Members)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE teams SET members = ? WHERE id = ?`, string(members), teamID); err != nil {
		return fmt.Errorf("failed to update team members: %w", err)
	}

	if err := s.appendActivityLocked(teamID, ActivityMemberAdded,
		fmt.Sprintf("%s joined the roster (added by %s)", memberID, addedByName)); err != nil {
		s.logger.Warn().Err(err).Str("team_id", teamID).Msg("activity append failed")
	}

	s.hub.Notify(teamTopic(teamID))
	return nil
}
