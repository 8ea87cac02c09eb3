package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrStaleTransition is returned when a status transition found no record
// in the generating state: the record is already terminal, or was deleted
// by a concurrent writer mid-generation. Callers treat this as best-effort.
var ErrStaleTransition = errors.New("no record eligible for transition")

// CreateProject inserts a new record in the generating state and returns
// its assigned id. The write is visible to subscribers before this returns.
func (s *Store) CreateProject(scope Scope, requesterID, inputContext string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Project{
		ID:           uuid.New().String(),
		InputContext: inputContext,
		RequesterID:  requesterID,
		Status:       StatusGenerating,
		CreatedAt:    time.Now().UnixMilli(),
	}

	query := `
	INSERT INTO projects (id, scope_kind, scope_id, requester_id, input_context, status, output, created_at)
	VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`
	_, err := s.db.Exec(query,
		p.ID, string(scope.Kind), scope.ID, p.RequesterID, p.InputContext, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.hub.Notify(scope.topic())
	return p, nil
}

// GetProject retrieves one record from the given scope. Returns nil, nil
// if the record does not exist.
func (s *Store) GetProject(scope Scope, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &Project{}
	var status string
	var output sql.NullString

	query := `
	SELECT id, requester_id, input_context, status, output, created_at
	FROM projects WHERE id = ? AND scope_kind = ? AND scope_id = ?
	`
	err := s.db.QueryRow(query, id, string(scope.Kind), scope.ID).Scan(
		&p.ID, &p.RequesterID, &p.InputContext, &status, &output, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Status = Status(status)
	if output.Valid {
		p.Output = json.RawMessage(output.String)
	}
	return p, nil
}

// ListProjects returns the scope's records ordered by createdAt descending.
// Ties keep the order the query produces; no secondary ordering is imposed.
func (s *Store) ListProjects(scope Scope) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, requester_id, input_context, status, output, created_at
	FROM projects WHERE scope_kind = ? AND scope_id = ?
	ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query, string(scope.Kind), scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var status string
		var output sql.NullString
		if err := rows.Scan(&p.ID, &p.RequesterID, &p.InputContext, &status, &output, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Status = Status(status)
		if output.Valid {
			p.Output = json.RawMessage(output.String)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CompleteProject transitions a generating record to completed, writing
// the output atomically with the status change.
func (s *Store) CompleteProject(scope Scope, id string, output json.RawMessage) error {
	return s.transition(scope, id, StatusCompleted, output)
}

// FailProject transitions a generating record to error. Output stays null;
// the failure cause is the caller's to log.
func (s *Store) FailProject(scope Scope, id string) error {
	return s.transition(scope, id, StatusError, nil)
}

func (s *Store) transition(scope Scope, id string, to Status, output json.RawMessage) error {
	if !StatusGenerating.CanTransition(to) {
		return fmt.Errorf("illegal transition to %q", to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The status guard makes terminal states absorbing: a record never
	// regresses, and a double finalization is a no-op reported as stale.
	query := `
	UPDATE projects SET status = ?, output = ?
	WHERE id = ? AND scope_kind = ? AND scope_id = ? AND status = ?
	`
	var out sql.NullString
	if output != nil {
		out = sql.NullString{String: string(output), Valid: true}
	}
	res, err := s.db.Exec(query, string(to), out, id, string(scope.Kind), scope.ID, string(StatusGenerating))
	if err != nil {
		return fmt.Errorf("failed to transition project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrStaleTransition
	}

	s.hub.Notify(scope.topic())
	return nil
}
