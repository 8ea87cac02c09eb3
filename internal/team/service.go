// Package team is the roster collaborator: a user's teams, resolved
// member profiles, and roster mutations. The sync controller consumes
// it; it never mutates rosters on its own.
package team

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devstory-labs/devstory-engine/internal/lru"
	"github.com/devstory-labs/devstory-engine/internal/retry"
	"github.com/devstory-labs/devstory-engine/internal/store"
)

// ProfileSource resolves a user id to a display profile. The default
// source is the document store's users table.
type ProfileSource interface {
	GetUserProfile(uid string) (*store.Member, error)
}

// Service provides roster reads and mutations.
type Service struct {
	store    *store.Store
	profiles ProfileSource
	cache    *lru.Cache[string, store.Member]
	retryCfg retry.Config
	logger   zerolog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithProfileSource overrides the profile lookup backend.
func WithProfileSource(src ProfileSource) Option {
	return func(s *Service) { s.profiles = src }
}

// WithCache sizes the member-profile cache.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = lru.New[string, store.Member](capacity, ttl) }
}

// WithRetry overrides the profile lookup retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(s *Service) { s.retryCfg = cfg }
}

// NewService creates a roster service backed by the document store.
func NewService(st *store.Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		profiles: st,
		cache:    lru.New[string, store.Member](256, 5*time.Minute),
		retryCfg: retry.DefaultConfig(),
		logger:   logger.With().Str("component", "team").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateTeam creates a team with creatorID as its first member.
func (s *Service) CreateTeam(ctx context.Context, name, creatorID string) (*store.Team, error) {
	if name == "" || creatorID == "" {
		return nil, fmt.Errorf("team name and creator are required")
	}
	return s.store.CreateTeam(name, creatorID)
}

// GetUserTeams returns every team uid belongs to.
func (s *Service) GetUserTeams(ctx context.Context, uid string) ([]store.Team, error) {
	return s.store.ListTeamsByMember(uid)
}

// GetTeam returns one team document, or nil if it does not exist.
func (s *Service) GetTeam(ctx context.Context, teamID string) (*store.Team, error) {
	return s.store.GetTeam(teamID)
}

// RenameTeam updates a team's display name.
func (s *Service) RenameTeam(ctx context.Context, teamID, name string) error {
	if name == "" {
		return fmt.Errorf("team name is required")
	}
	return s.store.RenameTeam(teamID, name)
}

// AddMemberToTeam appends a member to the roster. The member's position
// is the end of the ordered set; duplicates are rejected.
func (s *Service) AddMemberToTeam(ctx context.Context, teamID, memberID, addedByName string) error {
	return s.store.AddTeamMember(teamID, memberID, addedByName)
}

// GetTeamMembers resolves profiles for a member-id list, preserving the
// roster's order. Unknown users resolve to a uid-only placeholder rather
// than failing the whole roster.
func (s *Service) GetTeamMembers(ctx context.Context, memberIDs []string) ([]store.Member, error) {
	members := make([]store.Member, 0, len(memberIDs))
	for _, uid := range memberIDs {
		if m, ok := s.cache.Get(uid); ok {
			members = append(members, m)
			continue
		}

		var resolved *store.Member
		err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
			var lookupErr error
			resolved, lookupErr = s.profiles.GetUserProfile(uid)
			return lookupErr
		})
		if err != nil {
			return nil, fmt.Errorf("resolve member %s: %w", uid, err)
		}

		m := store.Member{UID: uid, DisplayName: uid}
		if resolved != nil {
			m = *resolved
		}
		s.cache.Put(uid, m)
		members = append(members, m)
	}
	return members, nil
}

// RegisterProfile saves a user's display profile and refreshes the cache.
func (s *Service) RegisterProfile(ctx context.Context, m store.Member) error {
	if m.UID == "" {
		return fmt.Errorf("profile uid is required")
	}
	if err := s.store.UpsertUserProfile(m); err != nil {
		return err
	}
	s.cache.Put(m.UID, m)
	return nil
}
