package store

import "encoding/json"

// ScopeKind distinguishes the two ownership boundaries a project can live in.
type ScopeKind string

const (
	ScopeTeam ScopeKind = "team"
	ScopeUser ScopeKind = "user"
)

// Scope is the ownership boundary under which a project is stored.
// It is chosen once, at creation, and never revisited.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// TeamScope returns the scope for a team's project collection.
func TeamScope(teamID string) Scope { return Scope{Kind: ScopeTeam, ID: teamID} }

// UserScope returns the scope for a single user's project collection.
func UserScope(uid string) Scope { return Scope{Kind: ScopeUser, ID: uid} }

// ResolveScope picks the owning scope from the presence of teamID.
func ResolveScope(requesterID, teamID string) Scope {
	if teamID != "" {
		return TeamScope(teamID)
	}
	return UserScope(requesterID)
}

// IsTeam reports whether the scope is a team collection.
func (s Scope) IsTeam() bool { return s.Kind == ScopeTeam }

// topic names the scope's project collection in the notification hub.
func (s Scope) topic() string {
	if s.Kind == ScopeTeam {
		return "teams/" + s.ID + "/projects"
	}
	return "users/" + s.ID + "/projects"
}

// teamTopic names a team document in the notification hub.
func teamTopic(teamID string) string { return "teams/" + teamID }

// Project is the durable unit representing one generation request and its
// outcome. Output is non-nil if and only if Status is completed.
type Project struct {
	ID           string          `json:"id"`
	InputContext string          `json:"inputContext"`
	RequesterID  string          `json:"userId"`
	Status       Status          `json:"status"`
	Output       json.RawMessage `json:"output,omitempty"`
	CreatedAt    int64           `json:"createdAt"` // unix ms
}

// Team is a shared workspace. Members is an ordered set of user ids;
// order defines display order.
type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"createdAt"` // unix ms
}

// Member is a resolved member profile, projected from the users table.
type Member struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Activity is one line of a team's live feed.
type Activity struct {
	ID        string `json:"id"`
	TeamID    string `json:"teamId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"` // unix ms
}

// Activity kinds.
const (
	ActivityMemberAdded      = "MEMBER_ADDED"
	ActivityProjectGenerated = "PROJECT_GENERATED"
)
