package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devstory-labs/devstory-engine/internal/health"
	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/orchestrator"
	"github.com/devstory-labs/devstory-engine/internal/reward"
	"github.com/devstory-labs/devstory-engine/internal/store"
	"github.com/devstory-labs/devstory-engine/internal/team"
)

const stubPackage = `{
	"project_name": "EchoVault",
	"tagline": "Voice notes that organize themselves",
	"story": "Built in a weekend.",
	"diagram": "graph TD; A --> B;",
	"game_quests": [],
	"cheat_sheet": {"innovation_score": 7, "why_it_wins": ["Fast."]}
}`

type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.response, p.err
}

func (p *stubProvider) ModelID() string { return "stub" }

func newTestServer(t *testing.T, provider *stubProvider) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.New(os.Stderr))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	m := metrics.New()
	roster := team.NewService(st, logger)
	orch := orchestrator.New(st, provider, reward.NoopLedger{}, m, logger)

	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if st.Ping() != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	return NewServer(Config{}, orch, roster, st, checker, m, logger), st
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &fields), "body: %s", raw)
	}
	return resp, fields
}

func str(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(fields[key], &s))
	return s
}

func TestGenerate_Success(t *testing.T) {
	s, st := newTestServer(t, &stubProvider{response: stubPackage})

	resp, fields := doJSON(t, s, http.MethodPost, "/api/v1/generate",
		map[string]string{"userId": "u1", "context": "an idea", "teamId": "team-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `true`, string(fields["success"]))

	id := str(t, fields, "id")
	p, err := st.GetProject(store.TeamScope("team-1"), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, store.StatusCompleted, p.Status)
}

func TestGenerate_MissingParameters(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, fields := doJSON(t, s, http.MethodPost, "/api/v1/generate",
		map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing parameters", str(t, fields, "error"))
}

func TestGenerate_FailureLeavesErrorRecord(t *testing.T) {
	s, st := newTestServer(t, &stubProvider{response: "not json at all"})

	resp, fields := doJSON(t, s, http.MethodPost, "/api/v1/generate",
		map[string]string{"userId": "u1", "context": "an idea"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to generate project", str(t, fields, "error"))

	projects, err := st.ListProjects(store.UserScope("u1"))
	require.NoError(t, err)
	require.Len(t, projects, 1, "the record persists even when generation fails")
	assert.Equal(t, store.StatusError, projects[0].Status)
}

func TestGetProject(t *testing.T) {
	s, st := newTestServer(t, &stubProvider{response: stubPackage})

	p, err := st.CreateProject(store.UserScope("u1"), "u1", "idea")
	require.NoError(t, err)

	resp, fields := doJSON(t, s, http.MethodGet, "/api/v1/projects/"+p.ID+"?userId=u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, p.ID, str(t, fields, "id"))
	assert.Equal(t, "generating", str(t, fields, "status"))

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/projects/nope?userId=u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "scope is required")
}

func TestListProjects_ScopeIsolation(t *testing.T) {
	s, st := newTestServer(t, &stubProvider{response: stubPackage})

	_, err := st.CreateProject(store.UserScope("u1"), "u1", "personal")
	require.NoError(t, err)
	_, err = st.CreateProject(store.TeamScope("team-1"), "u1", "shared")
	require.NoError(t, err)

	resp, fields := doJSON(t, s, http.MethodGet, "/api/v1/projects?userId=u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var projects []store.Project
	require.NoError(t, json.Unmarshal(fields["projects"], &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "personal", projects[0].InputContext)

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/projects?teamId=team-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["projects"], &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "shared", projects[0].InputContext)

	// Path-scoped variants see the same records.
	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/teams/team-1/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["projects"], &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "shared", projects[0].InputContext)

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/users/u1/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["projects"], &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "personal", projects[0].InputContext)
}

func TestTeamLifecycle(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, fields := doJSON(t, s, http.MethodPost, "/api/v1/teams",
		map[string]string{"name": "Alpha", "creatorId": "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	teamID := str(t, fields, "id")

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/teams/"+teamID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alpha", str(t, fields, "name"))

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/teams/"+teamID+"/members",
		map[string]string{"memberId": "u2", "addedBy": "Admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/teams/"+teamID+"/members",
		map[string]string{"memberId": "u2", "addedBy": "Admin"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPatch, "/api/v1/teams/"+teamID,
		map[string]string{"name": "Alpha Prime"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/teams/"+teamID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alpha Prime", str(t, fields, "name"))

	resp, _ = doJSON(t, s, http.MethodPatch, "/api/v1/teams/nope",
		map[string]string{"name": "X"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/teams/"+teamID+"/activity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var activity []store.Activity
	require.NoError(t, json.Unmarshal(fields["activity"], &activity))
	require.Len(t, activity, 1)
	assert.Equal(t, store.ActivityMemberAdded, activity[0].Kind)
}

func TestTeamMembers_ResolvedRoster(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, _ := doJSON(t, s, http.MethodPut, "/api/v1/users/u1",
		map[string]string{"displayName": "Trinity"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, fields := doJSON(t, s, http.MethodPost, "/api/v1/teams",
		map[string]string{"name": "Alpha", "creatorId": "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	teamID := str(t, fields, "id")

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/teams/"+teamID+"/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var members []store.Member
	require.NoError(t, json.Unmarshal(fields["members"], &members))
	require.Len(t, members, 1)
	assert.Equal(t, "Trinity", members[0].DisplayName)
}

func TestGetUserTeams(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/teams",
		map[string]string{"name": "Alpha", "creatorId": "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, s, http.MethodGet, "/api/v1/users/u1/teams", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var teams []store.Team
	require.NoError(t, json.Unmarshal(fields["teams"], &teams))
	assert.Len(t, teams, 1)

	resp, fields = doJSON(t, s, http.MethodGet, "/api/v1/users/stranger/teams", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["teams"], &teams))
	assert.Empty(t, teams)
}

func TestProbes(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, _ := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{response: stubPackage})

	resp, _ := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
