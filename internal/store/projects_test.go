package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject_InitialState(t *testing.T) {
	store := newTestStore(t)
	scope := TeamScope("T1")

	p, err := store.CreateProject(scope, "u1", "A CLI that files tax forms")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, StatusGenerating, p.Status)
	assert.Nil(t, p.Output)

	got, err := store.GetProject(scope, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusGenerating, got.Status)
	assert.Nil(t, got.Output)
	assert.Equal(t, "A CLI that files tax forms", got.InputContext)
	assert.Equal(t, "u1", got.RequesterID)
}

func TestGetProject_ScopeIsolation(t *testing.T) {
	store := newTestStore(t)

	p, err := store.CreateProject(TeamScope("T1"), "u1", "ctx")
	require.NoError(t, err)

	// Same id under another scope resolves to nothing.
	got, err := store.GetProject(TeamScope("T2"), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetProject(UserScope("u1"), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompleteProject_AtomicOutput(t *testing.T) {
	store := newTestStore(t)
	scope := UserScope("u1")

	p, err := store.CreateProject(scope, "u1", "ctx")
	require.NoError(t, err)

	output := json.RawMessage(`{"project_name":"TaxPilot"}`)
	require.NoError(t, store.CompleteProject(scope, p.ID, output))

	got, err := store.GetProject(scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.JSONEq(t, string(output), string(got.Output))
}

func TestFailProject_OutputStaysNull(t *testing.T) {
	store := newTestStore(t)
	scope := UserScope("u1")

	p, err := store.CreateProject(scope, "u1", "ctx")
	require.NoError(t, err)
	require.NoError(t, store.FailProject(scope, p.ID))

	got, err := store.GetProject(scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Nil(t, got.Output)
}

func TestTransition_TerminalStatesAbsorb(t *testing.T) {
	store := newTestStore(t)
	scope := UserScope("u1")

	p, err := store.CreateProject(scope, "u1", "ctx")
	require.NoError(t, err)
	require.NoError(t, store.CompleteProject(scope, p.ID, json.RawMessage(`{}`)))

	// A late failure write must not regress the record.
	err = store.FailProject(scope, p.ID)
	assert.ErrorIs(t, err, ErrStaleTransition)

	got, err := store.GetProject(scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotNil(t, got.Output)
}

func TestTransition_MissingRecord(t *testing.T) {
	store := newTestStore(t)
	err := store.FailProject(UserScope("u1"), "nonexistent")
	assert.ErrorIs(t, err, ErrStaleTransition)
}

func TestOutputInvariant(t *testing.T) {
	store := newTestStore(t)
	scope := TeamScope("T1")

	a, _ := store.CreateProject(scope, "u1", "one")
	b, _ := store.CreateProject(scope, "u1", "two")
	c, _ := store.CreateProject(scope, "u1", "three")
	require.NoError(t, store.CompleteProject(scope, b.ID, json.RawMessage(`{"x":1}`)))
	require.NoError(t, store.FailProject(scope, c.ID))
	_ = a

	projects, err := store.ListProjects(scope)
	require.NoError(t, err)
	for _, p := range projects {
		assert.Equal(t, p.Status == StatusCompleted, p.Output != nil,
			"output must be non-null iff completed (project %s)", p.ID)
	}
}

func TestListProjects_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	scope := TeamScope("T1")

	first, err := store.CreateProject(scope, "u1", "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond) // distinct created_at
	second, err := store.CreateProject(scope, "u1", "second")
	require.NoError(t, err)

	projects, err := store.ListProjects(scope)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, second.ID, projects[0].ID)
	assert.Equal(t, first.ID, projects[1].ID)
}

func TestStatus_StateMachine(t *testing.T) {
	assert.True(t, StatusGenerating.CanTransition(StatusCompleted))
	assert.True(t, StatusGenerating.CanTransition(StatusError))
	assert.False(t, StatusCompleted.CanTransition(StatusGenerating))
	assert.False(t, StatusCompleted.CanTransition(StatusError))
	assert.False(t, StatusError.CanTransition(StatusCompleted))
	assert.False(t, StatusGenerating.CanTransition(StatusGenerating))

	assert.False(t, StatusGenerating.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, Status("completed").Valid())
	assert.False(t, Status("stalled").Valid())
}

func TestResolveScope(t *testing.T) {
	assert.Equal(t, TeamScope("T1"), ResolveScope("u1", "T1"))
	assert.Equal(t, UserScope("u1"), ResolveScope("u1", ""))
	assert.True(t, TeamScope("T1").IsTeam())
	assert.False(t, UserScope("u1").IsTeam())
}
