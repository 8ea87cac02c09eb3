package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
	"github.com/devstory-labs/devstory-engine/internal/health"
	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/orchestrator"
	"github.com/devstory-labs/devstory-engine/internal/requestid"
	"github.com/devstory-labs/devstory-engine/internal/store"
	"github.com/devstory-labs/devstory-engine/internal/team"
)

// Handlers implements the HTTP endpoints.
type Handlers struct {
	orch    *orchestrator.Orchestrator
	roster  *team.Service
	store   *store.Store
	checker *health.Checker
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	orch *orchestrator.Orchestrator,
	roster *team.Service,
	st *store.Store,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		orch:    orch,
		roster:  roster,
		store:   st,
		checker: checker,
		metrics: m,
		logger:  logger.With().Str("component", "handlers").Logger(),
	}
}

type generateRequest struct {
	UserID  string `json:"userId"`
	Context string `json:"context"`
	TeamID  string `json:"teamId"`
}

// Generate accepts an idea and responds once the pipeline has finalized
// the record. Whatever the outcome, the record persists: a 500 here means
// the record is in the error state, not that nothing happened.
func (h *Handlers) Generate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
	}

	ctx := requestid.WithRequestID(c.Context(), requestIDOf(c))
	id, done, err := h.orch.Generate(ctx, orchestrator.Request{
		RequesterID: req.UserID,
		Context:     req.Context,
		TeamID:      req.TeamID,
	})
	if err != nil {
		if errors.Is(err, derrors.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate project"})
	}

	if pipeErr := <-done; pipeErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate project"})
	}

	return c.JSON(fiber.Map{"success": true, "id": id})
}

// scopeOf resolves the ownership scope from query parameters.
func scopeOf(c *fiber.Ctx) (store.Scope, error) {
	userID := c.Query("userId")
	teamID := c.Query("teamId")
	if userID == "" && teamID == "" {
		return store.Scope{}, errors.New("userId or teamId is required")
	}
	return store.ResolveScope(userID, teamID), nil
}

// GetProject returns one record from its owning scope.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	p, err := h.store.GetProject(scope, c.Params("id"))
	if err != nil {
		return err
	}
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project not found"})
	}
	return c.JSON(p)
}

// ListProjects returns the scope's records, newest first.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return h.listProjects(c, scope)
}

// ListTeamProjects returns a team's shared project list.
func (h *Handlers) ListTeamProjects(c *fiber.Ctx) error {
	return h.listProjects(c, store.TeamScope(c.Params("id")))
}

// ListUserProjects returns a user's personal project list.
func (h *Handlers) ListUserProjects(c *fiber.Ctx) error {
	return h.listProjects(c, store.UserScope(c.Params("uid")))
}

func (h *Handlers) listProjects(c *fiber.Ctx, scope store.Scope) error {
	projects, err := h.store.ListProjects(scope)
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []store.Project{}
	}
	return c.JSON(fiber.Map{"projects": projects})
}

type createTeamRequest struct {
	Name      string `json:"name"`
	CreatorID string `json:"creatorId"`
}

// CreateTeam creates a team with the creator as its first member.
func (h *Handlers) CreateTeam(c *fiber.Ctx) error {
	var req createTeamRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.CreatorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
	}

	created, err := h.roster.CreateTeam(c.Context(), req.Name, req.CreatorID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetTeam returns one team document.
func (h *Handlers) GetTeam(c *fiber.Ctx) error {
	t, err := h.roster.GetTeam(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if t == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team not found"})
	}
	return c.JSON(t)
}

type renameTeamRequest struct {
	Name string `json:"name"`
}

// RenameTeam updates the team's display name.
func (h *Handlers) RenameTeam(c *fiber.Ctx) error {
	var req renameTeamRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
	}

	if err := h.roster.RenameTeam(c.Context(), c.Params("id"), req.Name); err != nil {
		if errors.Is(err, derrors.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team not found"})
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetTeamMembers returns the resolved roster in roster order.
func (h *Handlers) GetTeamMembers(c *fiber.Ctx) error {
	t, err := h.roster.GetTeam(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if t == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team not found"})
	}

	members, err := h.roster.GetTeamMembers(c.Context(), t.Members)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"members": members})
}

type addMemberRequest struct {
	MemberID string `json:"memberId"`
	AddedBy  string `json:"addedBy"`
}

// AddTeamMember appends a member to the roster.
func (h *Handlers) AddTeamMember(c *fiber.Ctx) error {
	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil || req.MemberID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
	}

	err := h.roster.AddMemberToTeam(c.Context(), c.Params("id"), req.MemberID, req.AddedBy)
	if err != nil {
		switch {
		case errors.Is(err, derrors.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team not found"})
		case errors.Is(err, store.ErrAlreadyMember):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "user is already a team member"})
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListActivity returns the newest lines of the team's live feed.
func (h *Handlers) ListActivity(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.store.ListActivity(c.Params("id"), limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []store.Activity{}
	}
	return c.JSON(fiber.Map{"activity": items})
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// RegisterProfile saves a user's display profile.
func (h *Handlers) RegisterProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil || req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing parameters"})
	}

	m := store.Member{UID: c.Params("uid"), DisplayName: req.DisplayName, PhotoURL: req.PhotoURL}
	if err := h.roster.RegisterProfile(c.Context(), m); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetUserTeams returns every team the user belongs to.
func (h *Handlers) GetUserTeams(c *fiber.Ctx) error {
	teams, err := h.roster.GetUserTeams(c.Context(), c.Params("uid"))
	if err != nil {
		return err
	}
	if teams == nil {
		teams = []store.Team{}
	}
	return c.JSON(fiber.Map{"teams": teams})
}

// Liveness reports process liveness.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness reports whether all dependencies are serving.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func requestIDOf(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return ""
}
