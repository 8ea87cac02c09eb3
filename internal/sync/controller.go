// Package sync maintains a live client view of one workspace: the active
// team document, its resolved roster, and the scope's project list. It is
// the server-side analogue of a dashboard session.
package sync

import (
	"context"
	stdsync "sync"

	"github.com/rs/zerolog"

	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/store"
	"github.com/devstory-labs/devstory-engine/internal/team"
)

// Controller tracks one viewer's active scope. Switching scopes tears the
// previous subscriptions down before the new ones attach, so snapshots
// from an abandoned scope never reach the view.
type Controller struct {
	store   *store.Store
	roster  *team.Service
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// lifeMu serializes scope switches and Close. It is never held while
	// applying snapshots.
	lifeMu   stdsync.Mutex
	closed   bool
	teamFeed *store.TeamFeed
	projFeed *store.ProjectFeed
	loopDone chan struct{}
	cancel   context.CancelFunc

	// mu guards the view state the accessors read.
	mu       stdsync.RWMutex
	uid      string
	teamID   string
	team     *store.Team
	members  []store.Member
	projects []store.Project

	updates chan struct{}
}

// NewController creates a detached controller. Nothing is watched until
// SetActiveScope is called.
func NewController(st *store.Store, roster *team.Service, m *metrics.Metrics, logger zerolog.Logger) *Controller {
	return &Controller{
		store:   st,
		roster:  roster,
		metrics: m,
		logger:  logger.With().Str("component", "sync").Logger(),
		updates: make(chan struct{}, 1),
	}
}

// SetActiveScope points the view at a scope. With a teamID it follows the
// team document, its roster, and the team's project list; with an empty
// teamID it follows the viewer's personal project list only.
//
// Teardown of the previous scope is synchronous: when this returns, no
// update from the old scope will be applied.
func (c *Controller) SetActiveScope(uid, teamID string) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed {
		return
	}

	c.teardown()

	c.mu.Lock()
	c.uid = uid
	c.teamID = teamID
	c.team = nil
	c.members = nil
	c.projects = nil
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	scope := store.ResolveScope(uid, teamID)
	c.projFeed = c.store.WatchProjects(scope)
	c.metrics.SubscriptionsActive.Inc()
	if teamID != "" {
		c.teamFeed = c.store.WatchTeam(teamID)
		c.metrics.SubscriptionsActive.Inc()
	}

	c.loopDone = make(chan struct{})
	go c.loop(ctx, c.teamFeed, c.projFeed, c.loopDone)
}

// loop applies snapshots until both feeds close.
func (c *Controller) loop(ctx context.Context, teamFeed *store.TeamFeed, projFeed *store.ProjectFeed, done chan struct{}) {
	defer close(done)

	var teamC <-chan *store.Team
	if teamFeed != nil {
		teamC = teamFeed.C
	}
	projC := projFeed.C

	for teamC != nil || projC != nil {
		select {
		case snap, ok := <-teamC:
			if !ok {
				teamC = nil
				continue
			}
			c.applyTeam(ctx, snap)
		case snap, ok := <-projC:
			if !ok {
				projC = nil
				continue
			}
			c.applyProjects(snap)
		}
	}
}

// applyTeam replaces the team view and re-resolves the roster when, and
// only when, the member count changed. Renames and same-size swaps keep
// the resolved profiles as they are.
func (c *Controller) applyTeam(ctx context.Context, snap *store.Team) {
	c.mu.Lock()
	prev := len(c.members)
	c.team = snap
	c.mu.Unlock()

	if snap != nil && len(snap.Members) != prev {
		resolved, err := c.roster.GetTeamMembers(ctx, snap.Members)
		if err != nil {
			c.logger.Warn().Err(err).Str("team_id", snap.ID).Msg("roster resolution failed, keeping previous")
		} else {
			c.mu.Lock()
			c.members = resolved
			c.mu.Unlock()
		}
	}

	c.notify()
}

func (c *Controller) applyProjects(snap []store.Project) {
	c.mu.Lock()
	c.projects = snap
	c.mu.Unlock()
	c.notify()
}

// notify coalesces; a consumer that is behind sees one pending update.
func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Updates signals after any view change. Coalesced; read the accessors
// for current state.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

// Team returns the current team document, nil in personal scope or before
// the first snapshot.
func (c *Controller) Team() *store.Team {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.team
}

// Members returns the resolved roster in roster order.
func (c *Controller) Members() []store.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]store.Member, len(c.members))
	copy(out, c.members)
	return out
}

// Projects returns the latest project-list snapshot, newest first.
func (c *Controller) Projects() []store.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]store.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Close detaches all subscriptions. The Updates channel is closed once no
// further update can arrive.
func (c *Controller) Close() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed {
		return
	}
	c.teardown()
	c.closed = true
	close(c.updates)
}

// teardown cancels feeds and waits for the apply loop to drain. Caller
// holds lifeMu.
func (c *Controller) teardown() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.teamFeed != nil {
		c.teamFeed.Cancel()
		c.teamFeed = nil
		c.metrics.SubscriptionsActive.Dec()
	}
	if c.projFeed != nil {
		c.projFeed.Cancel()
		c.projFeed = nil
		c.metrics.SubscriptionsActive.Dec()
	}
	if c.loopDone != nil {
		<-c.loopDone
		c.loopDone = nil
	}
}
