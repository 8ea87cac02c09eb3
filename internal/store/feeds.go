package store

// Typed snapshot feeds layered over the notification hub. Each feed
// re-reads the store on every dirty tick and delivers the full result:
// snapshots replace, they are never merged. Delivery is latest-wins: a
// slow consumer sees fewer, newer snapshots, never stale ones.

// ProjectFeed delivers successive snapshots of one scope's project list,
// ordered by createdAt descending.
type ProjectFeed struct {
	// C receives full project-list snapshots. Closed after Cancel.
	C <-chan []Project

	ch  chan []Project
	sub subscription
}

// TeamFeed delivers successive snapshots of one team document.
type TeamFeed struct {
	// C receives full team snapshots. Closed after Cancel.
	C <-chan *Team

	ch  chan *Team
	sub subscription
}

type subscription interface {
	Cancel()
}

// WatchProjects subscribes to a scope's project collection. The first
// snapshot is delivered without waiting for a mutation.
func (s *Store) WatchProjects(scope Scope) *ProjectFeed {
	sub := s.hub.Subscribe(scope.topic())
	ch := make(chan []Project, 1)
	f := &ProjectFeed{C: ch, ch: ch, sub: sub}

	go func() {
		defer close(ch)
		f.push(s.listQuiet(scope))
		for range sub.C {
			f.push(s.listQuiet(scope))
		}
	}()
	return f
}

// Cancel tears the feed down. Synchronous: no snapshot is produced for
// any mutation that happens after Cancel returns.
func (f *ProjectFeed) Cancel() { f.sub.Cancel() }

func (f *ProjectFeed) push(snap []Project) {
	select {
	case <-f.ch: // drop the undelivered snapshot; this one supersedes it
	default:
	}
	f.ch <- snap
}

// WatchTeam subscribes to a team document. The first snapshot is
// delivered without waiting for a mutation.
func (s *Store) WatchTeam(teamID string) *TeamFeed {
	sub := s.hub.Subscribe(teamTopic(teamID))
	ch := make(chan *Team, 1)
	f := &TeamFeed{C: ch, ch: ch, sub: sub}

	go func() {
		defer close(ch)
		f.push(s.getTeamQuiet(teamID))
		for range sub.C {
			f.push(s.getTeamQuiet(teamID))
		}
	}()
	return f
}

// Cancel tears the feed down, synchronously with the same guarantee as
// ProjectFeed.Cancel.
func (f *TeamFeed) Cancel() { f.sub.Cancel() }

func (f *TeamFeed) push(snap *Team) {
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snap
}

func (s *Store) listQuiet(scope Scope) []Project {
	projects, err := s.ListProjects(scope)
	if err != nil {
		s.logger.Error().Err(err).Str("scope_id", scope.ID).Msg("snapshot query failed")
		return nil
	}
	return projects
}

func (s *Store) getTeamQuiet(teamID string) *Team {
	team, err := s.GetTeam(teamID)
	if err != nil {
		s.logger.Error().Err(err).Str("team_id", teamID).Msg("team snapshot query failed")
		return nil
	}
	return team
}
