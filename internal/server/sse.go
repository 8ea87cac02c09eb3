package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/devstory-labs/devstory-engine/internal/store"
	enginesync "github.com/devstory-labs/devstory-engine/internal/sync"
)

// viewEvent is one SSE snapshot: the full current view, never a delta.
type viewEvent struct {
	Team     *store.Team     `json:"team,omitempty"`
	Members  []store.Member  `json:"members,omitempty"`
	Projects []store.Project `json:"projects"`
}

// StreamTeam pushes live snapshots of a team's view over SSE.
func (h *Handlers) StreamTeam(c *fiber.Ctx) error {
	return h.stream(c, c.Query("userId"), c.Params("id"))
}

// StreamUser pushes live snapshots of a user's personal project list.
func (h *Handlers) StreamUser(c *fiber.Ctx) error {
	return h.stream(c, c.Params("uid"), "")
}

func (h *Handlers) stream(c *fiber.Ctx, uid, teamID string) error {
	if uid == "" && teamID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId or teamId is required"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ctrl := enginesync.NewController(h.store, h.roster, h.metrics, h.logger)
	ctrl.SetActiveScope(uid, teamID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer ctrl.Close()

		// A write failure means the client is gone.
		if err := writeSnapshot(w, ctrl); err != nil {
			return
		}

		keepalive := time.NewTicker(25 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case _, ok := <-ctrl.Updates():
				if !ok {
					return
				}
				if err := writeSnapshot(w, ctrl); err != nil {
					return
				}
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeSnapshot(w *bufio.Writer, ctrl *enginesync.Controller) error {
	payload, err := json.Marshal(viewEvent{
		Team:     ctrl.Team(),
		Members:  ctrl.Members(),
		Projects: ctrl.Projects(),
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
