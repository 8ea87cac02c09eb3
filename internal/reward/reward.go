// Package reward is the client side of the gamification collaborator.
// The point-ledger itself lives elsewhere; the engine only dispatches
// awards through the AwardXP contract, fire-and-forget.
package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
)

// EventGenerateProject is the event kind dispatched when a team-scoped
// generation completes.
const EventGenerateProject = "GENERATE_PROJECT"

// Ledger awards gamification points for team events.
type Ledger interface {
	// AwardXP credits userID within teamID for one event. Callers treat
	// failures as best-effort: log and move on.
	AwardXP(ctx context.Context, userID, teamID, eventKind string) error
}

// WebhookLedger posts awards to an external gamification endpoint.
type WebhookLedger struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   zerolog.Logger
}

// NewWebhookLedger creates a ledger client for the given endpoint.
func NewWebhookLedger(endpoint, apiKey string, logger zerolog.Logger) *WebhookLedger {
	return &WebhookLedger{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With().Str("component", "reward").Logger(),
	}
}

type awardRequest struct {
	UserID    string `json:"userId"`
	TeamID    string `json:"teamId"`
	EventKind string `json:"eventKind"`
}

// AwardXP posts one award. A non-2xx response is an APIError so callers
// can tell transient collaborator trouble from a hard reject.
func (l *WebhookLedger) AwardXP(ctx context.Context, userID, teamID, eventKind string) error {
	body, err := json.Marshal(awardRequest{UserID: userID, TeamID: teamID, EventKind: eventKind})
	if err != nil {
		return fmt.Errorf("marshal award: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", derrors.ErrRewardDispatch, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return derrors.NewAPIError("rewards", resp.StatusCode, "award rejected")
	}

	l.logger.Debug().
		Str("user_id", userID).
		Str("team_id", teamID).
		Str("event", eventKind).
		Msg("xp awarded")
	return nil
}

// NoopLedger is used when no gamification endpoint is configured.
type NoopLedger struct{}

func (NoopLedger) AwardXP(ctx context.Context, userID, teamID, eventKind string) error {
	return nil
}
