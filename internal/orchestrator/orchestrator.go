// Package orchestrator owns the end-to-end lifecycle of one generation
// request: record creation, AI invocation, tolerant parsing, durable
// status transition, and the reward side-effect.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
	"github.com/devstory-labs/devstory-engine/internal/genai"
	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/pack"
	"github.com/devstory-labs/devstory-engine/internal/requestid"
	"github.com/devstory-labs/devstory-engine/internal/reward"
	"github.com/devstory-labs/devstory-engine/internal/store"
)

// Request is the ephemeral input that produces one Project record.
type Request struct {
	RequesterID string
	Context     string
	TeamID      string // empty = user-scoped
}

// Orchestrator drives generation pipelines. Pipelines are concurrent and
// independent; no per-scope limit or mutual exclusion is enforced.
type Orchestrator struct {
	store    *store.Store
	provider genai.Provider
	rewards  reward.Ledger
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// New creates an orchestrator.
func New(st *store.Store, provider genai.Provider, rewards reward.Ledger, m *metrics.Metrics, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		provider: provider,
		rewards:  rewards,
		metrics:  m,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Generate validates the request, creates a generating record, and
// launches the async pipeline. The returned id acknowledges that the
// record exists; the package itself arrives through the record's status,
// not through this call. The done channel receives the pipeline's
// terminal error (nil on completion) and is closed afterwards.
//
// The record-creation write completes, and is visible to subscribers,
// before the AI call is issued.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (string, <-chan error, error) {
	if req.RequesterID == "" || req.Context == "" {
		return "", nil, fmt.Errorf("%w: requesterId and context are required", derrors.ErrInvalidRequest)
	}

	scope := store.ResolveScope(req.RequesterID, req.TeamID)
	project, err := o.store.CreateProject(scope, req.RequesterID, req.Context)
	if err != nil {
		return "", nil, fmt.Errorf("create record: %w", err)
	}

	// The pipeline outlives the intake request: once issued, the AI call
	// runs to completion or failure with no caller-side cancellation.
	reqID := requestid.FromContext(ctx)
	pipeCtx := requestid.WithRequestID(context.Background(), reqID)

	done := make(chan error, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		done <- o.run(pipeCtx, scope, project.ID, req)
	}()

	return project.ID, done, nil
}

func (o *Orchestrator) run(ctx context.Context, scope store.Scope, projectID string, req Request) error {
	start := time.Now()
	logger := o.logger.With().
		Str("request_id", requestid.FromContext(ctx)).
		Str("project_id", projectID).
		Str("scope", string(scope.Kind)).
		Logger()

	raw, err := o.provider.Generate(ctx, genai.Prompt(req.Context))
	if err != nil {
		return o.fail(logger, scope, projectID, start, fmt.Errorf("%w: %v", derrors.ErrGenerationFailure, err))
	}

	pkg, err := pack.Parse(raw)
	if err != nil {
		return o.fail(logger, scope, projectID, start, err)
	}
	if !json.Valid([]byte(raw)) {
		o.metrics.ParseFallbacksTotal.Inc()
	}

	output, err := json.Marshal(pkg)
	if err != nil {
		return o.fail(logger, scope, projectID, start, fmt.Errorf("encode package: %w", err))
	}

	if err := o.store.CompleteProject(scope, projectID, output); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			// The record went away or finalized under us; nothing to
			// roll back.
			logger.Warn().Msg("completion write found no generating record")
			return nil
		}
		return o.fail(logger, scope, projectID, start, fmt.Errorf("persist completion: %w", err))
	}

	o.metrics.RecordGeneration(string(store.StatusCompleted), string(scope.Kind))
	o.metrics.ObserveGeneration(string(store.StatusCompleted), time.Since(start).Seconds())
	logger.Info().Str("project_name", pkg.ProjectName).Msg("generation completed")

	if scope.IsTeam() {
		o.dispatchReward(ctx, logger, scope, req.RequesterID)
	}
	return nil
}

// dispatchReward is fire-and-forget: a failed award never rolls back the
// completed transition and never reaches the caller.
func (o *Orchestrator) dispatchReward(ctx context.Context, logger zerolog.Logger, scope store.Scope, requesterID string) {
	if err := o.rewards.AwardXP(ctx, requesterID, scope.ID, reward.EventGenerateProject); err != nil {
		o.metrics.RecordReward("failed")
		o.metrics.RecordError("reward", "dispatch")
		logger.Warn().Err(err).Msg("xp award failed")
		return
	}
	o.metrics.RecordReward("ok")

	if err := o.store.AppendActivity(scope.ID, store.ActivityProjectGenerated,
		fmt.Sprintf("%s generated a project package", requesterID)); err != nil {
		logger.Warn().Err(err).Msg("activity append failed")
	}
}

// fail transitions the record to error. The cause stays in the log; the
// persisted record only ever says "error".
func (o *Orchestrator) fail(logger zerolog.Logger, scope store.Scope, projectID string, start time.Time, cause error) error {
	logger.Error().Err(cause).Msg("generation failed")
	o.metrics.RecordGeneration(string(store.StatusError), string(scope.Kind))
	o.metrics.ObserveGeneration(string(store.StatusError), time.Since(start).Seconds())
	if errors.Is(cause, derrors.ErrMalformedResponse) {
		o.metrics.RecordError("orchestrator", "malformed_response")
	} else {
		o.metrics.RecordError("orchestrator", "generation")
	}

	if err := o.store.FailProject(scope, projectID); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			logger.Warn().Msg("failure write found no generating record")
		} else {
			logger.Error().Err(err).Msg("failure write did not persist")
		}
	}
	return cause
}

// Drain blocks until all in-flight pipelines have finalized their
// records, or the context ends.
func (o *Orchestrator) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
