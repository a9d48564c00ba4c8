// Package session drives one generation request at a time per mode and
// commits successful results into the mode's history store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Default user-facing messages. The HTTP layer localizes them.
const (
	MessageAuthExpired  = "Your API key session expired. Please select a key again."
	MessageRateLimited  = "Quota exhausted. Please wait before trying again or check your plan."
	MessageGeneric      = "Generation failed. Please try again."
	MessageStorageWrite = "The result was generated but could not be saved to history."
)

// Options configures a Controller. Store and Dispatch are required.
type Options[P domain.Params] struct {
	Kind       domain.Kind
	Store      RecordStore[P]
	Dispatch   Dispatch[P]
	Gate       Gate
	Classifier *Classifier
	// Interactive requests re-authorization as soon as a session expires.
	Interactive bool
	// Normalize is applied to submitted params before the prompt check.
	Normalize func(P) P
	Draft     P
	Clock     func() time.Time
	NewID     func() string
	Logger    *infra.Logger
	Metrics   *Metrics
}

// Controller owns the SessionState of one generation mode.
type Controller[P domain.Params] struct {
	kind        domain.Kind
	store       RecordStore[P]
	dispatch    Dispatch[P]
	gate        Gate
	classifier  *Classifier
	interactive bool
	normalize   func(P) P
	clock       func() time.Time
	newID       func() string
	logger      *infra.Logger
	metrics     *Metrics

	mu    sync.Mutex
	state domain.SessionState[P]
}

func New[P domain.Params](opts Options[P]) (*Controller[P], error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Dispatch == nil {
		return nil, errors.New("session: dispatch is required")
	}
	c := &Controller[P]{
		kind:        opts.Kind,
		store:       opts.Store,
		dispatch:    opts.Dispatch,
		gate:        opts.Gate,
		classifier:  opts.Classifier,
		interactive: opts.Interactive,
		normalize:   opts.Normalize,
		clock:       opts.Clock,
		newID:       opts.NewID,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		state: domain.SessionState[P]{
			Phase: domain.PhaseIdle,
			Draft: opts.Draft,
		},
	}
	if c.classifier == nil {
		c.classifier = DefaultClassifier()
	}
	if c.clock == nil {
		c.clock = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.logger == nil {
		c.logger = infra.DiscardLogger()
	}
	return c, nil
}

// Kind returns the generation mode handled by the controller.
func (c *Controller[P]) Kind() domain.Kind {
	return c.kind
}

// State returns a snapshot of the session state.
func (c *Controller[P]) State() domain.SessionState[P] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Draft = s.Draft.Clone().(P)
	return s
}

// SetDraft replaces the draft parameters while no request is in flight.
func (c *Controller[P]) SetDraft(params P) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhaseInFlight {
		return domain.ErrAlreadyInProgress
	}
	c.state.Draft = params.Clone().(P)
	return nil
}

// Submit runs one generation request to completion. It returns
// domain.ErrInvalidPrompt or domain.ErrAlreadyInProgress without touching
// the state, and otherwise an error wrapping the sentinel for the failure
// that the state now reports.
func (c *Controller[P]) Submit(ctx context.Context, params P) error {
	params, err := c.begin(params)
	if err != nil {
		return err
	}
	return c.run(ctx, params)
}

// SubmitAsync performs the precondition checks synchronously and runs the
// request in the background. The returned channel yields Submit's result.
func (c *Controller[P]) SubmitAsync(ctx context.Context, params P) (<-chan error, error) {
	params, err := c.begin(params)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.run(ctx, params)
	}()
	return done, nil
}

func (c *Controller[P]) begin(params P) (P, error) {
	if c.normalize != nil {
		params = c.normalize(params)
	}
	if strings.TrimSpace(params.PromptText()) == "" {
		return params, domain.ErrInvalidPrompt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhaseInFlight {
		c.metrics.outcome(c.kind, "rejected")
		return params, domain.ErrAlreadyInProgress
	}
	params = params.Clone().(P)
	c.state.Phase = domain.PhaseInFlight
	c.state.Failure = domain.FailureNone
	c.state.Error = ""
	c.state.Draft = params
	return params, nil
}

// run owns the in-flight phase. The caller's cancellation is not propagated
// to the remote call: once dispatched, the request always resolves.
func (c *Controller[P]) run(ctx context.Context, params P) error {
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With().Str("kind", string(c.kind)).Logger()

	if c.gate != nil && !c.gate.IsAuthorized() {
		if err := c.gate.RequestAuthorization(ctx); err != nil {
			log.Warn().Err(err).Msg("session: authorization required before dispatch")
			c.fail(domain.FailureAuthExpired, MessageAuthExpired)
			c.metrics.outcome(c.kind, "unauthorized")
			return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
		}
	}

	c.metrics.started(c.kind)
	start := time.Now()
	ref, err := c.dispatch(ctx, params)
	c.metrics.finished(c.kind, time.Since(start))

	if err == nil && strings.TrimSpace(ref) == "" {
		err = errors.New("no artifact returned")
	}
	if err != nil {
		return c.handleFailure(ctx, log, err)
	}

	rec := domain.NewRecord(c.newID(), ref, params, c.clock())
	if err := c.store.Put(ctx, rec); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("session: persist record failed")
		c.fail(domain.FailureGeneric, MessageStorageWrite)
		c.metrics.outcome(c.kind, "storage_error")
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	c.mu.Lock()
	c.state.Phase = domain.PhaseSucceeded
	c.state.Failure = domain.FailureNone
	c.state.Error = ""
	c.state.LatestArtifactRef = ref
	c.mu.Unlock()

	c.metrics.outcome(c.kind, "succeeded")
	log.Info().Str("id", rec.ID).Str("artifact", ref).Msg("session: generation succeeded")
	return nil
}

func (c *Controller[P]) handleFailure(ctx context.Context, log infra.Logger, err error) error {
	kind := c.classifier.Classify(err)
	log.Warn().Err(err).Str("classified", string(kind)).Msg("session: generation failed")

	switch kind {
	case domain.ErrorKindAuthExpired:
		if c.gate != nil {
			c.gate.Revoke()
			if c.interactive {
				if authErr := c.gate.RequestAuthorization(ctx); authErr != nil {
					log.Warn().Err(authErr).Msg("session: re-authorization failed")
				}
			}
		}
		c.fail(domain.FailureAuthExpired, MessageAuthExpired)
		c.metrics.outcome(c.kind, "auth_expired")
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	case domain.ErrorKindRateLimited:
		c.mu.Lock()
		c.state.Phase = domain.PhaseRateLimited
		c.state.Failure = domain.FailureNone
		c.state.Error = MessageRateLimited
		c.mu.Unlock()
		c.metrics.outcome(c.kind, "rate_limited")
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	default:
		msg := remoteMessage(err)
		if msg == "" {
			msg = MessageGeneric
		}
		c.fail(domain.FailureGeneric, msg)
		c.metrics.outcome(c.kind, "failed")
		return fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
}

func (c *Controller[P]) fail(kind domain.FailureKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = domain.PhaseFailed
	c.state.Failure = kind
	c.state.Error = msg
}

// Dismiss clears an error or rate-limit notice. Other phases are unchanged.
func (c *Controller[P]) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case domain.PhaseFailed, domain.PhaseRateLimited:
		c.state.Phase = domain.PhaseIdle
		c.state.Failure = domain.FailureNone
		c.state.Error = ""
	}
}

// ListHistory returns records newest first. Storage failures are logged and
// yield an empty list.
func (c *Controller[P]) ListHistory(ctx context.Context) []domain.Record[P] {
	records, err := c.store.Recent(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", string(c.kind)).Msg("session: load history failed")
		return []domain.Record[P]{}
	}
	return records
}

// LoadHistory restores the latest artifact from the newest stored record.
func (c *Controller[P]) LoadHistory(ctx context.Context) {
	records := c.ListHistory(ctx)
	if len(records) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.LatestArtifactRef == "" && c.state.Phase == domain.PhaseIdle {
		c.state.LatestArtifactRef = records[0].ArtifactRef
	}
}

func (c *Controller[P]) DeleteHistoryItem(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.metrics.removed(c.kind, "item")
	return nil
}

func (c *Controller[P]) ClearHistory(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.metrics.removed(c.kind, "all")
	return nil
}
