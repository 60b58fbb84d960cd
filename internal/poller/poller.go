// Package poller runs the presence polling loop that drives the light.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"presencelight/internal/core"
	"presencelight/internal/idgen"
)

var (
	ErrInvalidInterval     = errors.New("poll interval must be positive")
	ErrInvalidSafetyMargin = errors.New("token safety margin must not be negative")
)

// observerTimeout bounds each observer call so a slow sink cannot stall the loop
const observerTimeout = 2 * time.Second

// Config holds the loop timing settings
type Config struct {
	Interval     time.Duration // sleep between iterations (default 5s)
	SafetyMargin time.Duration // subtracted from the token lifetime
}

// DefaultConfig returns a config with default values
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Second,
		SafetyMargin: 5 * time.Minute,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.SafetyMargin < 0 {
		return ErrInvalidSafetyMargin
	}
	return nil
}

// Observer receives presence observations and light transitions.
// Errors are logged and never affect the loop.
type Observer interface {
	ObservePresence(ctx context.Context, obs core.Observation) error
	ObserveTransition(ctx context.Context, tr core.Transition) error
}

// State is a snapshot of the loop's state
type State struct {
	Applied             *bool                // last successfully applied light state; nil until first success
	LastStatus          *core.PresenceStatus // last successfully fetched presence
	LastActive          *bool                // classification of LastStatus
	LastPollAt          *time.Time
	LastSuccessfulPoll  *time.Time
	TokenValidUntil     *time.Time
	PresenceFailures    int // consecutive presence failures
	LightFailures       int // consecutive light command failures
	Polls               int
	LastTransitionError string
}

// Poller owns the credential and the activation state and runs the
// token / presence / classify / actuate sequence on a fixed cadence.
type Poller struct {
	creds      core.CredentialProvider
	presence   core.PresenceClient
	light      core.LightController
	classifier *core.Classifier
	clock      Clock
	config     Config
	observers  []Observer
	logger     *slog.Logger

	credential *core.Credential
	state      State
	mu         sync.Mutex
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// New creates a new poller
func New(creds core.CredentialProvider, presence core.PresenceClient, light core.LightController,
	classifier *core.Classifier, clock Clock, config Config, logger *slog.Logger) *Poller {
	if classifier == nil {
		classifier = core.NewClassifier(nil)
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Poller{
		creds:      creds,
		presence:   presence,
		light:      light,
		classifier: classifier,
		clock:      clock,
		config:     config,
		logger:     logger.With("component", "poller"),
		stopChan:   make(chan struct{}),
	}
}

// AddObserver registers an observer. Call before Run.
func (p *Poller) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// Run polls until ctx is cancelled or Stop is called. It returns an error
// only when no usable credential can be obtained.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting poll loop",
		"interval", p.config.Interval,
		"safety_margin", p.config.SafetyMargin,
	)

	for {
		if p.stopped(ctx) {
			return nil
		}

		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("poll loop stopped (context cancelled)")
				return nil
			}
			p.logger.Error("no usable credential, stopping poll loop", "error", err)
			return err
		}

		if !p.sleep(ctx) {
			return nil
		}
	}
}

// stopped reports whether ctx is cancelled or Stop was called
func (p *Poller) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		p.logger.Info("poll loop stopped (context cancelled)")
		return true
	case <-p.stopChan:
		p.logger.Info("poll loop stopped")
		return true
	default:
		return false
	}
}

// sleep waits one interval and returns false if interrupted
func (p *Poller) sleep(ctx context.Context) bool {
	if p.stopped(ctx) {
		return false
	}
	select {
	case <-ctx.Done():
		p.logger.Info("poll loop stopped (context cancelled)")
		return false
	case <-p.stopChan:
		p.logger.Info("poll loop stopped")
		return false
	case <-p.clock.After(p.config.Interval):
		return true
	}
}

// Stop signals the loop to stop
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

// poll performs one iteration. Only credential failures that leave no
// usable token are returned; everything else degrades to the next interval.
func (p *Poller) poll(ctx context.Context) error {
	pollID := idgen.NewPoll()
	logger := p.logger.With("poll_id", pollID)

	now := p.clock.Now()
	p.mu.Lock()
	p.state.Polls++
	p.state.LastPollAt = &now
	p.mu.Unlock()

	token, err := p.ensureToken(ctx, logger)
	if err != nil {
		return err
	}

	status, err := p.presence.GetPresence(ctx, token)
	if err != nil {
		p.mu.Lock()
		p.state.PresenceFailures++
		failures := p.state.PresenceFailures
		p.mu.Unlock()
		logger.Warn("could not fetch presence", "error", err, "consecutive_failures", failures)
		return nil
	}

	active := p.classifier.IsActive(status)
	logger.Info("current presence",
		"availability", status.Availability,
		"activity", status.Activity,
		"active", active,
	)

	observedAt := p.clock.Now()
	p.mu.Lock()
	p.state.PresenceFailures = 0
	p.state.LastSuccessfulPoll = &observedAt
	p.state.LastStatus = &status
	p.state.LastActive = &active
	applied := p.state.Applied
	p.mu.Unlock()

	p.notifyPresence(ctx, logger, core.Observation{
		PollID: pollID,
		At:     observedAt,
		Status: status,
		Active: active,
	})

	if applied != nil && *applied == active {
		return nil
	}

	p.actuate(ctx, logger, pollID, status, active)
	return nil
}

// ensureToken returns a token that may be used for this iteration, renewing
// the held credential once it is past its safety margin. A failed renewal
// falls back to the held token while its nominal lifetime lasts.
func (p *Poller) ensureToken(ctx context.Context, logger *slog.Logger) (string, error) {
	now := p.clock.Now()

	p.mu.Lock()
	held := p.credential
	p.mu.Unlock()

	if held != nil && held.ValidAt(now, p.config.SafetyMargin) {
		return held.Token, nil
	}

	if held == nil {
		logger.Info("acquiring token")
	} else {
		logger.Info("token past safety margin, renewing",
			"valid_until", held.ValidUntil(p.config.SafetyMargin))
	}

	cred, err := p.creds.GetToken(ctx)
	if err != nil {
		if held != nil && !held.ExpiredAt(now) {
			logger.Warn("token renewal failed, using previous token",
				"error", err,
				"expires_at", held.ObtainedAt.Add(held.TTL),
			)
			return held.Token, nil
		}
		return "", err
	}

	// The loop's clock owns validity; the timestamp is taken before the request.
	cred.ObtainedAt = now
	if cred.TTL <= p.config.SafetyMargin {
		logger.Warn("token lifetime not longer than safety margin, renewing at half lifetime",
			"lifetime", cred.TTL,
			"safety_margin", p.config.SafetyMargin,
		)
	}
	validUntil := cred.ValidUntil(p.config.SafetyMargin)

	p.mu.Lock()
	p.credential = &cred
	p.state.TokenValidUntil = &validUntil
	p.mu.Unlock()

	logger.Info("token acquired", "lifetime", cred.TTL, "valid_until", validUntil)
	return cred.Token, nil
}

// actuate sends the light command and records the new state only on success
func (p *Poller) actuate(ctx context.Context, logger *slog.Logger, pollID string, status core.PresenceStatus, on bool) {
	err := p.light.SetOn(ctx, on)

	tr := core.Transition{
		ID:      idgen.NewTransition(),
		PollID:  pollID,
		At:      p.clock.Now(),
		On:      on,
		Status:  status,
		Success: err == nil,
	}

	p.mu.Lock()
	if err != nil {
		tr.Error = err.Error()
		p.state.LightFailures++
		p.state.LastTransitionError = tr.Error
	} else {
		applied := on
		p.state.Applied = &applied
		p.state.LightFailures = 0
		p.state.LastTransitionError = ""
	}
	failures := p.state.LightFailures
	p.mu.Unlock()

	if err != nil {
		logger.Error("could not set light", "on", on, "error", err, "consecutive_failures", failures)
	} else {
		logger.Info("light switched", "on", on)
	}

	p.notifyTransition(ctx, logger, tr)
}

func (p *Poller) notifyPresence(ctx context.Context, logger *slog.Logger, obs core.Observation) {
	for _, o := range p.observers {
		octx, cancel := context.WithTimeout(ctx, observerTimeout)
		if err := o.ObservePresence(octx, obs); err != nil {
			logger.Warn("observer failed to record presence", "error", err)
		}
		cancel()
	}
}

func (p *Poller) notifyTransition(ctx context.Context, logger *slog.Logger, tr core.Transition) {
	for _, o := range p.observers {
		octx, cancel := context.WithTimeout(ctx, observerTimeout)
		if err := o.ObserveTransition(octx, tr); err != nil {
			logger.Warn("observer failed to record transition", "transition_id", tr.ID, "error", err)
		}
		cancel()
	}
}

// GetState returns a copy of the current state (for the status API and tests)
func (p *Poller) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Applied = copyPtr(p.state.Applied)
	s.LastStatus = copyPtr(p.state.LastStatus)
	s.LastActive = copyPtr(p.state.LastActive)
	s.LastPollAt = copyPtr(p.state.LastPollAt)
	s.LastSuccessfulPoll = copyPtr(p.state.LastSuccessfulPoll)
	s.TokenValidUntil = copyPtr(p.state.TokenValidUntil)
	return s
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
