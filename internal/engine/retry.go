package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/config"
)

// DefaultFallbackDelay is the wait after the configuration could not be
// loaded during a retry cycle.
const DefaultFallbackDelay = 60 * time.Second

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the Sleeper backed by a real timer.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Coordinator runs at most one retry cycle at a time. A cycle alternates
// between the two configured delays until an attempt succeeds.
type Coordinator struct {
	sender   Sender
	store    ConfigStore
	log      zerolog.Logger
	sleep    Sleeper
	fallback time.Duration

	mu     sync.Mutex
	active bool
	state  State
	done   chan struct{}
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSleeper replaces the timer used between attempts.
func WithSleeper(s Sleeper) CoordinatorOption {
	return func(c *Coordinator) { c.sleep = s }
}

// WithFallbackDelay sets the wait used when the configuration is unreadable.
func WithFallbackDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.fallback = d }
}

// NewCoordinator returns an idle coordinator that sends through sender and
// reads each attempt's configuration from store.
func NewCoordinator(sender Sender, store ConfigStore, log zerolog.Logger, opts ...CoordinatorOption) *Coordinator {
	done := make(chan struct{})
	close(done)
	c := &Coordinator{
		sender:   sender,
		store:    store,
		log:      log,
		sleep:    SleepContext,
		fallback: DefaultFallbackDelay,
		done:     done,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a retry cycle unless one is already active. It reports
// whether a new cycle was started.
func (c *Coordinator) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.log.Debug().Msg("Retry cycle already active")
		return false
	}
	c.active = true
	c.state = Tier1
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	c.log.Info().Msg("Starting retry cycle")
	go c.cycle(ctx, done)
	return true
}

// Active reports whether a retry cycle holds the flag.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the current tier, or Idle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed once the current cycle, if any, has exited.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// cycle alternates tiers until an attempt is delivered. An incomplete
// record also ends the cycle: it is skipped without a send, and sending it
// again on the next tier cannot change that.
func (c *Coordinator) cycle(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		state := c.State()

		cfg, ok := c.load(ctx)
		if !ok {
			continue
		}

		delay := tierDelay(cfg, state)
		c.log.Info().Stringer("state", state).Dur("delay", delay).Msg("Retry scheduled")
		if err := c.sleep(ctx, delay); err != nil {
			return
		}

		// The file may have changed while waiting.
		cfg, ok = c.load(ctx)
		if !ok {
			continue
		}

		c.log.Info().Stringer("state", state).Msg("Attempting retry send")
		outcome, err := c.sender.Run(ctx, cfg)
		if err != nil && !isCheckpointError(err) {
			next := c.transition(AttemptFailed)
			c.log.Error().Err(err).
				Str("phase", "retry").
				Str("kind", errorKind(err)).
				Stringer("next", next).
				Msg("Retry send failed")
			continue
		}

		if err != nil {
			c.log.Warn().Err(err).Str("phase", "checkpoint").Msg("Retry send delivered but checkpoint not saved")
		}
		c.finish()
		if outcome == OutcomeSkipped {
			c.log.Warn().Msg("Record incomplete, retry cycle ended without sending")
		} else {
			c.log.Info().Msg("Retry send successful, retry cycle ended")
		}
		return
	}
}

// load reads the configuration, waiting the fallback delay on failure.
func (c *Coordinator) load(ctx context.Context) (*config.Agent, bool) {
	cfg, err := c.store.Load()
	if err == nil {
		return cfg, true
	}
	state := c.transition(ConfigUnavailable)
	c.log.Error().Err(err).
		Str("phase", "config").
		Stringer("state", state).
		Dur("delay", c.fallback).
		Msg("Failed to load config during retry")
	_ = c.sleep(ctx, c.fallback)
	return nil, false
}

func (c *Coordinator) transition(a Attempt) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Next(c.state, a)
	return c.state
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Next(c.state, AttemptSucceeded)
	c.active = false
}

func tierDelay(cfg *config.Agent, s State) time.Duration {
	if s == Tier2 {
		return cfg.SecondRetryDelay()
	}
	return cfg.FirstRetryDelay()
}

func isCheckpointError(err error) bool {
	var ke *CheckpointError
	return errors.As(err, &ke)
}
