package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/config"
)

// Scheduler drives the agent: one full report at startup, then a periodic
// check that sends when the send interval has elapsed. Failed sends are
// handed to the retry coordinator without blocking the loop.
type Scheduler struct {
	store    ConfigStore
	pipeline *Pipeline
	retry    *Coordinator
	log      zerolog.Logger

	cfg *config.Agent
}

// NewScheduler returns a scheduler starting from the already loaded cfg.
func NewScheduler(cfg *config.Agent, store ConfigStore, pipeline *Pipeline, retry *Coordinator, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		pipeline: pipeline,
		retry:    retry,
		log:      log,
		cfg:      cfg,
	}
}

// Retry returns the coordinator that owns retry cycles.
func (s *Scheduler) Retry() *Coordinator {
	return s.retry
}

// Config returns the configuration the scheduler currently works from.
func (s *Scheduler) Config() *config.Agent {
	return s.cfg
}

// Run performs the initial report and then checks every
// client.check_interval_secs until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Initial(ctx)

	interval := s.cfg.CheckInterval()
	s.log.Info().Dur("interval", interval).Msg("Starting periodic check timer")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
			if next := s.cfg.CheckInterval(); next != interval {
				s.log.Info().Dur("interval", next).Msg("Check interval changed")
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Initial collects every fact, saves it and sends it regardless of the
// checkpoint.
func (s *Scheduler) Initial(ctx context.Context) {
	s.log.Info().Msg("Running initial report")
	outcome, err := s.pipeline.Initial(ctx, s.cfg)
	s.handle(ctx, "initial", outcome, err)
}

// Tick reloads the configuration and sends when the send interval has
// elapsed since the last successful send.
func (s *Scheduler) Tick(ctx context.Context) {
	s.log.Debug().Msg("Periodic check triggered")

	if cfg, err := s.store.Load(); err != nil {
		s.log.Warn().Err(err).Str("phase", "config").Msg("Failed to reload configuration, keeping previous")
	} else {
		s.cfg = cfg
	}

	due, err := CheckpointOf(s.cfg).Due(s.pipeline.now(), s.cfg.SendInterval())
	if err != nil {
		s.log.Warn().Err(err).Str("phase", "config").Msg("Invalid last send datetime, sending anyway")
	}
	if !due {
		s.log.Debug().Msg("Send interval not elapsed yet")
		return
	}

	s.log.Info().Msg("Send interval elapsed, sending record")
	outcome, err := s.pipeline.Run(ctx, s.cfg)
	s.handle(ctx, "periodic", outcome, err)
}

func (s *Scheduler) handle(ctx context.Context, phase string, outcome Outcome, err error) {
	if err == nil {
		if outcome == OutcomeSent {
			s.log.Info().Str("phase", phase).Msg("Record sent")
		}
		return
	}

	s.log.Error().Err(err).
		Str("phase", phase).
		Str("kind", errorKind(err)).
		Msg("Send failed")
	if retryable(err) {
		s.retry.Start(ctx)
	}
}
