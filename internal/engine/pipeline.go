// Package engine decides when the agent reports, performs the report and
// retries failed reports with a single background cycle.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/config"
	"pcinventory/internal/facts"
	"pcinventory/internal/transport"
)

// FactSource reads facts from the local machine.
type FactSource interface {
	Collect(ctx context.Context) (facts.Record, error)
	Network(ctx context.Context) (facts.Network, error)
}

// ConfigStore loads and persists the agent configuration.
type ConfigStore interface {
	Load() (*config.Agent, error)
	Save(cfg *config.Agent) error
}

// Transport makes one submission attempt.
type Transport interface {
	Submit(ctx context.Context, r facts.Record) (transport.Receipt, error)
}

// TransportFactory builds a Transport for the server settings in cfg.
type TransportFactory func(cfg *config.Agent) Transport

// HTTPTransport is the TransportFactory used by the agent binary.
func HTTPTransport(cfg *config.Agent) Transport {
	var opts []transport.Option
	if cfg.Server.APIToken != "" {
		opts = append(opts, transport.WithToken(cfg.Server.APIToken))
	}
	return transport.New(cfg.Server.URL, cfg.RequestTimeout(), opts...)
}

// Outcome is the result of one pipeline call.
type Outcome int

const (
	OutcomeSent Outcome = iota
	// OutcomeSkipped means the record was incomplete and nothing was sent.
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Sender runs one periodic send attempt.
type Sender interface {
	Run(ctx context.Context, cfg *config.Agent) (Outcome, error)
}

// Pipeline collects facts, submits them and records the checkpoint. Each
// call works on the cfg it is given; calls share no state.
type Pipeline struct {
	Source FactSource
	Store  ConfigStore
	Dial   TransportFactory
	Log    zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Initial performs a full collection, stores the snapshot in the config
// file and sends it.
func (p *Pipeline) Initial(ctx context.Context, cfg *config.Agent) (Outcome, error) {
	rec, err := p.Source.Collect(ctx)
	if err != nil {
		return OutcomeFailed, &CollectionError{Err: err}
	}
	p.Log.Info().
		Str("uuid", rec.UUID).
		Str("model", rec.ModelName).
		Str("os", rec.OS).
		Str("os_version", rec.OSVersion).
		Str("ip", rec.IPAddress).
		Str("mac", rec.MACAddress).
		Str("network_type", rec.NetworkType).
		Msg("Facts collected")

	cfg.ApplyRecord(rec)
	if err := p.Store.Save(cfg); err != nil {
		p.Log.Warn().Err(err).Str("phase", "config").Msg("Failed to save collected facts")
	}

	return p.send(ctx, cfg)
}

// Run re-collects network facts into cfg and sends the record.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Agent) (Outcome, error) {
	n, err := p.Source.Network(ctx)
	if err != nil {
		return OutcomeFailed, &CollectionError{Err: err}
	}
	p.Log.Debug().
		Str("ip", n.IPAddress).
		Str("mac", n.MACAddress).
		Str("network_type", n.NetworkType).
		Msg("Network facts refreshed")

	cfg.ApplyNetwork(n)
	return p.send(ctx, cfg)
}

func (p *Pipeline) send(ctx context.Context, cfg *config.Agent) (Outcome, error) {
	rec := cfg.Record()
	if !rec.Complete() {
		p.Log.Warn().Err(rec.Validate()).Str("phase", "validate").Msg("Record incomplete, send skipped")
		return OutcomeSkipped, nil
	}

	started := p.now()
	receipt, err := p.Dial(cfg).Submit(ctx, rec)
	if err != nil {
		return OutcomeFailed, err
	}
	p.Log.Info().Str("action", receipt.Action).Int64("id", receipt.ID).Msg("Record accepted")

	sent := p.now()
	if sent.Before(started) {
		sent = started
	}
	cfg.Client.LastSendDatetime = stamp(sent)
	if err := p.Store.Save(cfg); err != nil {
		return OutcomeSent, &CheckpointError{Err: err}
	}
	return OutcomeSent, nil
}

// errorKind names the failure class for log fields.
func errorKind(err error) string {
	var (
		te *transport.Error
		ce *CollectionError
		ke *CheckpointError
	)
	switch {
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &ce):
		return "collection"
	case errors.As(err, &ke):
		return "checkpoint"
	}
	return "unknown"
}

// retryable reports whether err should start a retry cycle.
func retryable(err error) bool {
	var te *transport.Error
	return errors.As(err, &te)
}
