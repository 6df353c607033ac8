// Package notify forwards inventory events to Shoutrrr destinations.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/rs/zerolog"

	"pcinventory/internal/events"
)

// Sender abstracts message dispatch so the dispatcher can be tested
// without hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Config selects destinations and the events sent to them.
type Config struct {
	URLs   []string
	Events []events.EventType
	// Cooldown suppresses repeats of the same event type for the same
	// machine. Zero disables it.
	Cooldown time.Duration
}

// Dispatcher subscribes to the event bus and sends each matching event to
// every configured URL from a single background goroutine.
type Dispatcher struct {
	cfg    Config
	bus    *events.Bus
	sender Sender
	log    zerolog.Logger

	// cooldowns tracks the last dispatch time per (event type, uuid).
	mu        sync.Mutex
	cooldowns map[string]time.Time

	ch     chan events.Event
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher wired to the given bus.
func NewDispatcher(cfg Config, bus *events.Bus, sender Sender, log zerolog.Logger) *Dispatcher {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{
		cfg:       cfg,
		bus:       bus,
		sender:    sender,
		log:       log,
		cooldowns: make(map[string]time.Time),
		ch:        make(chan events.Event, 256),
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to the configured events and begins dispatching. It is
// a no-op when no URLs are configured.
func (d *Dispatcher) Start() {
	if len(d.cfg.URLs) == 0 {
		d.log.Info().Msg("No notification URLs configured")
		return
	}

	d.bus.Subscribe(func(e events.Event) {
		select {
		case d.ch <- e:
		default:
			d.log.Warn().Str("event", string(e.Type)).Msg("Notification queue full, dropping event")
		}
	}, d.cfg.Events...)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case e := <-d.ch:
				d.handle(e)
			case <-d.stopCh:
				// Drain remaining events
				for {
					select {
					case e := <-d.ch:
						d.handle(e)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop signals the dispatcher goroutine to finish and waits for it.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) handle(e events.Event) {
	if !d.cooldownAllows(e) {
		d.log.Debug().Str("event", string(e.Type)).Str("uuid", e.UUID).Msg("Notification suppressed by cooldown")
		return
	}

	msg := formatMessage(e)
	for _, url := range d.cfg.URLs {
		if err := d.sender.Send(url, msg); err != nil {
			d.log.Error().Err(err).Str("event", string(e.Type)).Msg("Notification send failed")
			continue
		}
		d.log.Debug().Str("event", string(e.Type)).Str("uuid", e.UUID).Msg("Notification sent")
	}
}

func (d *Dispatcher) cooldownAllows(e events.Event) bool {
	if d.cfg.Cooldown <= 0 {
		return true
	}
	key := fmt.Sprintf("%s:%s", e.Type, e.UUID)

	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if last, ok := d.cooldowns[key]; ok && now.Sub(last) < d.cfg.Cooldown {
		return false
	}
	d.cooldowns[key] = now
	return true
}

// formatMessage builds a human-readable notification string.
func formatMessage(e events.Event) string {
	return fmt.Sprintf("[%s] [%s] %s", e.Severity, e.Type, e.Message)
}
