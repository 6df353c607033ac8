// Package events is the collector's in-process publish/subscribe bus for
// inventory changes.
//
// The submit handler publishes MachineCreated for a UUID seen for the
// first time and MachineUpdated for every later report. When a report
// changes the machine's IP address or network type, MachineMoved follows
// the update and carries the previous values in its metadata. The
// notification dispatcher and the websocket feed are the subscribers.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler is a callback invoked when a matching event is published.
type Handler func(Event)

// subscription ties a handler to the event types it cares about.
type subscription struct {
	types   map[EventType]struct{} // nil means "all events"
	handler Handler
}

// Bus is a thread-safe, in-process publish/subscribe event bus.
type Bus struct {
	log         zerolog.Logger
	mu          sync.RWMutex
	subscribers []subscription
}

// NewBus creates a ready-to-use event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers a handler for the given event types.
// If no types are provided the handler receives every event.
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
}

// Publish sends an event to all matching subscribers.
// The timestamp is set automatically if zero.
// Handlers run synchronously in the caller's goroutine, so slow
// subscribers must hand work off themselves.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.types != nil {
			if _, ok := sub.types[e.Type]; !ok {
				continue
			}
		}
		delivered++
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Str("event", string(e.Type)).Interface("panic", r).Msg("Subscriber panic")
				}
			}()
			sub.handler(e)
		}()
	}
	b.log.Debug().Str("event", string(e.Type)).Str("uuid", e.UUID).Int("subscribers", delivered).Msg("Event published")
}
