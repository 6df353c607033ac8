package events

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/models"
)

func TestPublishCallsMatchingSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		if e.Type != MachineCreated {
			t.Errorf("expected MachineCreated, got %s", e.Type)
		}
		called.Store(true)
	}, MachineCreated)

	bus.Publish(Event{Type: MachineCreated, Message: "test"})

	if !called.Load() {
		t.Error("subscriber was not called")
	}
}

func TestSubscriberIgnoresUnmatchedTypes(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		called.Store(true)
	}, MachineCreated)

	bus.Publish(Event{Type: MachineMoved, Message: "moved"})

	if called.Load() {
		t.Error("subscriber should not have been called for MachineMoved")
	}
}

func TestWildcardSubscriberReceivesAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var count atomic.Int32

	bus.Subscribe(func(e Event) {
		count.Add(1)
	})

	bus.Publish(Event{Type: MachineCreated, Message: "a"})
	bus.Publish(Event{Type: MachineMoved, Message: "b"})
	bus.Publish(Event{Type: MachineUpdated, Message: "c"})

	if count.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", count.Load())
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got time.Time

	bus.Subscribe(func(e Event) {
		got = e.Timestamp
	})

	bus.Publish(Event{Type: MachineCreated, Message: "ts"})

	if got.IsZero() {
		t.Error("timestamp was not set")
	}
}

func TestPublishPreservesExplicitTimestamp(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	explicit := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var got time.Time

	bus.Subscribe(func(e Event) {
		got = e.Timestamp
	})

	bus.Publish(Event{Type: MachineCreated, Message: "ts", Timestamp: explicit})

	if !got.Equal(explicit) {
		t.Errorf("expected %v, got %v", explicit, got)
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var count atomic.Int32
	var wg sync.WaitGroup

	// Subscribe concurrently
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Subscribe(func(e Event) {
				count.Add(1)
			}, MachineCreated)
		}()
	}
	wg.Wait()

	// Publish concurrently
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: MachineCreated, Message: "concurrent"})
		}()
	}
	wg.Wait()

	expected := int32(10 * 100)
	if count.Load() != expected {
		t.Errorf("expected %d, got %d", expected, count.Load())
	}
}

func TestPanicInSubscriberDoesNotCrash(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var secondCalled atomic.Bool

	bus.Subscribe(func(e Event) {
		panic("bad subscriber")
	}, MachineCreated)

	bus.Subscribe(func(e Event) {
		secondCalled.Store(true)
	}, MachineCreated)

	bus.Publish(Event{Type: MachineCreated, Message: "panic test"})

	if !secondCalled.Load() {
		t.Error("second subscriber should still be called after first panics")
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestMovedCarriesPreviousAddress(t *testing.T) {
	prev := models.Machine{UUID: "u-1", IPAddress: "10.0.0.5", NetworkType: "Ethernet"}
	cur := models.Machine{UUID: "u-1", IPAddress: "10.0.8.9", NetworkType: "Wi-Fi"}

	e := Moved(prev, cur)

	if e.Type != MachineMoved || e.Severity != SeverityWarning {
		t.Fatalf("unexpected event %s/%s", e.Type, e.Severity)
	}
	if e.Metadata["previous_ip"] != "10.0.0.5" || e.Metadata["previous_network_type"] != "Ethernet" {
		t.Errorf("metadata = %v", e.Metadata)
	}
	if e.Machine == nil || e.Machine.IPAddress != "10.0.8.9" {
		t.Errorf("machine = %+v", e.Machine)
	}
}

func TestParseType(t *testing.T) {
	for _, want := range AllTypes {
		got, err := ParseType(string(want))
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %q, %v", want, got, err)
		}
	}
	if _, err := ParseType("drive_appeared"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestPublishLogsDeliveredSubscribers(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(zerolog.New(&buf).Level(zerolog.DebugLevel))
	bus.Subscribe(func(Event) {}, MachineCreated)
	bus.Subscribe(func(Event) {}, MachineMoved)
	bus.Subscribe(func(Event) {})

	bus.Publish(Event{Type: MachineCreated, UUID: "4c4c4544-0042-3510-8052-b7c04f4e4d32"})

	var line struct {
		Event       string `json:"event"`
		UUID        string `json:"uuid"`
		Subscribers int    `json:"subscribers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line.Event != string(MachineCreated) {
		t.Errorf("expected event %s, got %s", MachineCreated, line.Event)
	}
	if line.UUID != "4c4c4544-0042-3510-8052-b7c04f4e4d32" {
		t.Errorf("unexpected uuid %q", line.UUID)
	}
	if line.Subscribers != 2 {
		t.Errorf("expected 2 subscribers, got %d", line.Subscribers)
	}
}
