package notify

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pcinventory/internal/events"
	"pcinventory/internal/models"
)

// mockSender records calls for assertion.
type mockSender struct {
	mu       sync.Mutex
	urls     []string
	calls    []string
	failNext bool
}

func (m *mockSender) Send(url, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	m.calls = append(m.calls, message)
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("mock send error")
	}
	return nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func setupDispatcherTest(t *testing.T, cfg Config) (*events.Bus, *mockSender, *Dispatcher) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	sender := &mockSender{}
	d := NewDispatcher(cfg, bus, sender, zerolog.Nop())
	return bus, sender, d
}

func machine(ip string) models.Machine {
	return models.Machine{UUID: "u-1", UserName: "Taro Yamada", IPAddress: ip, NetworkType: "Ethernet", ModelName: "OptiPlex"}
}

func TestDispatcherSendsConfiguredEventsToEveryURL(t *testing.T) {
	bus, sender, d := setupDispatcherTest(t, Config{
		URLs:   []string{"generic://a.example.com", "generic://b.example.com"},
		Events: []events.EventType{events.MachineCreated},
	})

	d.Start()
	bus.Publish(events.Created(machine("10.0.0.1")))
	d.Stop()

	if sender.callCount() != 2 {
		t.Fatalf("expected 2 sends, got %d", sender.callCount())
	}
	if sender.urls[0] != "generic://a.example.com" || sender.urls[1] != "generic://b.example.com" {
		t.Errorf("unexpected urls %v", sender.urls)
	}
	if !strings.Contains(sender.calls[0], "[machine_created]") {
		t.Errorf("message missing event type: %q", sender.calls[0])
	}
}

func TestDispatcherIgnoresUnconfiguredEvents(t *testing.T) {
	bus, sender, d := setupDispatcherTest(t, Config{
		URLs:   []string{"generic://a.example.com"},
		Events: []events.EventType{events.MachineMoved},
	})

	d.Start()
	bus.Publish(events.Updated(machine("10.0.0.1")))
	d.Stop()

	if sender.callCount() != 0 {
		t.Errorf("expected 0 sends, got %d", sender.callCount())
	}
}

func TestDispatcherWithoutURLsDoesNotSubscribe(t *testing.T) {
	bus, sender, d := setupDispatcherTest(t, Config{})

	d.Start()
	bus.Publish(events.Created(machine("10.0.0.1")))
	d.Stop()

	if sender.callCount() != 0 {
		t.Errorf("expected 0 sends, got %d", sender.callCount())
	}
}

func TestDispatcherContinuesAfterSendFailure(t *testing.T) {
	bus, sender, d := setupDispatcherTest(t, Config{
		URLs:   []string{"generic://a.example.com", "generic://b.example.com"},
		Events: []events.EventType{events.MachineCreated},
	})
	sender.failNext = true

	d.Start()
	bus.Publish(events.Created(machine("10.0.0.1")))
	d.Stop()

	if sender.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", sender.callCount())
	}
}

func TestDispatcherCooldown(t *testing.T) {
	bus, sender, d := setupDispatcherTest(t, Config{
		URLs:     []string{"generic://a.example.com"},
		Events:   []events.EventType{events.MachineMoved},
		Cooldown: time.Hour,
	})

	d.Start()
	bus.Publish(events.Moved(machine("10.0.0.1"), machine("10.0.0.2")))
	bus.Publish(events.Moved(machine("10.0.0.2"), machine("10.0.0.3")))
	other := machine("10.0.0.4")
	other.UUID = "u-2"
	bus.Publish(events.Moved(machine("10.0.0.1"), other))
	d.Stop()

	if sender.callCount() != 2 {
		t.Errorf("expected 2 sends (one per machine), got %d", sender.callCount())
	}
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(events.Event{
		Type:     events.MachineMoved,
		Severity: events.SeverityWarning,
		Message:  "Machine u-1 moved",
	})
	want := "[warning] [machine_moved] Machine u-1 moved"
	if msg != want {
		t.Errorf("got %q, want %q", msg, want)
	}
}
