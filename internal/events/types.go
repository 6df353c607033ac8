package events

import (
	"fmt"
	"time"

	"pcinventory/internal/models"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// MachineCreated fires when a uuid is seen for the first time.
	MachineCreated EventType = "machine_created"
	// MachineUpdated fires on every report for a known uuid.
	MachineUpdated EventType = "machine_updated"
	// MachineMoved fires alongside MachineUpdated when the IP address or
	// network type changed.
	MachineMoved EventType = "machine_moved"
)

// AllTypes lists every event type, for configuration validation.
var AllTypes = []EventType{MachineCreated, MachineUpdated, MachineMoved}

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityCritical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
type Event struct {
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	UUID      string            `json:"uuid"`
	Message   string            `json:"message"`
	Machine   *models.Machine   `json:"machine,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Created builds the event for a newly inventoried machine.
func Created(m models.Machine) Event {
	return Event{
		Type:     MachineCreated,
		Severity: SeverityInfo,
		UUID:     m.UUID,
		Message:  fmt.Sprintf("New machine %s (%s) reported by %s from %s", m.ModelName, m.UUID, m.UserName, m.IPAddress),
		Machine:  &m,
	}
}

// Updated builds the event for a repeat report.
func Updated(m models.Machine) Event {
	return Event{
		Type:     MachineUpdated,
		Severity: SeverityInfo,
		UUID:     m.UUID,
		Message:  fmt.Sprintf("Machine %s reported by %s from %s", m.UUID, m.UserName, m.IPAddress),
		Machine:  &m,
	}
}

// Moved builds the event for a machine whose address or network type
// changed since its previous report.
func Moved(prev, cur models.Machine) Event {
	return Event{
		Type:     MachineMoved,
		Severity: SeverityWarning,
		UUID:     cur.UUID,
		Message: fmt.Sprintf("Machine %s moved from %s (%s) to %s (%s)",
			cur.UUID, prev.IPAddress, prev.NetworkType, cur.IPAddress, cur.NetworkType),
		Machine: &cur,
		Metadata: map[string]string{
			"previous_ip":           prev.IPAddress,
			"previous_network_type": prev.NetworkType,
		},
	}
}

// ParseType validates an event type name from configuration.
func ParseType(s string) (EventType, error) {
	for _, t := range AllTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}
