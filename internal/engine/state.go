package engine

// State is the retry coordinator's position in its cycle.
type State int

const (
	Idle State = iota
	Tier1
	Tier2
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	}
	return "unknown"
}

// Attempt is the result of one retry attempt as seen by the state machine.
type Attempt int

const (
	AttemptSucceeded Attempt = iota
	AttemptFailed
	// ConfigUnavailable means the configuration could not be loaded, so no
	// submission was made.
	ConfigUnavailable
)

// Next returns the state that follows s after attempt a. Failures alternate
// between the two tiers; an unreadable configuration keeps the current tier.
func Next(s State, a Attempt) State {
	switch a {
	case AttemptSucceeded:
		return Idle
	case ConfigUnavailable:
		return s
	}
	if s == Tier1 {
		return Tier2
	}
	return Tier1
}
