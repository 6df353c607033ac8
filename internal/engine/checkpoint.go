package engine

import (
	"fmt"
	"strings"
	"time"

	"pcinventory/internal/config"
)

// Checkpoint is the time of the last successful submission, as stored in
// client.last_send_datetime.
type Checkpoint struct {
	LastSend string
}

// CheckpointOf reads the checkpoint from cfg.
func CheckpointOf(cfg *config.Agent) Checkpoint {
	return Checkpoint{LastSend: cfg.Client.LastSendDatetime}
}

// Due reports whether interval has elapsed since the last send. A missing
// checkpoint is always due. An unparsable one is also due, and the parse
// error is returned so the caller can log it.
func (c Checkpoint) Due(now time.Time, interval time.Duration) (bool, error) {
	raw := strings.TrimSpace(c.LastSend)
	if raw == "" {
		return true, nil
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true, fmt.Errorf("parse last send datetime %q: %w", raw, err)
	}
	return now.Sub(last) >= interval, nil
}

// stamp formats t the way checkpoints are written.
func stamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
