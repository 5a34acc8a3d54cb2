package bridge

import (
	"sync"
	"time"
)

// Deadman tracks when the last inbound frame was processed.
type Deadman struct {
	mu       sync.RWMutex
	lastSeen time.Time
	timeout  time.Duration
}

func NewDeadman(timeout time.Duration, now time.Time) *Deadman {
	return &Deadman{lastSeen: now, timeout: timeout}
}

func (d *Deadman) Reset(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Deadman) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

func (d *Deadman) Idle(now time.Time) time.Duration {
	return now.Sub(d.LastSeen())
}

// Expired reports whether strictly more than the timeout has passed.
func (d *Deadman) Expired(now time.Time) bool {
	return d.Idle(now) > d.timeout
}
