package progress

import (
	"sync"
	"time"
)

// Throttle admits at most one event per interval. The window starts at creation.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// NewThrottle builds a throttle; now defaults to time.Now.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now, last: now()}
}

// Allow reports whether an event may fire now, and if so restarts the window.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.now()
	if n.Sub(t.last) < t.interval {
		return false
	}
	t.last = n
	return true
}
