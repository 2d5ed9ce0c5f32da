package auth

import (
	"sync"
	"time"
)

// VisibilityTracker observes foreground/background transitions and exposes a
// short dead-time window during which redundant re-synchronization is
// suppressed. It is never consulted for security-relevant transitions: a
// sign-out notification is never suppressed.
type VisibilityTracker struct {
	mu          sync.Mutex
	lastVisible time.Time
	handlers    []func(visible bool, at time.Time)
	now         func() time.Time
}

// NewVisibilityTracker creates a tracker with an optional injectable clock.
func NewVisibilityTracker(now func() time.Time) *VisibilityTracker {
	if now == nil {
		now = time.Now
	}
	return &VisibilityTracker{now: now}
}

// OnVisibilityChange registers a handler invoked on every transition.
func (v *VisibilityTracker) OnVisibilityChange(handler func(visible bool, at time.Time)) {
	if handler == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = append(v.handlers, handler)
}

// HandleChange records a foreground/background transition.
func (v *VisibilityTracker) HandleChange(visible bool) {
	at := v.now()

	v.mu.Lock()
	if visible {
		v.lastVisible = at
	}
	handlers := make([]func(bool, time.Time), len(v.handlers))
	copy(handlers, v.handlers)
	v.mu.Unlock()

	for _, h := range handlers {
		h(visible, at)
	}
}

// ShouldSuppress reports whether a foreground transition occurred within the
// given window of now. Used exclusively to gate re-validation noise.
func (v *VisibilityTracker) ShouldSuppress(within time.Duration) bool {
	if within <= 0 {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lastVisible.IsZero() {
		return false
	}
	return v.now().Sub(v.lastVisible) <= within
}
