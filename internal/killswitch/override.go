package killswitch

import (
	"sync"
	"time"
)

// Override implements a manual kill-switch override: an operator-
// triggered, time-bounded forced BLOCKED state, for example during a
// known data-source incident. It is a Go-only API with no HTTP endpoint;
// the query service's HTTP surface stays read-only, so a host
// application's own admin tooling calls Activate/Clear directly.
type Override struct {
	mu      sync.Mutex
	until   time.Time
	reason  string
}

// Activate forces BLOCKED for duration d, recording reason for the
// resulting UsagePolicy.Notes.
func (o *Override) Activate(reason string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.until = time.Now().Add(d)
	o.reason = reason
}

// Clear cancels an active override early.
func (o *Override) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.until = time.Time{}
	o.reason = ""
}

// Active reports whether an override is currently in force, and its
// reason if so.
func (o *Override) Active() (reason string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.until.IsZero() || time.Now().After(o.until) {
		return "", false
	}
	return o.reason, true
}
