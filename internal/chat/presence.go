package chat

import "sync/atomic"

// PresenceCounter tracks how many connections in a namespace have completed
// identity registration.
//
// It is shared by every session in the namespace and mutated only through
// Increment and Decrement, so the invariant "count == number of Named
// sessions" is enforceable at this single choke point. There is deliberately
// no floor at zero: the session state machine guarantees a decrement is only
// ever issued for a session that previously incremented.
type PresenceCounter struct {
	n atomic.Int64
}

// Increment records a completed registration and returns the new count.
func (p *PresenceCounter) Increment() int64 {
	return p.n.Add(1)
}

// Decrement records a named session's departure and returns the new count.
func (p *PresenceCounter) Decrement() int64 {
	return p.n.Add(-1)
}

// Count returns the current value. Read-only, for metrics and tests.
func (p *PresenceCounter) Count() int64 {
	return p.n.Load()
}
