package chat

import "sync"

// identitySlot holds a session's display name and enforces set-once.
//
// The slot is owned by exactly one session, but the check-and-set must still
// be atomic: duplicate "add user" events can arrive in rapid succession and
// must never register twice (a double registration would double-increment the
// presence counter).
type identitySlot struct {
	mu   sync.Mutex
	name string
	set  bool
}

// TrySet stores name if the slot is still empty. A redundant attempt returns
// false and leaves the stored name unchanged; it is not an error.
func (s *identitySlot) TrySet(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set {
		return false
	}
	s.name = name
	s.set = true
	return true
}

// Get returns the stored name and whether one has been registered.
func (s *identitySlot) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.set
}
