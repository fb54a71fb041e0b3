package chat

import (
	"log/slog"
	"sync"

	v1 "palaver/shared/contracts/chat/v1"
)

// Room is the in-memory membership + broadcast fanout primitive for one
// namespace. Membership is the live connection set: a connection is added at
// accept time and removed at teardown, independent of whether it ever
// registered a display name.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent EmitOthers/EmitSelf.
// - Delivery never blocks (drops under backpressure) and never surfaces an
//   error to the caller: a dead recipient must not abort the remaining fanout.
// - Delivery is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log     *slog.Logger
	Name    string
	metrics *Metrics

	// Presence is the count of Named sessions in this namespace, shared by
	// every session the orchestrator binds to this room.
	Presence *PresenceCounter

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs an empty room for the given namespace.
func NewRoom(log *slog.Logger, name string, metrics *Metrics) *Room {
	return &Room{
		log:      log,
		Name:     name,
		metrics:  metrics,
		Presence: &PresenceCounter{},
		members:  make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	r.log.Debug("room.member.join", "room", r.Name, "session_id", client.SessionID)
}

// Leave removes a client from membership and signals shutdown for that client.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	var cl *Client

	r.mu.Lock()
	cl = r.members[sessionID]
	delete(r.members, sessionID)
	r.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a broadcaster still holds a
	// pointer while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
	}

	r.log.Debug("room.member.leave", "room", r.Name, "session_id", sessionID)
}

// Len returns the current number of live connections in the room.
func (r *Room) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// EmitSelf delivers an envelope only to the originating session.
// Non-blocking: dropped if the client queue is full or shutting down.
func (r *Room) EmitSelf(sessionID string, env v1.Envelope) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.RLock()
	cl := r.members[sessionID]
	r.mu.RUnlock()

	r.deliver(cl, env)
}

// EmitOthers fanouts an envelope to every member except the originator.
// Membership is read at call time: a connection that left between two
// broadcasts never receives the later one.
func (r *Room) EmitOthers(exceptSessionID string, env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, m := range r.members {
		if id == exceptSessionID {
			continue
		}
		r.deliver(m, env)
	}
}

// deliver enqueues on a single member, skipping shutting-down clients and
// dropping rather than blocking the whole room.
func (r *Room) deliver(cl *Client, env v1.Envelope) {
	if cl == nil {
		return
	}

	select {
	case <-cl.Done():
		return
	default:
	}

	select {
	case cl.Send <- env:
	default:
		r.metrics.DeliveryDropped(env.Event)
	}
}
