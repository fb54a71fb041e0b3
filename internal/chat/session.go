package chat

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	v1 "palaver/shared/contracts/chat/v1"
)

// Session is the server-side state bound to one live connection.
//
// It owns the connection's identity slot and moves through exactly two
// identity states: anonymous (initial) and named (terminal until disconnect).
// The single correctness-critical branch is the duplicate-join guard: without
// it a client could repeat "add user" and inflate the shared presence counter.
type Session struct {
	log     *slog.Logger
	room    *Room
	client  *Client
	metrics *Metrics

	identity identitySlot
	leave    sync.Once
}

// NewSession binds a fresh session to its room and delivery handle.
// The caller is responsible for having joined the client to the room.
func NewSession(log *slog.Logger, room *Room, client *Client, metrics *Metrics) *Session {
	return &Session{
		log:     log,
		room:    room,
		client:  client,
		metrics: metrics,
	}
}

// Username returns the registered display name, if any.
func (s *Session) Username() (string, bool) {
	return s.identity.Get()
}

// HandleAddUser processes "add user". The first valid attempt registers the
// name, increments the presence counter and announces the session; every
// later attempt on the same session is a silent no-op.
func (s *Session) HandleAddUser(name string) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameChars {
		s.log.Debug("session.join.invalid_name", "session_id", s.client.SessionID)
		return
	}

	if !s.identity.TrySet(name) {
		// Duplicate join: already named, nothing to announce.
		s.log.Debug("session.join.duplicate", "session_id", s.client.SessionID)
		return
	}

	n := s.room.Presence.Increment()
	s.metrics.UsersNamed(s.room.Presence.Count())
	s.log.Info("session.join", "session_id", s.client.SessionID, "username", name, "num_users", n)

	s.room.EmitSelf(s.client.SessionID, mustEnvelope(v1.EventLogin, v1.LoginPayload{
		NumUsers: n,
	}))
	s.room.EmitOthers(s.client.SessionID, mustEnvelope(v1.EventUserJoined, v1.UserEventPayload{
		NumUsers: n,
		Username: name,
	}))
}

// HandleNewMessage processes "new message": attributed to the registered
// name and fanned out to everyone else. Messages sent before registration
// are dropped rather than broadcast with an empty identity.
func (s *Session) HandleNewMessage(text string) {
	name, ok := s.identity.Get()
	if !ok {
		s.log.Debug("session.message.anonymous_dropped", "session_id", s.client.SessionID)
		return
	}
	if text == "" || len([]rune(text)) > maxMessageChars {
		return
	}

	s.metrics.MessageBroadcast()
	s.room.EmitOthers(s.client.SessionID, mustEnvelope(v1.EventNewMessage, v1.MessagePayload{
		Username: name,
		Message:  text,
	}))
}

// HandleTyping processes "typing". Not deduplicated: every event produces
// one broadcast.
func (s *Session) HandleTyping() {
	s.emitTyping(v1.EventTyping)
}

// HandleStopTyping processes "stop typing".
func (s *Session) HandleStopTyping() {
	s.emitTyping(v1.EventStopTyping)
}

func (s *Session) emitTyping(event string) {
	name, ok := s.identity.Get()
	if !ok {
		return
	}
	s.room.EmitOthers(s.client.SessionID, mustEnvelope(event, v1.TypingPayload{
		Username: name,
	}))
}

// HandleDisconnect tears the session down exactly once. If and only if the
// session registered a name, the presence counter is decremented and the
// departure is announced; an anonymous disconnect is silent.
func (s *Session) HandleDisconnect() {
	s.leave.Do(func() {
		name, named := s.identity.Get()

		// Remove from membership first so this session never observes the
		// departure broadcast (or any later one).
		s.room.Leave(s.client.SessionID)

		if !named {
			return
		}

		n := s.room.Presence.Decrement()
		s.metrics.UsersNamed(s.room.Presence.Count())
		s.log.Info("session.leave", "session_id", s.client.SessionID, "username", name, "num_users", n)

		s.room.EmitOthers(s.client.SessionID, mustEnvelope(v1.EventUserLeft, v1.UserEventPayload{
			NumUsers: n,
			Username: name,
		}))
	})
}

// Dispatch routes one validated inbound envelope to its handler.
// Malformed data degrades to a no-op; nothing here surfaces an error to the
// sender.
func (s *Session) Dispatch(env v1.Envelope) {
	s.metrics.InboundEvent(env.Event)

	switch env.Event {
	case v1.EventAddUser:
		name, err := env.DataString()
		if err != nil {
			s.log.Debug("session.event.bad_data", "session_id", s.client.SessionID, "event", env.Event, "err", err)
			return
		}
		s.HandleAddUser(name)

	case v1.EventNewMessage:
		text, err := env.DataString()
		if err != nil {
			s.log.Debug("session.event.bad_data", "session_id", s.client.SessionID, "event", env.Event, "err", err)
			return
		}
		s.HandleNewMessage(text)

	case v1.EventTyping:
		s.HandleTyping()

	case v1.EventStopTyping:
		s.HandleStopTyping()
	}
}

// mustEnvelope builds an outbound envelope. The payload types in the contract
// package always marshal; a failure here would be a programming error, so the
// envelope is emitted with empty data rather than panicking mid-fanout.
func mustEnvelope(event string, payload any) v1.Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		return v1.Envelope{Event: event}
	}
	return v1.Envelope{Event: event, Data: b}
}
