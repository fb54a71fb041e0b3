// Package v1 defines the palaver chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Subprotocol is the WebSocket subprotocol negotiated for this contract.
const Subprotocol = "palaver.chat.v1"

// Inbound event names (wire-stable, client -> server).
const (
	// EventAddUser registers the connection's display name. Data: JSON string.
	EventAddUser = "add user"
	// EventNewMessage sends a chat message. Data: JSON string.
	EventNewMessage = "new message"
	// EventTyping signals the user started typing. No data.
	EventTyping = "typing"
	// EventStopTyping signals the user stopped typing. No data.
	EventStopTyping = "stop typing"
)

// Outbound event names (wire-stable, server -> client).
const (
	// EventLogin acknowledges a successful add user, sent only to the joining connection.
	EventLogin = "login"
	// EventUserJoined announces a new named user to every other connection.
	EventUserJoined = "user joined"
	// EventUserLeft announces a named user's disconnect to every other connection.
	EventUserLeft = "user left"
)

// Envelope is the canonical wire wrapper. The event name is the only
// discriminant: data payloads carry no type tag of their own.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// inboundEvents is the closed set of events a client may send.
var inboundEvents = map[string]struct{}{
	EventAddUser:    {},
	EventNewMessage: {},
	EventTyping:     {},
	EventStopTyping: {},
}

// ValidateInbound performs structural validation for a client-sent envelope.
func (e Envelope) ValidateInbound() error {
	if strings.TrimSpace(e.Event) == "" {
		return errors.New("missing field: event")
	}
	if _, ok := inboundEvents[e.Event]; !ok {
		return fmt.Errorf("unknown event: %q", e.Event)
	}
	switch e.Event {
	case EventAddUser, EventNewMessage:
		if len(e.Data) == 0 {
			return fmt.Errorf("event %q requires data", e.Event)
		}
	}
	return nil
}

// DataString extracts the bare JSON string carried by add user / new message data.
func (e Envelope) DataString() (string, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("data is not a string: %w", err)
	}
	return s, nil
}

// ---- Outbound payloads ----
//
// Field presence is per event kind: numUsers appears only on join/leave
// reports, message only on chat messages.

// LoginPayload is sent only to the connection that completed registration.
type LoginPayload struct {
	NumUsers int64 `json:"numUsers"`
}

// UserEventPayload reports a join or a leave to the rest of the namespace.
type UserEventPayload struct {
	NumUsers int64  `json:"numUsers"`
	Username string `json:"username"`
}

// MessagePayload carries a chat message to the rest of the namespace.
type MessagePayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// TypingPayload accompanies typing / stop typing broadcasts.
type TypingPayload struct {
	Username string `json:"username"`
}
