package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	v1 "palaver/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

func startWSTestServer(t *testing.T, gw *WSGateway) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	return httptest.NewServer(mux)
}

func dialWS(t *testing.T, baseHTTPURL string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
	})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func writeEnvelopeWS(t *testing.T, conn *websocket.Conn, env v1.Envelope) {
	t.Helper()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func writeInbound(t *testing.T, conn *websocket.Conn, event, data string) {
	t.Helper()
	var raw json.RawMessage
	if data != "" {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		raw = b
	}
	writeEnvelopeWS(t, conn, v1.Envelope{Event: event, Data: raw})
}

func readUntilEvent(t *testing.T, conn *websocket.Conn, event string, maxReads int) v1.Envelope {
	t.Helper()
	if maxReads <= 0 {
		maxReads = 1
	}
	for i := 0; i < maxReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("conn.Read: %v", err)
		}
		var env v1.Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("did not receive event %q", event)
	return v1.Envelope{}
}

func decodePayload[T any](t *testing.T, env v1.Envelope) T {
	t.Helper()
	var p T
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode %q payload: %v", env.Event, err)
	}
	return p
}

func newTestGateway(t *testing.T) *WSGateway {
	t.Helper()
	t.Setenv("PALAVER_WS_ORIGIN_REQUIRED", "false")
	log := testLogger()
	return NewWSGateway(log, NewHub(log, nil), nil)
}

func TestWSGateway_JoinChatAndLeaveFlow(t *testing.T) {
	gw := newTestGateway(t)
	ts := startWSTestServer(t, gw)
	defer ts.Close()

	connA := dialWS(t, ts.URL)
	connB := dialWS(t, ts.URL)

	writeInbound(t, connA, v1.EventAddUser, "alice")
	loginA := decodePayload[v1.LoginPayload](t, readUntilEvent(t, connA, v1.EventLogin, 4))
	if loginA.NumUsers != 1 {
		t.Fatalf("expected numUsers=1 for alice, got %d", loginA.NumUsers)
	}

	writeInbound(t, connB, v1.EventAddUser, "bob")
	loginB := decodePayload[v1.LoginPayload](t, readUntilEvent(t, connB, v1.EventLogin, 4))
	if loginB.NumUsers != 2 {
		t.Fatalf("expected numUsers=2 for bob, got %d", loginB.NumUsers)
	}

	joined := decodePayload[v1.UserEventPayload](t, readUntilEvent(t, connA, v1.EventUserJoined, 4))
	if joined.Username != "bob" || joined.NumUsers != 2 {
		t.Fatalf("expected user joined {2, bob}, got %+v", joined)
	}

	writeInbound(t, connA, v1.EventNewMessage, "hi")
	msg := decodePayload[v1.MessagePayload](t, readUntilEvent(t, connB, v1.EventNewMessage, 4))
	if msg.Username != "alice" || msg.Message != "hi" {
		t.Fatalf("expected new message {alice, hi}, got %+v", msg)
	}

	writeInbound(t, connA, v1.EventTyping, "")
	typing := decodePayload[v1.TypingPayload](t, readUntilEvent(t, connB, v1.EventTyping, 4))
	if typing.Username != "alice" {
		t.Fatalf("expected typing from alice, got %+v", typing)
	}

	_ = connA.Close(websocket.StatusNormalClosure, "bye")

	left := decodePayload[v1.UserEventPayload](t, readUntilEvent(t, connB, v1.EventUserLeft, 4))
	if left.Username != "alice" || left.NumUsers != 1 {
		t.Fatalf("expected user left {1, alice}, got %+v", left)
	}
}

func TestWSGateway_MalformedFramesAreIgnored(t *testing.T) {
	gw := newTestGateway(t)
	ts := startWSTestServer(t, gw)
	defer ts.Close()

	conn := dialWS(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Invalid JSON, unknown event, wrong data shape: none of these may
	// terminate the connection or produce a reply.
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
	writeEnvelopeWS(t, conn, v1.Envelope{Event: "shout"})
	writeEnvelopeWS(t, conn, v1.Envelope{Event: v1.EventAddUser, Data: json.RawMessage(`{"name":"alice"}`)})

	// Connection must still be usable.
	writeInbound(t, conn, v1.EventAddUser, "alice")
	login := decodePayload[v1.LoginPayload](t, readUntilEvent(t, conn, v1.EventLogin, 4))
	if login.NumUsers != 1 {
		t.Fatalf("expected numUsers=1 after recovery, got %d", login.NumUsers)
	}
}

func TestWSGateway_DuplicateJoinOverWire_SingleAnnouncement(t *testing.T) {
	gw := newTestGateway(t)
	ts := startWSTestServer(t, gw)
	defer ts.Close()

	connA := dialWS(t, ts.URL)
	connB := dialWS(t, ts.URL)

	// B registers first so its membership is established before A's events.
	writeInbound(t, connB, v1.EventAddUser, "bob")
	readUntilEvent(t, connB, v1.EventLogin, 4)

	writeInbound(t, connA, v1.EventAddUser, "alice")
	readUntilEvent(t, connA, v1.EventLogin, 4)

	writeInbound(t, connA, v1.EventAddUser, "alice")
	writeInbound(t, connA, v1.EventNewMessage, "after dup join")

	// B must see exactly one user joined before the message arrives.
	first := readUntilEvent(t, connB, v1.EventUserJoined, 4)
	joined := decodePayload[v1.UserEventPayload](t, first)
	if joined.Username != "alice" || joined.NumUsers != 2 {
		t.Fatalf("expected user joined {2, alice}, got %+v", joined)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_, b, err := connB.Read(ctx)
	cancel()
	if err != nil {
		t.Fatalf("conn.Read: %v", err)
	}
	var env v1.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != v1.EventNewMessage {
		t.Fatalf("expected new message right after single join, got %q", env.Event)
	}
}

func TestWSGateway_OriginPolicy(t *testing.T) {
	t.Setenv("PALAVER_WS_ORIGIN_REQUIRED", "true")
	t.Setenv("PALAVER_WS_ALLOWED_ORIGINS", "http://example.com")

	log := testLogger()
	gw := NewWSGateway(log, NewHub(log, nil), nil)
	ts := startWSTestServer(t, gw)
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := http.Header{}
	h.Set("Origin", "http://evil.test")

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		t.Fatalf("expected dial to be rejected for disallowed origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
