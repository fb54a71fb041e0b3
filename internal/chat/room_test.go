package chat

import (
	"testing"

	v1 "palaver/shared/contracts/chat/v1"
)

func TestRoom_EmitSelf_OnlyOriginator(t *testing.T) {
	t.Parallel()

	room := NewRoom(testLogger(), "chat", nil)
	a := NewClient("sess-a", 64)
	b := NewClient("sess-b", 64)
	room.Join(a)
	room.Join(b)

	room.EmitSelf("sess-a", v1.Envelope{Event: v1.EventLogin})

	if len(a.Send) != 1 {
		t.Fatalf("expected one envelope at originator, got %d", len(a.Send))
	}
	if len(b.Send) != 0 {
		t.Fatalf("self-emit leaked to another connection")
	}
}

func TestRoom_EmitOthers_ExcludesOriginator(t *testing.T) {
	t.Parallel()

	room := NewRoom(testLogger(), "chat", nil)
	a := NewClient("sess-a", 64)
	b := NewClient("sess-b", 64)
	c := NewClient("sess-c", 64)
	room.Join(a)
	room.Join(b)
	room.Join(c)

	room.EmitOthers("sess-a", v1.Envelope{Event: v1.EventNewMessage})

	if len(a.Send) != 0 {
		t.Fatalf("originator observed its own broadcast")
	}
	if len(b.Send) != 1 || len(c.Send) != 1 {
		t.Fatalf("expected delivery to every other member, got b=%d c=%d", len(b.Send), len(c.Send))
	}
}

func TestRoom_EmitOthers_UsesLiveMembership(t *testing.T) {
	t.Parallel()

	room := NewRoom(testLogger(), "chat", nil)
	a := NewClient("sess-a", 64)
	b := NewClient("sess-b", 64)
	room.Join(a)
	room.Join(b)

	room.EmitOthers("sess-a", v1.Envelope{Event: v1.EventTyping})
	room.Leave("sess-b")
	room.EmitOthers("sess-a", v1.Envelope{Event: v1.EventStopTyping})

	if len(b.Send) != 1 {
		t.Fatalf("departed member must not receive later broadcasts, got %d", len(b.Send))
	}
	if room.Len() != 1 {
		t.Fatalf("expected 1 live member, got %d", room.Len())
	}
}

func TestRoom_Deliver_SkipsShuttingDownClients(t *testing.T) {
	t.Parallel()

	room := NewRoom(testLogger(), "chat", nil)
	a := NewClient("sess-a", 64)
	b := NewClient("sess-b", 64)
	room.Join(a)
	room.Join(b)

	// Closed but not yet removed from membership: broadcast must skip it
	// without blocking or panicking.
	b.Close()
	room.EmitOthers("sess-a", v1.Envelope{Event: v1.EventNewMessage})

	if len(b.Send) != 0 {
		t.Fatalf("shutting-down client received a delivery")
	}
}

func TestRoom_Deliver_DropsOnFullQueue(t *testing.T) {
	t.Parallel()

	room := NewRoom(testLogger(), "chat", nil)
	a := NewClient("sess-a", 1)
	room.Join(a)

	// Second delivery must drop, not block.
	room.EmitSelf("sess-a", v1.Envelope{Event: v1.EventTyping})
	room.EmitSelf("sess-a", v1.Envelope{Event: v1.EventTyping})

	if len(a.Send) != 1 {
		t.Fatalf("expected queue to hold exactly one envelope, got %d", len(a.Send))
	}
}
