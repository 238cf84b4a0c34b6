package realtime

import (
	"testing"
	"time"
)

func TestFirehoseHubBroadcast(t *testing.T) {
	hub := NewFirehoseHub(4)

	id, ch := hub.Register()
	defer hub.Unregister(id)

	hub.Broadcast(DocumentEvent{ID: "m1", DocType: "message", Text: "hello"})

	select {
	case ev := <-ch:
		if ev.Type != "document" {
			t.Errorf("Expected document event, got %q", ev.Type)
		}
		if ev.Document.ID != "m1" {
			t.Errorf("Expected document m1, got %q", ev.Document.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestFirehoseHubDropsForSlowListener(t *testing.T) {
	hub := NewFirehoseHub(1)

	id, ch := hub.Register()
	defer hub.Unregister(id)

	// Buffer size 1: the second event must be dropped, not block.
	hub.Broadcast(DocumentEvent{ID: "m1", DocType: "message"})
	hub.Broadcast(DocumentEvent{ID: "m2", DocType: "message"})

	ev := <-ch
	if ev.Document.ID != "m1" {
		t.Errorf("Expected first event to survive, got %q", ev.Document.ID)
	}
	select {
	case ev := <-ch:
		t.Errorf("Expected second event to be dropped, got %q", ev.Document.ID)
	default:
	}
}

func TestFirehoseHubUnregister(t *testing.T) {
	hub := NewFirehoseHub(0)

	id, ch := hub.Register()
	if hub.Size() != 1 {
		t.Fatalf("Expected 1 listener, got %d", hub.Size())
	}

	hub.Unregister(id)
	hub.Unregister(id) // idempotent

	if hub.Size() != 0 {
		t.Errorf("Expected 0 listeners, got %d", hub.Size())
	}
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after unregister")
	}
}

func TestFirehoseHubIgnoresUnknownTypes(t *testing.T) {
	hub := NewFirehoseHub(2)
	id, ch := hub.Register()
	defer hub.Unregister(id)

	hub.Broadcast("not an event")

	select {
	case ev := <-ch:
		t.Errorf("Expected nothing, got %+v", ev)
	default:
	}
}
