package events

import (
	"strings"
	"testing"
)

func TestBroadcastFormatsSSE(t *testing.T) {
	b := NewBroker(nil)
	client := make(chan string, 1)
	b.Register(client)
	if b.ClientCount() != 1 {
		t.Fatalf("expected one client, got %d", b.ClientCount())
	}

	b.Broadcast("deployment_started", map[string]string{"project": "site"})
	msg := <-client
	if msg != "event: deployment_started\ndata: {\"project\":\"site\"}\n\n" {
		t.Fatalf("unexpected message %q", msg)
	}

	b.Unregister(client)
	if _, ok := <-client; ok {
		t.Fatalf("expected channel to be closed")
	}
	// A second unregister is a no-op.
	b.Unregister(client)
	if b.ClientCount() != 0 {
		t.Fatalf("expected no clients, got %d", b.ClientCount())
	}
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	b := NewBroker(nil)
	slow := make(chan string) // unbuffered, never read
	fast := make(chan string, 4)
	b.Register(slow)
	b.Register(fast)

	for i := 0; i < 3; i++ {
		b.Broadcast("deployment_finished", map[string]int{"n": i})
	}
	if len(fast) != 3 {
		t.Fatalf("expected fast client to receive 3 events, got %d", len(fast))
	}
	if first := <-fast; !strings.Contains(first, `"n":0`) {
		t.Fatalf("events out of order: %q", first)
	}
}

func TestBroadcastDropsUnmarshalableData(t *testing.T) {
	b := NewBroker(nil)
	client := make(chan string, 1)
	b.Register(client)
	b.Broadcast("bad", map[string]interface{}{"fn": func() {}})
	if len(client) != 0 {
		t.Fatalf("expected nothing to be sent")
	}
}
