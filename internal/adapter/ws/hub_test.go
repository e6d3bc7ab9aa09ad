package ws

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/eventbus"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON. Should log and carry on, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

// recordingSink captures broadcast event types instead of writing to sockets.
type recordingSink struct {
	types []string
}

func (r *recordingSink) BroadcastEvent(_ context.Context, eventType string, _ any) {
	r.types = append(r.types, eventType)
}

func (r *recordingSink) ConnectionCount() int { return 0 }

func TestBroadcastAgentEventAllVariants(t *testing.T) {
	sink := &recordingSink{}
	ctx := context.Background()

	// Every variant must map to exactly one wire message.
	for _, ev := range []event.AgentEvent{
		event.TurnStart{TurnID: 1},
		event.LlmDelta{Token: "t"},
		event.LlmComplete{Text: "done"},
		event.ToolExecStart{CallID: "c", ToolName: "bash", Arguments: "{}"},
		event.ToolOutput{CallID: "c", Chunk: "x"},
		event.ToolExecEnd{CallID: "c", Result: "ok", Success: true},
		event.Error{Message: "boom"},
		event.TurnEnd{TurnID: 1},
	} {
		BroadcastAgentEvent(ctx, sink, ev)
	}

	want := []string{
		EventTurnStart, EventLlmDelta, EventLlmComplete, EventToolExecStart,
		EventToolOutput, EventToolExecEnd, EventError, EventTurnEnd,
	}
	if len(sink.types) != len(want) {
		t.Fatalf("expected %d wire messages, got %v", len(want), sink.types)
	}
	for i, typ := range want {
		if sink.types[i] != typ {
			t.Fatalf("message %d type = %q, want %q", i, sink.types[i], typ)
		}
	}
}

func TestHubDropNonexistent(t *testing.T) {
	hub := NewHub()

	// Dropping a connection that was never added should not panic or close.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.drop(c, websocket.StatusNormalClosure)
}

func TestPumpBusStopsOnContextCancel(t *testing.T) {
	sink := &recordingSink{}
	bus := eventbus.New()
	bus.Emit(event.TurnStart{TurnID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		PumpBus(ctx, bus, sink, time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for bus.HasPending() {
		select {
		case <-deadline:
			t.Fatal("pump never drained the bus")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on cancel")
	}
}
