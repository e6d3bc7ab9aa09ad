package eventbus_test

import (
	"testing"

	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/eventbus"
)

func TestBus_DrainPreservesEmissionOrder(t *testing.T) {
	bus := eventbus.New()
	bus.Emit(event.TurnStart{TurnID: 1})
	bus.Emit(event.LlmComplete{Text: "hi"})
	bus.Emit(event.TurnEnd{TurnID: 1})

	events := bus.DrainAll()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if _, ok := events[0].(event.TurnStart); !ok {
		t.Fatalf("expected TurnStart first, got %T", events[0])
	}
	if _, ok := events[1].(event.LlmComplete); !ok {
		t.Fatalf("expected LlmComplete second, got %T", events[1])
	}
	if _, ok := events[2].(event.TurnEnd); !ok {
		t.Fatalf("expected TurnEnd last, got %T", events[2])
	}
}

func TestBus_DrainEmpties(t *testing.T) {
	bus := eventbus.New()
	bus.Emit(event.Error{Message: "boom"})

	if !bus.HasPending() {
		t.Fatal("expected pending events before drain")
	}
	if got := bus.DrainAll(); len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if bus.HasPending() {
		t.Fatal("expected no pending events after drain")
	}
	if got := bus.DrainAll(); got != nil {
		t.Fatalf("expected nil from empty drain, got %v", got)
	}
}

func TestBus_EmitAfterDrain(t *testing.T) {
	bus := eventbus.New()
	bus.Emit(event.TurnStart{TurnID: 1})
	bus.DrainAll()

	bus.Emit(event.TurnStart{TurnID: 2})
	events := bus.DrainAll()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ts, ok := events[0].(event.TurnStart)
	if !ok || ts.TurnID != 2 {
		t.Fatalf("expected TurnStart{2}, got %#v", events[0])
	}
}
