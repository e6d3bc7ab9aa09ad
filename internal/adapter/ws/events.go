package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/eventbus"
	"github.com/Strob0t/SandForge/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// Event type constants for WebSocket messages.
const (
	EventTurnStart     = "turn.start"
	EventTurnEnd       = "turn.end"
	EventLlmDelta      = "llm.delta"
	EventLlmComplete   = "llm.complete"
	EventToolExecStart = "tool.start"
	EventToolOutput    = "tool.output"
	EventToolExecEnd   = "tool.end"
	EventError         = "error"
)

// TurnEvent is broadcast at turn boundaries.
type TurnEvent struct {
	TurnID uint64 `json:"turn_id"`
}

// TextEvent carries model text, partial or final.
type TextEvent struct {
	Text string `json:"text"`
}

// ToolStartEvent is broadcast when a tool call begins executing.
type ToolStartEvent struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// ToolOutputEvent carries a streaming output chunk from a running tool.
type ToolOutputEvent struct {
	CallID string `json:"call_id"`
	Chunk  string `json:"chunk"`
}

// ToolEndEvent is broadcast when a tool call finishes.
type ToolEndEvent struct {
	CallID  string `json:"call_id"`
	Result  string `json:"result"`
	Success bool   `json:"success"`
}

// ErrorEvent reports a turn-level failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

// BroadcastEvent marshals a typed payload and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// BroadcastAgentEvent translates a domain event into its wire message and
// hands it to the given sink.
func BroadcastAgentEvent(ctx context.Context, sink broadcast.Broadcaster, ev event.AgentEvent) {
	switch e := ev.(type) {
	case event.TurnStart:
		sink.BroadcastEvent(ctx, EventTurnStart, TurnEvent{TurnID: e.TurnID})
	case event.TurnEnd:
		sink.BroadcastEvent(ctx, EventTurnEnd, TurnEvent{TurnID: e.TurnID})
	case event.LlmDelta:
		sink.BroadcastEvent(ctx, EventLlmDelta, TextEvent{Text: e.Token})
	case event.LlmComplete:
		sink.BroadcastEvent(ctx, EventLlmComplete, TextEvent{Text: e.Text})
	case event.ToolExecStart:
		sink.BroadcastEvent(ctx, EventToolExecStart, ToolStartEvent{
			CallID:    e.CallID,
			ToolName:  e.ToolName,
			Arguments: e.Arguments,
		})
	case event.ToolOutput:
		sink.BroadcastEvent(ctx, EventToolOutput, ToolOutputEvent{CallID: e.CallID, Chunk: e.Chunk})
	case event.ToolExecEnd:
		sink.BroadcastEvent(ctx, EventToolExecEnd, ToolEndEvent{
			CallID:  e.CallID,
			Result:  e.Result,
			Success: e.Success,
		})
	case event.Error:
		sink.BroadcastEvent(ctx, EventError, ErrorEvent{Message: e.Message})
	}
}

// PumpBus drains the event bus on an interval and broadcasts every pending
// event in emission order to the sink. Blocks until ctx is done.
func PumpBus(ctx context.Context, bus *eventbus.Bus, sink broadcast.Broadcaster, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range bus.DrainAll() {
				BroadcastAgentEvent(ctx, sink, ev)
			}
		}
	}
}
