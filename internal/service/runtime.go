package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/SandForge/internal/config"
	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/domain/message"
	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/eventbus"
	"github.com/Strob0t/SandForge/internal/port/model"
)

// maxIterations caps the think/act/observe loop per turn. Hitting the cap is
// a safeguard outcome, not a caller failure.
const maxIterations = 20

// ErrTurnInFlight is returned when RunTurn is called while a turn is running.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// AgentState is the runtime status, mutated only inside RunTurn.
type AgentState interface {
	isAgentState()
}

// StateIdle means no turn is running.
type StateIdle struct{}

// StateThinking means a model call is in flight.
type StateThinking struct{}

// StateExecutingTool means a tool call is being dispatched.
type StateExecutingTool struct {
	Name   string
	CallID string
}

// StateError holds the message of the last turn-level failure.
type StateError struct {
	Message string
}

func (StateIdle) isAgentState()          {}
func (StateThinking) isAgentState()      {}
func (StateExecutingTool) isAgentState() {}
func (StateError) isAgentState()         {}

// AgentRuntime owns the conversation history and drives the think/act/observe
// cycle. Turns are serialized: a second RunTurn while one is in flight is
// rejected with ErrTurnInFlight.
type AgentRuntime struct {
	cfg        config.Agent
	bus        *eventbus.Bus
	registry   *ToolRegistry
	dispatcher *Dispatcher
	llm        model.Port
	log        *slog.Logger

	mu          sync.Mutex
	running     bool
	messages    []message.Message
	state       AgentState
	turnCounter uint64
}

// NewAgentRuntime creates a runtime with the system prompt as message zero.
func NewAgentRuntime(cfg config.Agent, llm model.Port, dispatcher *Dispatcher, bus *eventbus.Bus, log *slog.Logger) *AgentRuntime {
	return &AgentRuntime{
		cfg:        cfg,
		bus:        bus,
		registry:   NewToolRegistry(),
		dispatcher: dispatcher,
		llm:        llm,
		log:        log,
		messages:   []message.Message{message.System(cfg.SystemPrompt)},
		state:      StateIdle{},
	}
}

// State returns the current runtime status.
func (r *AgentRuntime) State() AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Messages returns a copy of the conversation history.
func (r *AgentRuntime) Messages() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message(nil), r.messages...)
}

// Definitions exposes the tool catalogue.
func (r *AgentRuntime) Definitions() []tool.Definition {
	return r.registry.Definitions()
}

// Reset truncates the conversation to the system prompt and returns the
// runtime to idle.
func (r *AgentRuntime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = r.messages[:1]
	r.state = StateIdle{}
	r.turnCounter = 0
}

// Restore replaces the conversation history, for resuming a persisted
// session. An empty history restores just the system prompt.
func (r *AgentRuntime) Restore(msgs []message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(msgs) == 0 || msgs[0].Role != message.RoleSystem {
		restored := []message.Message{message.System(r.cfg.SystemPrompt)}
		r.messages = append(restored, msgs...)
		return
	}
	r.messages = append([]message.Message(nil), msgs...)
}

// RunTurn executes one full user turn: append the user message, then loop
// think/act/observe until the model answers with plain text or the iteration
// cap is reached. Exactly one TurnStart and one TurnEnd are emitted per call,
// with every other event for the turn strictly between them.
func (r *AgentRuntime) RunTurn(ctx context.Context, userInput string) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrTurnInFlight
	}
	r.running = true
	r.turnCounter++
	turnID := r.turnCounter
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, span := otel.Tracer("sandforge/runtime").Start(ctx, "agent.turn",
		trace.WithAttributes(attribute.Int64("turn.id", int64(turnID))))
	defer span.End()

	r.bus.Emit(event.TurnStart{TurnID: turnID})
	r.append(message.User(userInput))

	for range maxIterations {
		r.setState(StateThinking{})

		resp, err := r.llm.ChatCompletion(ctx, model.ChatRequest{
			Messages:    r.Messages(),
			Tools:       r.registry.Definitions(),
			Model:       r.cfg.LLM.Model,
			MaxTokens:   r.cfg.LLM.MaxTokens,
			Temperature: r.cfg.LLM.Temperature,
		})
		if err != nil {
			r.setState(StateError{Message: err.Error()})
			r.bus.Emit(event.Error{Message: err.Error()})
			r.bus.Emit(event.TurnEnd{TurnID: turnID})
			return fmt.Errorf("model call: %w", err)
		}

		assistant := resp.Message

		if len(assistant.ToolCalls) == 0 {
			r.append(assistant)
			r.bus.Emit(event.LlmComplete{Text: assistant.Content.Text})
			r.setState(StateIdle{})
			r.bus.Emit(event.TurnEnd{TurnID: turnID})
			return nil
		}

		// Leading narration accompanying tool calls is best-effort.
		if assistant.Content.Text != "" {
			r.bus.Emit(event.LlmDelta{Token: assistant.Content.Text})
		}
		r.append(assistant)

		// Tool calls run sequentially in request order so history append
		// order stays deterministic.
		for _, tc := range assistant.ToolCalls {
			r.setState(StateExecutingTool{Name: tc.Name, CallID: tc.ID})
			result := r.executeTool(ctx, tc)
			r.append(message.ToolResult(tc.ID, result))
		}
	}

	r.log.Warn("turn hit iteration cap", "turn_id", turnID)
	r.setState(StateError{Message: "Max iterations reached"})
	r.bus.Emit(event.Error{Message: "Agent loop exceeded maximum iterations"})
	r.bus.Emit(event.TurnEnd{TurnID: turnID})
	return nil
}

func (r *AgentRuntime) executeTool(ctx context.Context, tc message.ToolCallRequest) string {
	ctx, span := otel.Tracer("sandforge/runtime").Start(ctx, "agent.tool",
		trace.WithAttributes(
			attribute.String("tool.name", tc.Name),
			attribute.String("tool.call_id", tc.ID),
		))
	defer span.End()

	result := r.dispatcher.Execute(ctx, tc)
	span.SetAttributes(attribute.Bool("tool.success", result.Success))
	return result.Output
}

func (r *AgentRuntime) append(m message.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *AgentRuntime) setState(s AgentState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
