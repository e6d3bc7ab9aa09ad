// Package event defines the domain events emitted by the agent runtime.
//
// Events form a closed set: every variant implements the unexported marker
// method, so a switch over AgentEvent covers the whole set. Events are
// produced by the runtime and the sandbox adapters, buffered on the event
// bus, and consumed by draining. Events are never mutated after emission.
package event

// AgentEvent is the sealed interface over all runtime event variants.
type AgentEvent interface {
	isAgentEvent()
}

// TurnStart marks the beginning of a user turn.
type TurnStart struct {
	TurnID uint64
}

// LlmDelta carries a partial token or leading narration text from the model.
type LlmDelta struct {
	Token string
}

// LlmComplete carries the model's final text response for a turn.
type LlmComplete struct {
	Text string
}

// ToolExecStart marks the start of a tool call execution.
type ToolExecStart struct {
	CallID    string
	ToolName  string
	Arguments string
}

// ToolOutput carries a streaming output chunk from a running tool.
type ToolOutput struct {
	CallID string
	Chunk  string
}

// ToolExecEnd marks the completion of a tool call, successful or not.
type ToolExecEnd struct {
	CallID  string
	Result  string
	Success bool
}

// TurnEnd marks the end of a user turn. Within a turn all other events fall
// strictly between TurnStart and TurnEnd.
type TurnEnd struct {
	TurnID uint64
}

// Error reports a turn-level failure. Every failure path emits exactly one
// Error before TurnEnd.
type Error struct {
	Message string
}

func (TurnStart) isAgentEvent()     {}
func (LlmDelta) isAgentEvent()      {}
func (LlmComplete) isAgentEvent()   {}
func (ToolExecStart) isAgentEvent() {}
func (ToolOutput) isAgentEvent()    {}
func (ToolExecEnd) isAgentEvent()   {}
func (TurnEnd) isAgentEvent()       {}
func (Error) isAgentEvent()         {}
