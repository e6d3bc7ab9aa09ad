// Package model defines the model provider port (interface).
package model

import (
	"context"

	"github.com/Strob0t/SandForge/internal/domain/message"
	"github.com/Strob0t/SandForge/internal/domain/tool"
)

// ChatRequest is a completion request built from the full conversation
// history, the static tool catalogue and model parameters.
type ChatRequest struct {
	Messages    []message.Message
	Tools       []tool.Definition
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is a complete (non-streaming) model response.
type ChatResponse struct {
	Message message.Message
	Usage   *TokenUsage
}

// TokenUsage reports token accounting for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamEvent is one element of a streaming completion. The stream terminates
// with a Done or Error element and is not restartable.
type StreamEvent struct {
	Kind           StreamKind
	Delta          string
	ToolCallIndex  int
	ToolCallID     string
	ToolCallName   string
	ArgumentsDelta string
	Err            string
}

// StreamKind discriminates StreamEvent variants.
type StreamKind int

// Streaming event kinds.
const (
	StreamDelta StreamKind = iota
	StreamToolCallDelta
	StreamDone
	StreamError
)

// Port is the capability port for a chat model provider.
type Port interface {
	// ChatCompletion performs a non-streaming completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// StreamChat performs a streaming completion. The returned channel is
	// closed after a Done or Error event has been sent.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)

	// ListModels returns the model names available from this provider.
	ListModels(ctx context.Context) ([]string, error)
}
