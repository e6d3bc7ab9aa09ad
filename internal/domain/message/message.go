// Package message defines the conversation history types exchanged with
// chat model providers.
package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role       Role              `json:"role"`
	Content    Content           `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
}

// ToolCallRequest is a model-issued request to invoke a tool. Arguments is
// the raw JSON argument object as emitted by the provider.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Content is message text. Providers send it either as a plain string or as
// a list of typed parts; both forms decode to the concatenated text and
// encode back as a plain string.
type Content struct {
	Text string
}

// MarshalJSON encodes the content as a plain JSON string.
func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, null, or an array of {type,text} parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		c.Text = ""
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("unmarshal content: %w", err)
	}
	c.Text = ""
	for _, p := range parts {
		if p.Type == "text" || p.Type == "" {
			c.Text += p.Text
		}
	}
	return nil
}

// System returns a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Content: Content{Text: text}}
}

// User returns a user message.
func User(text string) Message {
	return Message{Role: RoleUser, Content: Content{Text: text}}
}

// Assistant returns an assistant message, optionally carrying tool calls.
func Assistant(text string, toolCalls []ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Content: Content{Text: text}, ToolCalls: toolCalls}
}

// ToolResult returns a tool result message correlated to a tool call.
func ToolResult(callID, output string) Message {
	return Message{Role: RoleTool, Content: Content{Text: output}, ToolCallID: callID}
}
