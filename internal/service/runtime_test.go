package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Strob0t/SandForge/internal/adapter/memstore"
	"github.com/Strob0t/SandForge/internal/adapter/storagevfs"
	"github.com/Strob0t/SandForge/internal/config"
	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/domain/message"
	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/eventbus"
	"github.com/Strob0t/SandForge/internal/port/model"
	"github.com/Strob0t/SandForge/internal/service"
)

// scriptedModel returns canned responses in order.
type scriptedModel struct {
	responses []*model.ChatResponse
	err       error
	calls     int
}

func (m *scriptedModel) ChatCompletion(_ context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.calls >= len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) StreamChat(_ context.Context, _ model.ChatRequest) (<-chan model.StreamEvent, error) {
	ch := make(chan model.StreamEvent)
	close(ch)
	return ch, nil
}

func (m *scriptedModel) ListModels(_ context.Context) ([]string, error) {
	return nil, nil
}

// stubShell answers every execution with a fixed result.
type stubShell struct {
	result tool.ExecResult
}

func (s *stubShell) Execute(_ context.Context, _ string, _ uint64) (*tool.ExecResult, error) {
	r := s.result
	return &r, nil
}

func (s *stubShell) ExecuteStreaming(_ context.Context, _ string, _ uint64) (<-chan sandboxdomain.StreamEvent, tool.ExecHandle, error) {
	ch := make(chan sandboxdomain.StreamEvent, 3)
	if s.result.Stdout != "" {
		ch <- sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamStdout, Data: s.result.Stdout}
	}
	if s.result.Stderr != "" {
		ch <- sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamStderr, Data: s.result.Stderr}
	}
	ch <- sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamExit, Code: s.result.ExitCode}
	close(ch)
	return ch, 1, nil
}

func (s *stubShell) Cancel(_ context.Context, _ tool.ExecHandle) error { return nil }

func (s *stubShell) IsReady() bool { return true }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRuntime(llm model.Port, shell *stubShell) (*service.AgentRuntime, *eventbus.Bus) {
	bus := eventbus.New()
	fs := storagevfs.New(memstore.New())
	dispatcher := service.NewDispatcher(shell, fs, bus, discard())
	rt := service.NewAgentRuntime(config.DefaultAgent(), llm, dispatcher, bus, discard())
	return rt, bus
}

func textResponse(text string) *model.ChatResponse {
	return &model.ChatResponse{Message: message.Assistant(text, nil)}
}

func toolResponse(calls ...message.ToolCallRequest) *model.ChatResponse {
	return &model.ChatResponse{Message: message.Assistant("", calls)}
}

func TestRunTurnPlainText(t *testing.T) {
	llm := &scriptedModel{responses: []*model.ChatResponse{textResponse("Hello")}}
	rt, bus := newRuntime(llm, &stubShell{})

	if err := rt.RunTurn(context.Background(), "Hi"); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	msgs := rt.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != message.RoleSystem {
		t.Fatalf("message 0 role = %s", msgs[0].Role)
	}
	if msgs[1].Role != message.RoleUser || msgs[1].Content.Text != "Hi" {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
	if msgs[2].Role != message.RoleAssistant || msgs[2].Content.Text != "Hello" {
		t.Fatalf("unexpected assistant message: %+v", msgs[2])
	}

	events := bus.DrainAll()
	assertTurnBracketed(t, events, 1)
	if !hasEvent(events, func(e event.AgentEvent) bool {
		c, ok := e.(event.LlmComplete)
		return ok && c.Text == "Hello"
	}) {
		t.Fatal("missing LlmComplete event")
	}
}

func TestRunTurnWithToolCall(t *testing.T) {
	llm := &scriptedModel{responses: []*model.ChatResponse{
		toolResponse(message.ToolCallRequest{
			ID:        "call_1",
			Name:      "bash",
			Arguments: `{"command":"echo test"}`,
		}),
		textResponse("done"),
	}}
	shell := &stubShell{result: tool.ExecResult{Stdout: "test\n", ExitCode: 0}}
	rt, bus := newRuntime(llm, shell)

	if err := rt.RunTurn(context.Background(), "run echo"); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	msgs := rt.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	roles := []message.Role{
		message.RoleSystem, message.RoleUser, message.RoleAssistant,
		message.RoleTool, message.RoleAssistant,
	}
	for i, want := range roles {
		if msgs[i].Role != want {
			t.Fatalf("message %d role = %s, want %s", i, msgs[i].Role, want)
		}
	}
	if len(msgs[2].ToolCalls) != 1 {
		t.Fatalf("assistant message lost its tool calls: %+v", msgs[2])
	}
	if msgs[3].ToolCallID != "call_1" {
		t.Fatalf("tool message call id = %s", msgs[3].ToolCallID)
	}
	if !strings.Contains(msgs[3].Content.Text, "test") {
		t.Fatalf("tool result missing stdout: %q", msgs[3].Content.Text)
	}
	if !strings.Contains(msgs[3].Content.Text, "[exit code: 0]") {
		t.Fatalf("tool result missing exit trailer: %q", msgs[3].Content.Text)
	}

	events := bus.DrainAll()
	assertTurnBracketed(t, events, 1)
	var start, end bool
	for _, e := range events {
		switch ev := e.(type) {
		case event.ToolExecStart:
			if ev.CallID != "call_1" || ev.ToolName != "bash" {
				t.Fatalf("unexpected ToolExecStart: %+v", ev)
			}
			start = true
		case event.ToolExecEnd:
			if !ev.Success {
				t.Fatalf("expected tool success, got %+v", ev)
			}
			end = true
		}
	}
	if !start || !end {
		t.Fatal("tool events not paired")
	}
}

func TestRunTurnModelFailure(t *testing.T) {
	llm := &scriptedModel{err: errors.New("connection refused")}
	rt, bus := newRuntime(llm, &stubShell{})

	if err := rt.RunTurn(context.Background(), "Hi"); err == nil {
		t.Fatal("expected error when model is unreachable")
	}

	if _, ok := rt.State().(service.StateError); !ok {
		t.Fatalf("expected error state, got %T", rt.State())
	}

	events := bus.DrainAll()
	assertTurnBracketed(t, events, 1)
	errCount := 0
	for _, e := range events {
		if _, ok := e.(event.Error); ok {
			errCount++
		}
	}
	if errCount != 1 {
		t.Fatalf("expected exactly 1 Error event, got %d", errCount)
	}
}

func TestRunTurnIterationCeiling(t *testing.T) {
	// The model asks for a tool on every iteration and never answers.
	llm := &scriptedModel{responses: []*model.ChatResponse{
		toolResponse(message.ToolCallRequest{
			ID:        "loop",
			Name:      "bash",
			Arguments: `{"command":"true"}`,
		}),
	}}
	rt, bus := newRuntime(llm, &stubShell{})

	// The ceiling is a safeguard; the call itself still succeeds.
	if err := rt.RunTurn(context.Background(), "loop forever"); err != nil {
		t.Fatalf("RunTurn returned error at ceiling: %v", err)
	}

	st, ok := rt.State().(service.StateError)
	if !ok {
		t.Fatalf("expected error state, got %T", rt.State())
	}
	if st.Message != "Max iterations reached" {
		t.Fatalf("unexpected state message: %q", st.Message)
	}

	events := bus.DrainAll()
	assertTurnBracketed(t, events, 1)
	if !hasEvent(events, func(e event.AgentEvent) bool {
		er, ok := e.(event.Error)
		return ok && strings.Contains(er.Message, "maximum iterations")
	}) {
		t.Fatal("missing ceiling Error event")
	}
}

func TestRunTurnRejectsUnknownTool(t *testing.T) {
	llm := &scriptedModel{responses: []*model.ChatResponse{
		toolResponse(message.ToolCallRequest{
			ID:        "call_x",
			Name:      "teleport",
			Arguments: `{}`,
		}),
		textResponse("ok"),
	}}
	rt, _ := newRuntime(llm, &stubShell{})

	if err := rt.RunTurn(context.Background(), "go"); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	msgs := rt.Messages()
	if got := msgs[3].Content.Text; got != "Unknown tool: teleport" {
		t.Fatalf("unexpected tool result: %q", got)
	}
}

func TestRunTurnNotReentrant(t *testing.T) {
	block := make(chan struct{})
	llm := &blockingModel{block: block, entered: make(chan struct{})}
	rt, _ := newRuntime(llm, &stubShell{})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- rt.RunTurn(context.Background(), "first")
	}()
	<-started
	<-llm.entered

	if err := rt.RunTurn(context.Background(), "second"); !errors.Is(err, service.ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
}

// blockingModel parks inside the model call until released.
type blockingModel struct {
	block   chan struct{}
	entered chan struct{}
	once    bool
}

func (m *blockingModel) ChatCompletion(_ context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
	if !m.once {
		m.once = true
		close(m.entered)
		<-m.block
	}
	return textResponse("ok"), nil
}

func (m *blockingModel) StreamChat(_ context.Context, _ model.ChatRequest) (<-chan model.StreamEvent, error) {
	ch := make(chan model.StreamEvent)
	close(ch)
	return ch, nil
}

func (m *blockingModel) ListModels(_ context.Context) ([]string, error) { return nil, nil }

func TestResetKeepsSystemPrompt(t *testing.T) {
	llm := &scriptedModel{responses: []*model.ChatResponse{textResponse("Hello")}}
	rt, _ := newRuntime(llm, &stubShell{})

	if err := rt.RunTurn(context.Background(), "Hi"); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	rt.Reset()

	msgs := rt.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after reset, got %d", len(msgs))
	}
	if msgs[0].Role != message.RoleSystem {
		t.Fatalf("message 0 role after reset = %s", msgs[0].Role)
	}
	if _, ok := rt.State().(service.StateIdle); !ok {
		t.Fatalf("expected idle state after reset, got %T", rt.State())
	}
}

func TestRestoreHistory(t *testing.T) {
	llm := &scriptedModel{responses: []*model.ChatResponse{textResponse("again")}}
	rt, _ := newRuntime(llm, &stubShell{})

	rt.Restore([]message.Message{
		message.System("custom prompt"),
		message.User("earlier question"),
		message.Assistant("earlier answer", nil),
	})

	msgs := rt.Messages()
	if len(msgs) != 3 || msgs[0].Content.Text != "custom prompt" {
		t.Fatalf("restore lost history: %+v", msgs)
	}

	// A history without a leading system message gets one prepended.
	rt.Restore([]message.Message{message.User("bare")})
	msgs = rt.Messages()
	if len(msgs) != 2 || msgs[0].Role != message.RoleSystem {
		t.Fatalf("expected prepended system prompt: %+v", msgs)
	}
}

// assertTurnBracketed checks exactly one TurnStart and one TurnEnd, first
// and last, with every other event strictly between them.
func assertTurnBracketed(t *testing.T, events []event.AgentEvent, turnID uint64) {
	t.Helper()
	if len(events) < 2 {
		t.Fatalf("expected at least TurnStart and TurnEnd, got %d events", len(events))
	}
	start, ok := events[0].(event.TurnStart)
	if !ok || start.TurnID != turnID {
		t.Fatalf("first event is not TurnStart{%d}: %+v", turnID, events[0])
	}
	end, ok := events[len(events)-1].(event.TurnEnd)
	if !ok || end.TurnID != turnID {
		t.Fatalf("last event is not TurnEnd{%d}: %+v", turnID, events[len(events)-1])
	}
	for _, e := range events[1 : len(events)-1] {
		switch e.(type) {
		case event.TurnStart, event.TurnEnd:
			t.Fatalf("turn marker in the middle of the event sequence: %+v", e)
		}
	}
}

func hasEvent(events []event.AgentEvent, pred func(event.AgentEvent) bool) bool {
	for _, e := range events {
		if pred(e) {
			return true
		}
	}
	return false
}
