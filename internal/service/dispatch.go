package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/SandForge/internal/domain/event"
	"github.com/Strob0t/SandForge/internal/domain/message"
	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/eventbus"
	"github.com/Strob0t/SandForge/internal/port/filesystem"
	"github.com/Strob0t/SandForge/internal/port/sandbox"
)

// Tool names form a closed set; the switch in Execute covers every entry,
// with unknown names arriving from the model handled explicitly.
const (
	toolBash      = "bash"
	toolReadFile  = "read_file"
	toolWriteFile = "write_file"
	toolListDir   = "list_dir"
)

// Dispatcher routes validated tool calls to the capability ports. Failures
// never escape as errors: every outcome is a Result whose output the model
// can read and react to.
type Dispatcher struct {
	shell sandbox.Port
	fs    filesystem.FS
	bus   *eventbus.Bus
	log   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given ports.
func NewDispatcher(shell sandbox.Port, fs filesystem.FS, bus *eventbus.Bus, log *slog.Logger) *Dispatcher {
	return &Dispatcher{shell: shell, fs: fs, bus: bus, log: log}
}

// Execute runs a single tool call. It always emits a ToolExecStart before
// touching a port and a matching ToolExecEnd after, even on failure, so
// observers see a complete start/end pair per call id.
func (d *Dispatcher) Execute(ctx context.Context, tc message.ToolCallRequest) tool.Result {
	d.bus.Emit(event.ToolExecStart{
		CallID:    tc.ID,
		ToolName:  tc.Name,
		Arguments: tc.Arguments,
	})

	result := d.run(ctx, tc)

	d.bus.Emit(event.ToolExecEnd{
		CallID:  result.CallID,
		Result:  result.Output,
		Success: result.Success,
	})
	d.log.Debug("tool executed",
		"tool", tc.Name,
		"call_id", tc.ID,
		"success", result.Success)
	return result
}

func (d *Dispatcher) run(ctx context.Context, tc message.ToolCallRequest) tool.Result {
	args, err := parseToolArgs(tc.Arguments)
	if err != nil {
		return tool.Result{
			CallID:  tc.ID,
			Output:  fmt.Sprintf("Failed to parse arguments: %v", err),
			Success: false,
		}
	}

	switch tc.Name {
	case toolBash:
		return d.runBash(ctx, tc.ID, args)
	case toolReadFile:
		return d.runReadFile(ctx, tc.ID, args)
	case toolWriteFile:
		return d.runWriteFile(ctx, tc.ID, args)
	case toolListDir:
		return d.runListDir(ctx, tc.ID, args)
	default:
		return tool.Result{
			CallID:  tc.ID,
			Output:  fmt.Sprintf("Unknown tool: %s", tc.Name),
			Success: false,
		}
	}
}

// runBash executes the command over the streaming sandbox path, republishing
// each output chunk as a ToolOutput event while it accumulates the final
// result for the model.
func (d *Dispatcher) runBash(ctx context.Context, callID string, args toolArgs) tool.Result {
	cmd := args.str("command")
	timeout := args.uintOr("timeout_ms", 0)

	stream, _, err := d.shell.ExecuteStreaming(ctx, cmd, timeout)
	if err != nil {
		return tool.Result{CallID: callID, Output: fmt.Sprintf("Shell error: %v", err), Success: false}
	}

	var exec tool.ExecResult
	var stdout, stderr strings.Builder
	for ev := range stream {
		switch ev.Kind {
		case sandboxdomain.StreamStdout:
			stdout.WriteString(ev.Data)
			d.bus.Emit(event.ToolOutput{CallID: callID, Chunk: ev.Data})
		case sandboxdomain.StreamStderr:
			stderr.WriteString(ev.Data)
			d.bus.Emit(event.ToolOutput{CallID: callID, Chunk: ev.Data})
		case sandboxdomain.StreamExit:
			exec.ExitCode = ev.Code
		case sandboxdomain.StreamError:
			stderr.WriteString(ev.Message)
			exec.ExitCode = 1
		}
	}
	exec.Stdout = stdout.String()
	exec.Stderr = stderr.String()

	return tool.Result{
		CallID:  callID,
		Output:  formatExecResult(&exec),
		Success: exec.ExitCode == 0,
	}
}

// formatExecResult renders a sandbox execution for the model: stdout, then a
// labeled stderr segment when present, then the exit code trailer.
func formatExecResult(exec *tool.ExecResult) string {
	var out strings.Builder
	out.WriteString(exec.Stdout)
	if exec.Stderr != "" {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("STDERR: ")
		out.WriteString(exec.Stderr)
	}
	fmt.Fprintf(&out, "\n[exit code: %d]", exec.ExitCode)
	return out.String()
}

func (d *Dispatcher) runReadFile(ctx context.Context, callID string, args toolArgs) tool.Result {
	path := args.str("path")
	data, err := d.fs.ReadFile(ctx, path)
	if err != nil {
		return tool.Result{CallID: callID, Output: fmt.Sprintf("Read error: %v", err), Success: false}
	}
	return tool.Result{CallID: callID, Output: string(data), Success: true}
}

func (d *Dispatcher) runWriteFile(ctx context.Context, callID string, args toolArgs) tool.Result {
	path := args.str("path")
	content := args.str("content")
	if err := d.fs.WriteFile(ctx, path, []byte(content)); err != nil {
		return tool.Result{CallID: callID, Output: fmt.Sprintf("Write error: %v", err), Success: false}
	}
	return tool.Result{
		CallID:  callID,
		Output:  fmt.Sprintf("Written %d bytes to %s", len(content), path),
		Success: true,
	}
}

func (d *Dispatcher) runListDir(ctx context.Context, callID string, args toolArgs) tool.Result {
	path := args.str("path")
	if path == "" {
		path = "/"
	}
	entries, err := d.fs.ListDir(ctx, path)
	if err != nil {
		return tool.Result{CallID: callID, Output: fmt.Sprintf("List error: %v", err), Success: false}
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "- "
		if e.IsDir {
			kind = "d "
		}
		lines = append(lines, fmt.Sprintf("%s%8d  %s", kind, e.Size, e.Name))
	}
	return tool.Result{CallID: callID, Output: strings.Join(lines, "\n"), Success: true}
}
