package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.bashTool(),
		s.readFileTool(),
		s.writeFileTool(),
		s.listDirTool(),
	)
}

func (s *Server) bashTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("bash",
		mcplib.WithDescription("Execute a bash command in the sandbox shell environment"),
		mcplib.WithString("command",
			mcplib.Required(),
			mcplib.Description("The bash command to execute"),
		),
		mcplib.WithNumber("timeout_ms",
			mcplib.Description("Optional timeout in milliseconds"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleBash,
	}
}

func (s *Server) readFileTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("read_file",
		mcplib.WithDescription("Read the contents of a file from the virtual filesystem"),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Path to the file to read"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleReadFile,
	}
}

func (s *Server) writeFileTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("write_file",
		mcplib.WithDescription("Write content to a file in the virtual filesystem"),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Path to the file to write"),
		),
		mcplib.WithString("content",
			mcplib.Required(),
			mcplib.Description("Content to write to the file"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleWriteFile,
	}
}

func (s *Server) listDirTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_dir",
		mcplib.WithDescription("List files and directories at the given path"),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Directory path to list"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListDir,
	}
}

func (s *Server) handleBash(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Shell == nil {
		return mcplib.NewToolResultError("sandbox not configured"), nil
	}
	args := req.GetArguments()
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return mcplib.NewToolResultError("command is required"), nil
	}
	var timeout uint64
	if t, ok := args["timeout_ms"].(float64); ok && t > 0 {
		timeout = uint64(t)
	}

	exec, err := s.deps.Shell.Execute(ctx, command, timeout)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("sandbox execution failed", err), nil
	}

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
	return mcplib.NewToolResultText(out.String()), nil
}

func (s *Server) handleReadFile(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.FS == nil {
		return mcplib.NewToolResultError("filesystem not configured"), nil
	}
	path, ok := req.GetArguments()["path"].(string)
	if !ok || path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	data, err := s.deps.FS.ReadFile(ctx, path)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to read %s", path), err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleWriteFile(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.FS == nil {
		return mcplib.NewToolResultError("filesystem not configured"), nil
	}
	args := req.GetArguments()
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	content, _ := args["content"].(string)
	if err := s.deps.FS.WriteFile(ctx, path, []byte(content)); err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to write %s", path), err), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("Written %d bytes to %s", len(content), path)), nil
}

func (s *Server) handleListDir(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.FS == nil {
		return mcplib.NewToolResultError("filesystem not configured"), nil
	}
	path, ok := req.GetArguments()["path"].(string)
	if !ok || path == "" {
		path = "/"
	}
	entries, err := s.deps.FS.ListDir(ctx, path)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to list %s", path), err), nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "- "
		if e.IsDir {
			kind = "d "
		}
		lines = append(lines, fmt.Sprintf("%s%8d  %s", kind, e.Size, e.Name))
	}
	return mcplib.NewToolResultText(strings.Join(lines, "\n")), nil
}
