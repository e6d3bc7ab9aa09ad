package mcp_test

import (
	"context"
	"testing"
	"time"

	sfmcp "github.com/Strob0t/SandForge/internal/adapter/mcp"
	"github.com/Strob0t/SandForge/internal/adapter/memstore"
	"github.com/Strob0t/SandForge/internal/adapter/storagevfs"
	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
)

type echoShell struct{}

func (echoShell) Execute(_ context.Context, cmd string, _ uint64) (*tool.ExecResult, error) {
	return &tool.ExecResult{Stdout: cmd + "\n", ExitCode: 0}, nil
}

func (echoShell) ExecuteStreaming(_ context.Context, _ string, _ uint64) (<-chan sandboxdomain.StreamEvent, tool.ExecHandle, error) {
	ch := make(chan sandboxdomain.StreamEvent)
	close(ch)
	return ch, 1, nil
}

func (echoShell) Cancel(_ context.Context, _ tool.ExecHandle) error { return nil }

func (echoShell) IsReady() bool { return true }

func newTestServer() *sfmcp.Server {
	return sfmcp.NewServer(
		sfmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test-server", Version: "0.1.0"},
		sfmcp.ServerDeps{Shell: echoShell{}, FS: storagevfs.New(memstore.New())},
	)
}

func TestNewServer(t *testing.T) {
	s := newTestServer()
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestNewServerWithoutDeps(t *testing.T) {
	// Tools must register even with no ports wired; handlers report the
	// missing dependency at call time instead.
	s := sfmcp.NewServer(
		sfmcp.ServerConfig{Addr: ":0", Name: "bare", Version: "0.1.0"},
		sfmcp.ServerDeps{},
	)
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	s := newTestServer()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown before Start failed: %v", err)
	}
}
