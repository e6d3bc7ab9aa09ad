// Package sandbox defines the command sandbox port (interface).
package sandbox

import (
	"context"

	domain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
)

// Port is the capability port for the out-of-process command sandbox.
//
// Implementations must be constructible even when the sandbox cannot be
// hosted: callers always get a usable port, degraded to IsReady()==false and
// clearly-labeled "not available" results.
type Port interface {
	// Execute runs a command and blocks until the sandbox reports an exit.
	// timeoutMs is an advisory hint forwarded to the sandbox; zero means none.
	Execute(ctx context.Context, cmd string, timeoutMs uint64) (*tool.ExecResult, error)

	// ExecuteStreaming runs a command and returns a finite event sequence
	// terminating on an exit or error element, plus a handle for cancellation.
	// timeoutMs is the same advisory hint Execute forwards.
	ExecuteStreaming(ctx context.Context, cmd string, timeoutMs uint64) (<-chan domain.StreamEvent, tool.ExecHandle, error)

	// Cancel requests best-effort cancellation of a running execution. It
	// returns once the cancel command is sent; the execution resolves only
	// when (and if) the sandbox acknowledges with an exit or error event.
	Cancel(ctx context.Context, handle tool.ExecHandle) error

	// IsReady reports whether the sandbox has completed its Init/Ready
	// lifecycle handshake.
	IsReady() bool
}
