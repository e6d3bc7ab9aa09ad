package procbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/SandForge/internal/config"
	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/port/sandbox"
)

// NewPort builds a sandbox port from config. Construction never fails: when
// no transport can be established, callers get an Unavailable port that
// reports not-ready and returns labeled "not available" results.
func NewPort(cfg config.Sandbox, natsURL string) sandbox.Port {
	var (
		transport Transport
		err       error
	)
	switch cfg.Transport {
	case "nats":
		transport, err = ConnectNATS(natsURL, cfg.SubjectPrefix)
	default:
		transport, err = StartWorker(cfg.WorkerCommand)
	}
	if err != nil {
		slog.Warn("sandbox unavailable, using stub port", "transport", cfg.Transport, "error", err)
		return Unavailable{}
	}

	bridge, err := New(transport, cfg.OrphanTimeout)
	if err != nil {
		slog.Warn("sandbox bridge failed, using stub port", "error", err)
		_ = transport.Close()
		return Unavailable{}
	}

	if !awaitReady(bridge, cfg.ReadyTimeout) {
		slog.Warn("sandbox worker never reported ready, using stub port",
			"timeout", cfg.ReadyTimeout)
		_ = bridge.Close()
		return Unavailable{}
	}
	return bridge
}

// awaitReady polls for the Ready handshake until timeout elapses. A zero
// timeout skips the wait and hands the bridge back optimistically.
func awaitReady(b *Bridge, timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.IsReady() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return b.IsReady()
}

const unavailableMsg = "Sandbox not available in this environment"

// Unavailable is the degraded sandbox port used when no sandbox can be
// hosted. Every execution yields a clearly-labeled failure result.
type Unavailable struct{}

// Execute reports the sandbox as unavailable.
func (Unavailable) Execute(context.Context, string, uint64) (*tool.ExecResult, error) {
	return &tool.ExecResult{Stderr: unavailableMsg, ExitCode: errorExitCode}, nil
}

// ExecuteStreaming yields a single terminal error event.
func (Unavailable) ExecuteStreaming(context.Context, string, uint64) (<-chan sandboxdomain.StreamEvent, tool.ExecHandle, error) {
	ch := make(chan sandboxdomain.StreamEvent, 1)
	ch <- sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamError, Message: unavailableMsg}
	close(ch)
	return ch, 0, nil
}

// Cancel is a no-op.
func (Unavailable) Cancel(context.Context, tool.ExecHandle) error { return nil }

// IsReady always reports false.
func (Unavailable) IsReady() bool { return false }
