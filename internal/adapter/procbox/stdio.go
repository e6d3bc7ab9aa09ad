package procbox

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
)

// maxEventLine bounds a single worker event line (1 MiB). Output larger than
// this must be chunked by the worker.
const maxEventLine = 1 << 20

// StdioTransport speaks newline-delimited JSON with a sandbox worker
// subprocess: commands on its stdin, events on its stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan sandboxdomain.Event

	mu     sync.Mutex
	closed bool
}

// StartWorker spawns the worker subprocess and begins reading its events.
func StartWorker(command string, args ...string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...) //nolint:gosec // G204: worker command comes from operator config
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker start: %w", err)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan sandboxdomain.Event, 256),
	}

	go t.readLoop(stdout)

	slog.Info("sandbox worker spawned", "command", command, "pid", cmd.Process.Pid)
	return t, nil
}

// Send writes the command as one JSON line to the worker's stdin.
func (t *StdioTransport) Send(cmd sandboxdomain.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport closed")
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Events returns the worker event channel. Closed when the worker exits.
func (t *StdioTransport) Events() <-chan sandboxdomain.Event {
	return t.events
}

// Close closes stdin (signalling the worker to exit) and reaps the process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()
	if err := t.cmd.Wait(); err != nil {
		return fmt.Errorf("worker wait: %w", err)
	}
	return nil
}

func (t *StdioTransport) readLoop(stdout io.Reader) {
	defer close(t.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)

	for scanner.Scan() {
		ev, err := sandboxdomain.DecodeEvent(scanner.Bytes())
		if err != nil {
			slog.Warn("undecodable sandbox event line", "error", err)
			continue
		}
		t.events <- ev
	}

	if err := scanner.Err(); err != nil {
		slog.Error("sandbox worker read failed", "error", err)
	}
}
