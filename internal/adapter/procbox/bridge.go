package procbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
	"github.com/Strob0t/SandForge/internal/domain/tool"
)

// errorExitCode is the conventional exit code used when the worker reports an
// error event instead of a real process exit.
const errorExitCode = 1

// pendingExec accumulates output for one in-flight execution. Exactly one of
// result (non-streaming) or stream (streaming) is set.
type pendingExec struct {
	stdout      strings.Builder
	stderr      strings.Builder
	result      chan *tool.ExecResult
	stream      chan sandboxdomain.StreamEvent
	cancelledAt time.Time

	// smu serializes stream sends with the close performed by the janitor;
	// a late worker event routed just before collection must become a no-op,
	// not a send on a closed channel.
	smu    sync.Mutex
	closed bool
}

// send pushes a streaming element unless the stream is already closed.
func (e *pendingExec) send(ev sandboxdomain.StreamEvent) {
	e.smu.Lock()
	defer e.smu.Unlock()
	if e.closed {
		return
	}
	e.stream <- ev
}

// closeStream emits the terminal element and closes the stream exactly once.
// bestEffort drops the terminal element when the buffer is full, for orphaned
// streams whose consumer may already be gone.
func (e *pendingExec) closeStream(final sandboxdomain.StreamEvent, bestEffort bool) {
	e.smu.Lock()
	defer e.smu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if bestEffort {
		select {
		case e.stream <- final:
		default:
		}
	} else {
		e.stream <- final
	}
	close(e.stream)
}

// Bridge implements the sandbox port over a Transport.
//
// Each execution gets a fresh correlation ID (monotonic, starting at 1, never
// reused within a session); the ID is the sole join key between a request and
// its asynchronous completion or streaming events. Events for unknown IDs are
// dropped silently; they belong to executions already resolved or cancelled.
type Bridge struct {
	transport Transport

	mu      sync.Mutex
	ready   bool
	nextID  uint64
	pending map[uint64]*pendingExec

	orphanTimeout time.Duration
	done          chan struct{}
}

// New creates a bridge over the given transport, sends the Init handshake and
// starts the event and janitor loops. The sandbox is not usable until the
// worker answers with Ready; IsReady reflects that.
//
// orphanTimeout bounds how long a cancelled execution may wait for its final
// Exit/Error event before its pending entry is garbage-collected.
func New(transport Transport, orphanTimeout time.Duration) (*Bridge, error) {
	b := &Bridge{
		transport:     transport,
		nextID:        1,
		pending:       make(map[uint64]*pendingExec),
		orphanTimeout: orphanTimeout,
		done:          make(chan struct{}),
	}

	if err := transport.Send(sandboxdomain.Init()); err != nil {
		return nil, fmt.Errorf("sandbox init: %w", err)
	}

	go b.eventLoop()
	go b.janitor()

	return b, nil
}

// Execute runs cmd and blocks until the sandbox reports an exit, the error
// event arrives, or ctx is cancelled. timeoutMs is forwarded as an advisory
// hint; the bridge does not enforce it itself.
func (b *Bridge) Execute(ctx context.Context, cmd string, timeoutMs uint64) (*tool.ExecResult, error) {
	id, entry := b.register(false)

	if err := b.transport.Send(sandboxdomain.Exec(id, cmd, timeoutMs)); err != nil {
		b.remove(id)
		return nil, fmt.Errorf("sandbox exec: %w", err)
	}

	select {
	case res := <-entry.result:
		return res, nil
	case <-ctx.Done():
		// Best-effort cancel; the entry stays pending until the worker
		// acknowledges or the janitor collects it.
		_ = b.transport.Send(sandboxdomain.Cancel(id))
		b.markCancelled(id)
		return nil, ctx.Err()
	}
}

// ExecuteStreaming runs cmd and returns a finite event sequence terminating
// on an exit or error element, plus the handle for cancellation. timeoutMs is
// forwarded as an advisory hint like in Execute.
func (b *Bridge) ExecuteStreaming(ctx context.Context, cmd string, timeoutMs uint64) (<-chan sandboxdomain.StreamEvent, tool.ExecHandle, error) {
	id, entry := b.register(true)

	if err := b.transport.Send(sandboxdomain.Exec(id, cmd, timeoutMs)); err != nil {
		b.remove(id)
		return nil, 0, fmt.Errorf("sandbox exec: %w", err)
	}

	_ = ctx // streaming lifetime is governed by the worker, not the caller's ctx
	return entry.stream, tool.ExecHandle(id), nil
}

// Cancel sends a Cancel command for the execution behind handle. It returns
// once the command is sent; the pending entry is removed only when the
// worker's Exit/Error arrives, or by the janitor after the orphan timeout.
func (b *Bridge) Cancel(_ context.Context, handle tool.ExecHandle) error {
	id := uint64(handle)
	if err := b.transport.Send(sandboxdomain.Cancel(id)); err != nil {
		return fmt.Errorf("sandbox cancel: %w", err)
	}
	b.markCancelled(id)
	return nil
}

// IsReady reports whether the Ready handshake event has been observed.
func (b *Bridge) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// WriteStdin feeds data to the stdin of a running execution.
func (b *Bridge) WriteStdin(handle tool.ExecHandle, data string) error {
	if err := b.transport.Send(sandboxdomain.WriteStdin(uint64(handle), data)); err != nil {
		return fmt.Errorf("sandbox stdin: %w", err)
	}
	return nil
}

// Close stops the loops and tears down the transport.
func (b *Bridge) Close() error {
	close(b.done)
	return b.transport.Close()
}

// register mints a correlation ID and records a pending entry for it.
func (b *Bridge) register(streaming bool) (uint64, *pendingExec) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	entry := &pendingExec{}
	if streaming {
		entry.stream = make(chan sandboxdomain.StreamEvent, 64)
	} else {
		entry.result = make(chan *tool.ExecResult, 1)
	}
	b.pending[id] = entry
	return id, entry
}

func (b *Bridge) remove(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) markCancelled(id uint64) {
	b.mu.Lock()
	if entry, ok := b.pending[id]; ok && entry.cancelledAt.IsZero() {
		entry.cancelledAt = time.Now()
	}
	b.mu.Unlock()
}

// eventLoop consumes worker events and routes them to pending entries by
// correlation ID.
func (b *Bridge) eventLoop() {
	for ev := range b.transport.Events() {
		select {
		case <-b.done:
			return
		default:
		}

		switch ev.Type {
		case sandboxdomain.EvtReady:
			b.mu.Lock()
			b.ready = true
			b.mu.Unlock()
			slog.Info("sandbox worker ready")

		case sandboxdomain.EvtStdout:
			b.appendOutput(ev.ID, ev.Data, false)

		case sandboxdomain.EvtStderr:
			b.appendOutput(ev.ID, ev.Data, true)

		case sandboxdomain.EvtExit:
			b.resolve(ev.ID, ev.Code, "")

		case sandboxdomain.EvtError:
			// Fold the worker error into stderr with a conventional
			// non-zero exit code.
			b.resolve(ev.ID, errorExitCode, ev.Message)

		default:
			slog.Debug("unknown sandbox event", "type", ev.Type, "id", ev.ID)
		}
	}
}

func (b *Bridge) appendOutput(id uint64, data string, isStderr bool) {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		if isStderr {
			entry.stderr.WriteString(data)
		} else {
			entry.stdout.WriteString(data)
		}
	}
	b.mu.Unlock()
	if !ok {
		return // already resolved or cancelled; expected, not an error
	}

	if entry.stream != nil {
		kind := sandboxdomain.StreamStdout
		if isStderr {
			kind = sandboxdomain.StreamStderr
		}
		entry.send(sandboxdomain.StreamEvent{Kind: kind, Data: data})
	}
}

// resolve completes the execution with the accumulated buffers. errMsg is
// non-empty when the worker reported an Error event rather than a real exit.
func (b *Bridge) resolve(id uint64, code int, errMsg string) {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
		if errMsg != "" {
			entry.stderr.WriteString(errMsg)
		}
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	if entry.stream != nil {
		final := sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamExit, Code: code}
		if errMsg != "" {
			final = sandboxdomain.StreamEvent{Kind: sandboxdomain.StreamError, Message: errMsg}
		}
		entry.closeStream(final, false)
		return
	}

	entry.result <- &tool.ExecResult{
		Stdout:   entry.stdout.String(),
		Stderr:   entry.stderr.String(),
		ExitCode: code,
	}
}

// janitor garbage-collects pending entries whose cancellation was never
// acknowledged by the worker, bounding the dangling-entry window without
// changing the observable protocol.
func (b *Bridge) janitor() {
	interval := b.orphanTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case now := <-ticker.C:
			b.collectOrphans(now)
		}
	}
}

func (b *Bridge) collectOrphans(now time.Time) {
	b.mu.Lock()
	var orphaned []*pendingExec
	for id, entry := range b.pending {
		if !entry.cancelledAt.IsZero() && now.Sub(entry.cancelledAt) >= b.orphanTimeout {
			delete(b.pending, id)
			orphaned = append(orphaned, entry)
			slog.Warn("collected orphaned sandbox execution", "id", id)
		}
	}
	b.mu.Unlock()

	for _, entry := range orphaned {
		if entry.stream != nil {
			entry.closeStream(sandboxdomain.StreamEvent{
				Kind:    sandboxdomain.StreamError,
				Message: "execution cancelled; worker never acknowledged",
			}, true)
		}
	}
}
