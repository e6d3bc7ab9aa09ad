// The sandforge-worker binary is the sandbox side of the command protocol:
// it reads NDJSON commands on stdin, runs them in a shell, and streams
// NDJSON events back on stdout. The core spawns one worker per runtime
// instance when the sandbox transport is "proc".
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Strob0t/SandForge/internal/domain/sandbox"
)

const maxCommandLine = 1 << 20

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	w := &worker{
		out: json.NewEncoder(os.Stdout),
		log: log,
		run: make(map[uint64]*running),
	}
	w.loop(os.Stdin)
}

// running tracks one in-flight execution.
type running struct {
	cancel context.CancelFunc
	stdin  io.WriteCloser
}

type worker struct {
	mu  sync.Mutex
	out *json.Encoder
	log *slog.Logger
	run map[uint64]*running
	wg  sync.WaitGroup
}

func (w *worker) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCommandLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd sandbox.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			w.log.Warn("dropping malformed command", "error", err)
			continue
		}
		w.dispatch(cmd)
	}
	w.wg.Wait()
}

func (w *worker) dispatch(cmd sandbox.Command) {
	switch cmd.Type {
	case sandbox.CmdInit:
		w.emit(sandbox.Event{Type: sandbox.EvtReady})
	case sandbox.CmdExec:
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.execute(cmd.ID, cmd.Cmd, cmd.TimeoutMs)
		}()
	case sandbox.CmdCancel:
		w.cancel(cmd.ID)
	case sandbox.CmdWriteStdin:
		w.writeStdin(cmd.ID, cmd.Data)
	default:
		w.log.Warn("unknown command type", "type", cmd.Type)
	}
}

func (w *worker) execute(id uint64, command string, timeoutMs uint64) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.emit(sandbox.Event{Type: sandbox.EvtError, ID: id, Message: err.Error()})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		w.emit(sandbox.Event{Type: sandbox.EvtError, ID: id, Message: err.Error()})
		return
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.emit(sandbox.Event{Type: sandbox.EvtError, ID: id, Message: err.Error()})
		return
	}

	if err := cmd.Start(); err != nil {
		w.emit(sandbox.Event{Type: sandbox.EvtError, ID: id, Message: err.Error()})
		return
	}

	w.mu.Lock()
	w.run[id] = &running{cancel: cancel, stdin: stdin}
	w.mu.Unlock()

	var pipes sync.WaitGroup
	pipes.Add(2)
	go w.stream(id, sandbox.EvtStdout, stdout, &pipes)
	go w.stream(id, sandbox.EvtStderr, stderr, &pipes)
	pipes.Wait()

	code := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = 1
		}
	}

	w.mu.Lock()
	delete(w.run, id)
	w.mu.Unlock()

	w.emit(sandbox.Event{Type: sandbox.EvtExit, ID: id, Code: code})
}

// stream forwards one pipe as chunked events.
func (w *worker) stream(id uint64, evtType string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 16*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.emit(sandbox.Event{Type: evtType, ID: id, Data: string(buf[:n])})
		}
		if err != nil {
			return
		}
	}
}

func (w *worker) cancel(id uint64) {
	w.mu.Lock()
	r := w.run[id]
	w.mu.Unlock()
	if r != nil {
		r.cancel()
	}
}

func (w *worker) writeStdin(id uint64, data string) {
	w.mu.Lock()
	r := w.run[id]
	w.mu.Unlock()
	if r == nil || r.stdin == nil {
		return
	}
	if _, err := io.WriteString(r.stdin, data); err != nil {
		w.log.Warn("stdin write failed", "id", id, "error", err)
	}
}

// emit writes one event line. Serialized because multiple stream goroutines
// share the encoder.
func (w *worker) emit(ev sandbox.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.out.Encode(ev); err != nil {
		w.log.Error("emit failed", "error", err)
	}
}
