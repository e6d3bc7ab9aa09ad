// Package sandbox defines the wire protocol between the core and the
// out-of-process command sandbox.
//
// Commands flow core → sandbox, events flow sandbox → core. Both are tagged
// unions keyed by "type"; ID is the correlation token minted by the bridge and
// is the sole join between a request and its asynchronous completion.
package sandbox

import "encoding/json"

// Command type tags.
const (
	CmdInit       = "init"
	CmdExec       = "exec"
	CmdCancel     = "cancel"
	CmdWriteStdin = "write_stdin"
)

// Event type tags.
const (
	EvtReady  = "ready"
	EvtStdout = "stdout"
	EvtStderr = "stderr"
	EvtExit   = "exit"
	EvtError  = "error"
)

// Command is a message sent to the sandbox process.
type Command struct {
	Type      string `json:"type"`
	ID        uint64 `json:"id,omitempty"`
	Cmd       string `json:"cmd,omitempty"`
	TimeoutMs uint64 `json:"timeout_ms,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Event is a message received from the sandbox process.
type Event struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id,omitempty"`
	Data    string `json:"data,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Init builds the lifecycle handshake command. The sandbox is not usable
// until a ready event is observed in response.
func Init() Command {
	return Command{Type: CmdInit}
}

// Exec builds an execution request. A zero timeout means no hint.
func Exec(id uint64, cmd string, timeoutMs uint64) Command {
	return Command{Type: CmdExec, ID: id, Cmd: cmd, TimeoutMs: timeoutMs}
}

// Cancel builds a best-effort cancellation for a running execution.
func Cancel(id uint64) Command {
	return Command{Type: CmdCancel, ID: id}
}

// WriteStdin builds a command that feeds data to a running process.
func WriteStdin(id uint64, data string) Command {
	return Command{Type: CmdWriteStdin, ID: id, Data: data}
}

// Encode serializes a command as a single JSON line payload.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeEvent parses a single event payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// StreamEvent is one element of a streaming execution sequence. The sequence
// is finite: it terminates with an exit or error element.
type StreamEvent struct {
	Kind    StreamKind
	Data    string
	Code    int
	Message string
}

// StreamKind discriminates StreamEvent variants.
type StreamKind int

// Streaming event kinds.
const (
	StreamStdout StreamKind = iota
	StreamStderr
	StreamExit
	StreamError
)
