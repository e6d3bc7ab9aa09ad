// Package tool defines tool catalogue entries and execution result types.
package tool

// Definition describes an invocable tool in OpenAI function-calling shape.
// Definitions are immutable and registered at construction; the catalogue is
// closed; there is no dynamic registration.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is a JSON-schema object describing tool arguments.
type Parameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// Result is the outcome of a single tool call. Failures are carried in Output
// as text visible to the model, never as Go errors.
type Result struct {
	CallID  string `json:"call_id"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

// ExecResult is the full outcome of a sandboxed command execution.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ExecHandle identifies a running sandbox execution for cancellation.
type ExecHandle uint64

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  uint64 `json:"size"`
}

// FileStat describes a file or directory.
type FileStat struct {
	Size  uint64 `json:"size"`
	IsDir bool   `json:"is_dir"`
}
