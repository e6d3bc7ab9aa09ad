package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Strob0t/SandForge/internal/domain/tool"
)

// ToolRegistry is the static catalogue of invocable tools. The set is closed
// at construction; it validates and describes, it does not execute.
type ToolRegistry struct {
	tools map[string]tool.Definition
}

// NewToolRegistry creates the registry with the built-in tool catalogue.
func NewToolRegistry() *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]tool.Definition)}
	for _, def := range []tool.Definition{
		bashTool(),
		readFileTool(),
		writeFileTool(),
		listDirTool(),
	} {
		r.tools[def.Name] = def
	}
	return r
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (tool.Definition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// Definitions returns all catalogue entries, sorted by name, for inclusion
// in model requests.
func (r *ToolRegistry) Definitions() []tool.Definition {
	defs := make([]tool.Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func bashTool() tool.Definition {
	return tool.Definition{
		Name:        "bash",
		Description: "Execute a bash command in the sandbox shell environment",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The bash command to execute",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Optional timeout in milliseconds",
				},
			},
			Required: []string{"command"},
		},
	}
}

func readFileTool() tool.Definition {
	return tool.Definition{
		Name:        "read_file",
		Description: "Read the contents of a file from the virtual filesystem",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read",
				},
			},
			Required: []string{"path"},
		},
	}
}

func writeFileTool() tool.Definition {
	return tool.Definition{
		Name:        "write_file",
		Description: "Write content to a file in the virtual filesystem",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func listDirTool() tool.Definition {
	return tool.Definition{
		Name:        "list_dir",
		Description: "List files and directories at the given path",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path to list",
				},
			},
			Required: []string{"path"},
		},
	}
}

// toolArgs holds the decoded JSON arguments of a tool call.
type toolArgs map[string]any

func parseToolArgs(raw string) (toolArgs, error) {
	var args toolArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return args, nil
}

func (a toolArgs) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a toolArgs) uintOr(key string, def uint64) uint64 {
	if v, ok := a[key].(float64); ok && v >= 0 {
		return uint64(v)
	}
	return def
}
