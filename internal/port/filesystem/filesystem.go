// Package filesystem defines the virtual filesystem port (interface).
package filesystem

import (
	"context"

	"github.com/Strob0t/SandForge/internal/domain/tool"
)

// FS is the capability port for POSIX-path-like file access.
type FS interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	DeleteFile(ctx context.Context, path string) error

	// ListDir returns the immediate children of path, sorted by name.
	ListDir(ctx context.Context, path string) ([]tool.DirEntry, error)

	// Stat describes a file or directory; absent paths yield an error.
	Stat(ctx context.Context, path string) (*tool.FileStat, error)

	// Mkdir is idempotent: re-creating an existing directory is a no-op.
	Mkdir(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}
