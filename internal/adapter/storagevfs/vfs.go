// Package storagevfs implements the filesystem port on top of the flat
// key-value storage port.
//
// Path-to-key mapping: /a/b/c maps to "vfs:/a/b/c". Directory existence is recorded
// by a marker key "vfs:/a/b/__dir__"; listings are derived by prefix scans.
// Writing a file implicitly creates all ancestor directory markers.
package storagevfs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Strob0t/SandForge/internal/domain/tool"
	"github.com/Strob0t/SandForge/internal/port/storage"
)

const (
	keyPrefix = "vfs:"
	dirMarker = "__dir__"
)

// FS is the storage-backed virtual filesystem.
type FS struct {
	store storage.Port
}

// New creates a virtual filesystem over the given storage backend.
func New(store storage.Port) *FS {
	return &FS{store: store}
}

// ReadFile returns the file's contents; absent files yield an error.
func (f *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := f.store.Get(ctx, fileKey(path))
	if err != nil {
		return nil, fmt.Errorf("vfs read %s: %w", path, err)
	}
	if data == nil {
		return nil, fmt.Errorf("vfs read %s: file not found", path)
	}
	return data, nil
}

// WriteFile stores data under path, creating ancestor directories first.
func (f *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	if parent, ok := parentPath(path); ok {
		if err := f.mkdirAll(ctx, parent); err != nil {
			return err
		}
	}
	if err := f.store.Set(ctx, fileKey(path), data); err != nil {
		return fmt.Errorf("vfs write %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes the file at path.
func (f *FS) DeleteFile(ctx context.Context, path string) error {
	if err := f.store.Delete(ctx, fileKey(path)); err != nil {
		return fmt.Errorf("vfs delete %s: %w", path, err)
	}
	return nil
}

// ListDir returns the immediate children of path, deduplicated and sorted by
// name. A child is a directory when more path segments follow it in some key.
func (f *FS) ListDir(ctx context.Context, path string) ([]tool.DirEntry, error) {
	prefix := keyPrefix + normalizePath(path) + "/"
	keys, err := f.store.ListKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("vfs list %s: %w", path, err)
	}

	seen := make(map[string]tool.DirEntry)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)

		name := rel
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			name = rel[:i]
		}
		if name == dirMarker || name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}

		isDir := strings.ContainsRune(rel, '/')
		var size uint64
		if !isDir {
			data, err := f.store.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("vfs list %s: %w", path, err)
			}
			size = uint64(len(data))
		}

		seen[name] = tool.DirEntry{Name: name, IsDir: isDir, Size: size}
	}

	entries := make([]tool.DirEntry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat checks the file key first, then the directory marker.
func (f *FS) Stat(ctx context.Context, path string) (*tool.FileStat, error) {
	data, err := f.store.Get(ctx, fileKey(path))
	if err != nil {
		return nil, fmt.Errorf("vfs stat %s: %w", path, err)
	}
	if data != nil {
		return &tool.FileStat{Size: uint64(len(data)), IsDir: false}, nil
	}

	ok, err := f.store.Exists(ctx, dirKey(path))
	if err != nil {
		return nil, fmt.Errorf("vfs stat %s: %w", path, err)
	}
	if ok {
		return &tool.FileStat{Size: 0, IsDir: true}, nil
	}

	return nil, fmt.Errorf("vfs stat %s: not found", path)
}

// Mkdir creates the directory marker for path. Idempotent.
func (f *FS) Mkdir(ctx context.Context, path string) error {
	if err := f.store.Set(ctx, dirKey(path), []byte{}); err != nil {
		return fmt.Errorf("vfs mkdir %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names a file or a directory.
func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := f.store.Exists(ctx, fileKey(path))
	if err != nil || ok {
		return ok, err
	}
	return f.store.Exists(ctx, dirKey(path))
}

// mkdirAll creates the marker for path and every ancestor, root included.
func (f *FS) mkdirAll(ctx context.Context, path string) error {
	p := path
	for {
		if err := f.Mkdir(ctx, p); err != nil {
			return err
		}
		parent, ok := parentPath(p)
		if !ok {
			return nil
		}
		p = parent
	}
}

func fileKey(path string) string {
	return keyPrefix + normalizePath(path)
}

func dirKey(path string) string {
	return keyPrefix + normalizePath(path) + "/" + dirMarker
}

// normalizePath trims whitespace, ensures a single leading slash and strips
// trailing slashes. Empty and "/" normalize to the empty string (root).
func normalizePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// parentPath returns the parent of path and whether one exists. The parent of
// a top-level entry is "/" (root); the root itself has no parent.
func parentPath(path string) (string, bool) {
	normalized := normalizePath(path)
	if normalized == "" {
		return "", false
	}
	i := strings.LastIndexByte(normalized, '/')
	if i == 0 {
		return "/", true
	}
	return normalized[:i], true
}
