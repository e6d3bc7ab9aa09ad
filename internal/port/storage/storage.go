// Package storage defines the flat key-value storage port (interface).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for absent keys by implementations that
// prefer errors over nil values; most callers use the (value, nil) contract.
var ErrNotFound = errors.New("storage: key not found")

// Port is the capability port for flat key-value persistence.
// Get returns (nil, nil) for absent keys.
type Port interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// ListKeys returns all keys with the given prefix, in no guaranteed order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// BackendName identifies this backend for logging and diagnostics.
	BackendName() string
}
