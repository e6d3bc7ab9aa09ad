// Package natskv implements the storage port using NATS JetStream KV.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store wraps a NATS JetStream KeyValue bucket as a storage backend.
//
// Storage keys contain characters NATS KV rejects (":" and leading "/"), so
// every key is base64url-encoded before hitting the bucket. The encoding is
// order-preserving enough for prefix listing only after decoding, so ListKeys
// decodes every bucket key and filters client-side.
type Store struct {
	kv jetstream.KeyValue
}

// Connect dials NATS and binds (or creates) the given KV bucket.
func Connect(ctx context.Context, url, bucket string) (*Store, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream kv bucket %s: %w", bucket, err)
	}

	return &Store{kv: kv}, nil
}

// New wraps an existing KeyValue bucket.
func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

// Get returns the value for key, or nil if absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("natskv get: %w", err)
	}
	return entry.Value(), nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, encodeKey(key), value); err != nil {
		return fmt.Errorf("natskv put: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv delete: %w", err)
	}
	return nil
}

// ListKeys returns all keys with the given prefix.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("natskv list: %w", err)
	}

	var keys []string
	for encoded := range lister.Keys() {
		key, err := decodeKey(encoded)
		if err != nil {
			continue // foreign key in a shared bucket
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// BackendName identifies this backend.
func (s *Store) BackendName() string { return "nats-kv" }

func encodeKey(key string) string {
	return base64.URLEncoding.EncodeToString([]byte(key))
}

func decodeKey(encoded string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
