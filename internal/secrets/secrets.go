// Package secrets seals small secrets (provider API keys) before they are
// placed in the storage backend, so key material never rests in plaintext.
package secrets

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/Strob0t/SandForge/internal/port/storage"
)

const keyPrefix = "secret:"

// Vault seals and opens secrets with a passphrase-derived key.
type Vault struct {
	store storage.Port
	key   [32]byte
}

// NewVault derives the sealing key from the passphrase.
func NewVault(store storage.Port, passphrase string) *Vault {
	return &Vault{store: store, key: sha256.Sum256([]byte(passphrase))}
}

// Put seals value and stores it under name.
func (v *Vault) Put(ctx context.Context, name, value string) error {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &v.key)
	if err := v.store.Set(ctx, keyPrefix+name, sealed); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	return nil
}

// Get opens the secret stored under name. A missing secret returns
// storage.ErrNotFound; a wrong passphrase fails to open.
func (v *Vault) Get(ctx context.Context, name string) (string, error) {
	sealed, err := v.store.Get(ctx, keyPrefix+name)
	if err != nil {
		return "", fmt.Errorf("load secret: %w", err)
	}
	if sealed == nil {
		return "", fmt.Errorf("secret %s: %w", name, storage.ErrNotFound)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("secret %s: sealed payload too short", name)
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &v.key)
	if !ok {
		return "", fmt.Errorf("secret %s: open failed, wrong passphrase or corrupt data", name)
	}
	return string(plain), nil
}

// Delete removes a stored secret.
func (v *Vault) Delete(ctx context.Context, name string) error {
	return v.store.Delete(ctx, keyPrefix+name)
}
