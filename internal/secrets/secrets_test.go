package secrets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/SandForge/internal/adapter/memstore"
	"github.com/Strob0t/SandForge/internal/port/storage"
	"github.com/Strob0t/SandForge/internal/secrets"
)

func TestVaultRoundTrip(t *testing.T) {
	store := memstore.New()
	v := secrets.NewVault(store, "correct horse")
	ctx := context.Background()

	if err := v.Put(ctx, "llm_api_key", "sk-12345"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := v.Get(ctx, "llm_api_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "sk-12345" {
		t.Fatalf("Get = %q", got)
	}

	// The stored bytes must not contain the plaintext.
	raw, err := store.Get(ctx, "secret:llm_api_key")
	if err != nil || raw == nil {
		t.Fatalf("raw read failed: %v", err)
	}
	if string(raw) == "sk-12345" {
		t.Fatal("secret stored in plaintext")
	}
}

func TestVaultWrongPassphrase(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	if err := secrets.NewVault(store, "right").Put(ctx, "k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := secrets.NewVault(store, "wrong").Get(ctx, "k"); err == nil {
		t.Fatal("expected open failure with wrong passphrase")
	}
}

func TestVaultMissingSecret(t *testing.T) {
	v := secrets.NewVault(memstore.New(), "p")

	_, err := v.Get(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVaultDelete(t *testing.T) {
	v := secrets.NewVault(memstore.New(), "p")
	ctx := context.Background()

	if err := v.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := v.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := v.Get(ctx, "k"); err == nil {
		t.Fatal("expected error after delete")
	}
}
