package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Strob0t/SandForge/internal/port/storage"
	"github.com/Strob0t/SandForge/internal/secrets"
)

const apiKeySecretName = "llm_api_key"

// loadAPIKey resolves the provider API key when configuration carries none:
// first from the sealed vault in storage, then by prompting on a terminal.
// A prompted key is sealed back into the vault for the next start. Returns
// "" when no key can be obtained; the model port will fail with a clear
// provider error in that case.
func loadAPIKey(ctx context.Context, store storage.Port) string {
	passphrase := os.Getenv("SANDFORGE_VAULT_PASSPHRASE")
	if passphrase == "" {
		passphrase = "sandforge"
	}
	vault := secrets.NewVault(store, passphrase)

	key, err := vault.Get(ctx, apiKeySecretName)
	if err == nil && key != "" {
		slog.Info("api key loaded from vault")
		return key
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return ""
	}

	key, err = promptSecret("Provider API key: ")
	if err != nil || key == "" {
		return ""
	}
	if err := vault.Put(ctx, apiKeySecretName, key); err != nil {
		slog.Warn("could not seal api key into vault", "error", err)
	}
	return key
}

// promptSecret reads a value from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
