// Package procbox implements the sandbox port over an asynchronous,
// correlation-ID-based message channel to an out-of-process command sandbox.
package procbox

import (
	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
)

// Transport is the raw message channel to a sandbox worker. Message order is
// not guaranteed; correlation happens in the bridge, not here.
type Transport interface {
	// Send delivers a command to the worker. An error means the command
	// could not be handed to the channel at all.
	Send(cmd sandboxdomain.Command) error

	// Events returns the channel of worker events. The channel is closed
	// when the worker terminates or the transport is closed.
	Events() <-chan sandboxdomain.Event

	// Close tears down the channel and the worker.
	Close() error
}
