// Package broadcast defines the port for fanning agent events out to
// connected observers (browser UIs on the WebSocket hub, typically).
package broadcast

import "context"

// Broadcaster delivers typed event payloads to all connected observers.
// Delivery is best-effort; slow or dead observers must not block callers.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)

	// ConnectionCount reports how many observers are currently attached.
	ConnectionCount() int
}
