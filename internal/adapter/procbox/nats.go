package procbox

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	sandboxdomain "github.com/Strob0t/SandForge/internal/domain/sandbox"
)

// NATSTransport reaches a remote sandbox worker over core NATS subjects:
// commands are published to <prefix>.cmd, events arrive on <prefix>.evt.
type NATSTransport struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	prefix string
	events chan sandboxdomain.Event
}

// ConnectNATS dials NATS and subscribes to the worker's event subject.
func ConnectNATS(url, prefix string) (*NATSTransport, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	t := &NATSTransport{
		nc:     nc,
		prefix: prefix,
		events: make(chan sandboxdomain.Event, 256),
	}

	sub, err := nc.Subscribe(prefix+".evt", func(msg *nats.Msg) {
		ev, err := sandboxdomain.DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("undecodable sandbox event", "subject", msg.Subject, "error", err)
			return
		}
		t.events <- ev
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	t.sub = sub

	slog.Info("sandbox nats transport connected", "url", url, "prefix", prefix)
	return t, nil
}

// Send publishes the command to the worker's command subject.
func (t *NATSTransport) Send(cmd sandboxdomain.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if err := t.nc.Publish(t.prefix+".cmd", data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Events returns the worker event channel.
func (t *NATSTransport) Events() <-chan sandboxdomain.Event {
	return t.events
}

// Close drains the subscription and closes the connection.
func (t *NATSTransport) Close() error {
	if err := t.sub.Unsubscribe(); err != nil {
		slog.Warn("nats unsubscribe failed", "error", err)
	}
	t.nc.Close()
	close(t.events)
	return nil
}
