// Package bus implements the message bus transport adapter (C2): a
// publish/subscribe broker abstraction over named channels, with an
// in-memory implementation used both by production (single-process
// deployment) and by tests.
//
// The bus is explicitly NOT a durable log: delivery is at-most-once and
// fire-and-forget, there is no cross-channel ordering guarantee, and a
// subscriber only receives messages published after its Subscribe call
// completes.
//
// Called by: public/agent (the runtime's main and heartbeat loops, and the
// Publish that internal/agents/* variants go through), public/orchestrator
// (its control-plane client).
// Calls: internal/envelope for the message shape.
package bus

import (
	"fmt"
	"time"

	"github.com/tenzoki/tradecore/internal/envelope"
)

// Bus is the transport adapter every agent uses to talk to the rest of the
// system. A Bus value is per-agent; it is not shared across agents.
type Bus interface {
	// Connect attaches this client to the broker identified by brokerURL.
	Connect(brokerURL string) error

	// Subscribe registers interest in the given channels. Only messages
	// published after Subscribe returns are delivered to this client.
	Subscribe(channels ...string) error

	// Unsubscribe drops all channel subscriptions for this client.
	Unsubscribe() error

	// Publish fans the envelope out to every subscriber currently
	// registered on channel, including other subscribers in this same
	// process.
	Publish(channel string, env *envelope.Envelope) error

	// NextMessage returns the next pending message for this client's
	// subscriptions, or (nil, false) if none arrives within timeout. It
	// never blocks longer than timeout, so it supports a cooperative
	// ~100ms poll loop.
	NextMessage(timeout time.Duration) (*envelope.Envelope, bool)

	// Close releases this client's connection and subscriptions.
	Close() error
}

// TransportError wraps a transport-layer failure (connect, publish,
// subscribe). The agent runtime reacts to it by terminating the current
// run; the supervisor is responsible for restarting the agent.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
