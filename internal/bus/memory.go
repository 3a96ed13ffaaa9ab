package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/tenzoki/tradecore/internal/envelope"
)

// Hub is the in-process broker: a named registry of channels, each with a
// set of subscriber queues. The system runs as a single process with
// cooperatively scheduled agent tasks, so the broker is an in-memory
// fan-out rather than a remote service.
//
// Thread Safety: all methods are safe for concurrent use by many agent
// goroutines.
type Hub struct {
	mu     sync.RWMutex
	topics map[string][]chan *envelope.Envelope
}

// NewHub creates an empty broker hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string][]chan *envelope.Envelope)}
}

// hubRegistry maps a brokerURL to a shared Hub instance, so that multiple
// MemoryBus clients constructed with the same address participate in the
// same broker.
var hubRegistry = struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}{hubs: make(map[string]*Hub)}

// ResolveHub returns the shared Hub for brokerURL, creating it on first use.
func ResolveHub(brokerURL string) *Hub {
	hubRegistry.mu.Lock()
	defer hubRegistry.mu.Unlock()
	h, ok := hubRegistry.hubs[brokerURL]
	if !ok {
		h = NewHub()
		hubRegistry.hubs[brokerURL] = h
	}
	return h
}

// subscribe registers a fresh, buffered delivery queue for channel and
// returns it. Messages published to channel before this call are not
// delivered to the returned queue.
func (h *Hub) subscribe(channel string) chan *envelope.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan *envelope.Envelope, 256)
	h.topics[channel] = append(h.topics[channel], ch)
	return ch
}

// unsubscribe removes ch from channel's subscriber list and closes it.
func (h *Hub) unsubscribe(channel string, ch chan *envelope.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[channel]
	for i, s := range subs {
		if s == ch {
			h.topics[channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish fans env out to every current subscriber of channel. Delivery is
// best-effort: a full subscriber queue drops the message rather than
// blocking the publisher (at-most-once, fire-and-forget).
func (h *Hub) Publish(channel string, env *envelope.Envelope) {
	h.mu.RLock()
	subs := h.topics[channel]
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- env:
		default:
		}
	}
}

// MemoryBus is the Bus implementation backed by a Hub. It implements the
// full Bus interface for both production single-process deployment and
// tests.
type MemoryBus struct {
	mu       sync.Mutex
	hub      *Hub
	channels []string
	queues   map[string]chan *envelope.Envelope
}

// NewMemoryBus constructs a disconnected client; call Connect before use.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{queues: make(map[string]chan *envelope.Envelope)}
}

// Connect attaches this client to the shared Hub identified by brokerURL.
func (b *MemoryBus) Connect(brokerURL string) error {
	if brokerURL == "" {
		return &TransportError{Op: "connect", Err: fmt.Errorf("empty broker URL")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = ResolveHub(brokerURL)
	return nil
}

// Subscribe registers this client's queues for each channel.
func (b *MemoryBus) Subscribe(channels ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hub == nil {
		return &TransportError{Op: "subscribe", Err: fmt.Errorf("not connected")}
	}
	for _, ch := range channels {
		if _, exists := b.queues[ch]; exists {
			continue
		}
		b.queues[ch] = b.hub.subscribe(ch)
		b.channels = append(b.channels, ch)
	}
	return nil
}

// Unsubscribe drops every channel subscription held by this client.
func (b *MemoryBus) Unsubscribe() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, q := range b.queues {
		b.hub.unsubscribe(ch, q)
		delete(b.queues, ch)
	}
	b.channels = nil
	return nil
}

// Publish fans env out to every subscriber of channel via the shared hub.
func (b *MemoryBus) Publish(channel string, env *envelope.Envelope) error {
	b.mu.Lock()
	hub := b.hub
	b.mu.Unlock()
	if hub == nil {
		return &TransportError{Op: "publish", Err: fmt.Errorf("not connected")}
	}
	hub.Publish(channel, env)
	return nil
}

// NextMessage polls all subscribed channels for the next pending envelope,
// returning (nil, false) if nothing arrives within timeout. No cross-channel
// ordering is implied; within a single channel, envelopes are delivered in
// publish order.
func (b *MemoryBus) NextMessage(timeout time.Duration) (*envelope.Envelope, bool) {
	b.mu.Lock()
	queues := make([]chan *envelope.Envelope, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	if len(queues) == 0 {
		time.Sleep(timeout)
		return nil, false
	}

	deadline := time.After(timeout)
	for {
		for _, q := range queues {
			select {
			case env, ok := <-q:
				if ok {
					return env, true
				}
			default:
			}
		}
		select {
		case <-deadline:
			return nil, false
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Close unsubscribes and detaches from the hub.
func (b *MemoryBus) Close() error {
	_ = b.Unsubscribe()
	b.mu.Lock()
	b.hub = nil
	b.mu.Unlock()
	return nil
}
