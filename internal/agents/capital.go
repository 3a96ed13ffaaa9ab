package agents

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/public/agent"
)

// CapitalAllocationAgent is the "capital_allocation" agent_type: it tracks
// how much of the book's total capital is committed to filled orders by
// watching the fills channel. Allocation strategy (sizing rules, per-book
// limits) lives outside the core; this is the minimal bookkeeping needed
// to exercise the fills leg of the channel registry from the allocation
// side.
type CapitalAllocationAgent struct {
	pub agent.Publisher

	mu           sync.Mutex
	totalCapital decimal.Decimal
	allocated    decimal.Decimal
}

// NewCapitalAllocationAgent builds a capital tracker seeded with
// totalCapital (the TOTAL_CAPITAL environment variable, resolved by the
// process entry point and passed in here).
func NewCapitalAllocationAgent(totalCapital decimal.Decimal) *CapitalAllocationAgent {
	return &CapitalAllocationAgent{totalCapital: totalCapital}
}

func (c *CapitalAllocationAgent) SetAgent(pub agent.Publisher) { c.pub = pub }

// HandleMessage accumulates the filled size of every successful fill into
// the allocated-capital counter.
func (c *CapitalAllocationAgent) HandleMessage(ctx context.Context, env *envelope.Envelope) error {
	if env.Channel != string(envelope.ChannelFills) {
		return nil
	}
	if success, _ := env.Payload["success"].(bool); !success {
		return nil
	}

	size := decimalFromPayload(env.Payload["filled_size"])
	c.mu.Lock()
	c.allocated = c.allocated.Add(size)
	c.mu.Unlock()
	return nil
}

// Cycle is a no-op placeholder: periodic rebalancing is a strategy
// decision outside the core.
func (c *CapitalAllocationAgent) Cycle(ctx context.Context) error { return nil }

// Remaining reports totalCapital minus everything allocated so far.
func (c *CapitalAllocationAgent) Remaining() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCapital.Sub(c.allocated)
}

// Allocated reports the capital committed to filled orders so far.
func (c *CapitalAllocationAgent) Allocated() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated
}
