// Package agents supplies the concrete agent.Runner implementations for
// each agent_type: meta_decision, signal, risk, execution, and
// capital_allocation. Strategy logic lives outside the core, so these are
// thin: enough to exercise the runtime, the bus protocol, and the veto
// relationship end to end.
//
// Every Runner here follows the same shape: it implements agent.Runner
// (HandleMessage, Cycle) and agent.AgentAware (SetAgent), so
// public/agent.New wires it to a live BaseAgent that can publish on its own
// behalf.
package agents

import (
	"github.com/shopspring/decimal"
)

// clonePayload returns a shallow copy of p so a forwarding agent (meta
// decision, risk) can pass most of the original envelope's payload through
// while adding or overriding a field, without mutating the envelope it was
// handed (envelopes are immutable once created).
func clonePayload(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// decimalFromPayload extracts a decimal.Decimal from a bus payload value.
// Payloads are JSON-decoded maps, so numeric fields typically arrive as
// float64; decimalFromPayload also accepts a string encoding (for callers
// that serialize decimals as strings to avoid float precision loss) and a
// decimal.Decimal passed in-process without a JSON round trip.
func decimalFromPayload(v interface{}) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	case decimal.Decimal:
		return n
	}
	return decimal.Zero
}

func floatOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
