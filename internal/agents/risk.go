package agents

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/public/agent"
)

// RiskAgent is the "risk" agent_type: it evaluates every risk_check
// envelope a meta_decision agent forwarded to it against a maximum
// per-order size, and republishes to risk_approved or risk_rejected. Real
// risk math (VaR, exposure limits, correlation checks) lives outside the
// core; this is the minimal gate needed to exercise the
// risk_check→risk_approved/risk_rejected leg of the channel registry.
type RiskAgent struct {
	pub     agent.Publisher
	maxSize decimal.Decimal
}

// NewRiskAgent builds a risk agent that rejects any order whose size
// exceeds maxSize.
func NewRiskAgent(maxSize decimal.Decimal) *RiskAgent {
	return &RiskAgent{maxSize: maxSize}
}

func (r *RiskAgent) SetAgent(pub agent.Publisher) { r.pub = pub }

func (r *RiskAgent) HandleMessage(ctx context.Context, env *envelope.Envelope) error {
	if env.Channel != string(envelope.ChannelRiskCheck) {
		return nil
	}

	size := decimalFromPayload(env.Payload["size"])
	payload := clonePayload(env.Payload)

	if size.GreaterThan(r.maxSize) {
		payload["reason"] = fmt.Sprintf("risk: size %s exceeds max %s", size.String(), r.maxSize.String())
		return r.pub.Publish(string(envelope.ChannelRiskRejected), payload, nil, env.CorrelationID)
	}

	return r.pub.Publish(string(envelope.ChannelRiskApproved), payload, nil, env.CorrelationID)
}

// Cycle is a no-op: the risk agent is purely reactive to risk_check traffic.
func (r *RiskAgent) Cycle(ctx context.Context) error { return nil }
