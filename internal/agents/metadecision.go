package agents

import (
	"context"
	"fmt"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/public/agent"
)

// MetaDecisionAgent is the sole veto-authority agent type: the orchestrator
// always registers it first, and it is the only agent type permitted to
// reject a signal outright rather than forward it for risk evaluation. The
// veto itself is enforced entirely by the message protocol — publishing to
// risk_rejected instead of risk_check — not by any special orchestrator
// wiring.
type MetaDecisionAgent struct {
	pub           agent.Publisher
	minConfidence float64
}

// NewMetaDecisionAgent builds a veto agent that rejects any signal whose
// "confidence" payload field is below minConfidence.
func NewMetaDecisionAgent(minConfidence float64) *MetaDecisionAgent {
	return &MetaDecisionAgent{minConfidence: minConfidence}
}

func (m *MetaDecisionAgent) SetAgent(pub agent.Publisher) { m.pub = pub }

// HandleMessage vetoes or forwards every signal it sees. Anything on a
// channel other than signals is ignored.
func (m *MetaDecisionAgent) HandleMessage(ctx context.Context, env *envelope.Envelope) error {
	if env.Channel != string(envelope.ChannelSignals) {
		return nil
	}

	confidence, _ := env.Payload["confidence"].(float64)
	payload := clonePayload(env.Payload)

	if confidence < m.minConfidence {
		payload["reason"] = fmt.Sprintf("meta_decision veto: confidence %.2f below threshold %.2f", confidence, m.minConfidence)
		return m.pub.Publish(string(envelope.ChannelRiskRejected), payload, nil, env.CorrelationID)
	}

	return m.pub.Publish(string(envelope.ChannelRiskCheck), payload, nil, env.CorrelationID)
}

// Cycle is a no-op: meta decision is purely reactive to incoming signals.
func (m *MetaDecisionAgent) Cycle(ctx context.Context) error { return nil }
