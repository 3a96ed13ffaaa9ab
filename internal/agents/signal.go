package agents

import (
	"context"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/public/agent"
)

// SignalAgent is a thin demonstration of the "signal" agent_type: it
// alternates buy/sell signals for a single instrument every everyN
// main-loop cycles (roughly everyN * 100ms of wall time, given the
// main loop's ~100ms bus poll). Real signal generation logic lives outside
// the core.
type SignalAgent struct {
	pub        agent.Publisher
	instrument string
	everyN     int
	tick       int
	nextSide   models.Side
}

// NewSignalAgent builds a signal agent for instrument, emitting alternating
// buy/sell signals every everyN cycles. everyN <= 0 defaults to 300.
func NewSignalAgent(instrument string, everyN int) *SignalAgent {
	if everyN <= 0 {
		everyN = 300
	}
	return &SignalAgent{instrument: instrument, everyN: everyN, nextSide: models.SideBuy}
}

func (s *SignalAgent) SetAgent(pub agent.Publisher) { s.pub = pub }

// HandleMessage is a no-op: this demonstration signal agent doesn't react
// to other channels.
func (s *SignalAgent) HandleMessage(ctx context.Context, env *envelope.Envelope) error { return nil }

// Cycle advances the internal tick and, every everyN ticks, publishes one
// alternating-side signal.
func (s *SignalAgent) Cycle(ctx context.Context) error {
	s.tick++
	if s.tick%s.everyN != 0 {
		return nil
	}

	side := s.nextSide
	s.nextSide = side.Opposite()

	payload := map[string]interface{}{
		"instrument": s.instrument,
		"side":       string(side),
		"size":       0.01,
		"confidence": 0.8,
	}
	return s.pub.Publish(string(envelope.ChannelSignals), payload, nil, "")
}
