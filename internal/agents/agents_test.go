package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/gateway"
	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/internal/storage"
)

// recordingPublisher captures every Publish call for assertion, standing in
// for a live BaseAgent in these unit tests.
type recordingPublisher struct {
	calls []publishCall
}

type publishCall struct {
	channel       string
	payload       map[string]interface{}
	target        *string
	correlationID string
}

func (p *recordingPublisher) Publish(channel string, payload map[string]interface{}, target *string, correlationID string) error {
	p.calls = append(p.calls, publishCall{channel: channel, payload: payload, target: target, correlationID: correlationID})
	return nil
}

func TestMetaDecisionVetoesLowConfidence(t *testing.T) {
	m := NewMetaDecisionAgent(0.5)
	pub := &recordingPublisher{}
	m.SetAgent(pub)

	env := envelope.Create("signal-agent-01", string(envelope.ChannelSignals), map[string]interface{}{
		"instrument": "BTC-USD", "confidence": 0.2,
	}, nil, "corr-1")

	if err := m.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(pub.calls) != 1 || pub.calls[0].channel != string(envelope.ChannelRiskRejected) {
		t.Fatalf("expected one publish to risk_rejected, got %+v", pub.calls)
	}
	if pub.calls[0].correlationID != "corr-1" {
		t.Error("expected correlation id to propagate")
	}
}

func TestMetaDecisionForwardsHighConfidence(t *testing.T) {
	m := NewMetaDecisionAgent(0.5)
	pub := &recordingPublisher{}
	m.SetAgent(pub)

	env := envelope.Create("signal-agent-01", string(envelope.ChannelSignals), map[string]interface{}{
		"instrument": "BTC-USD", "confidence": 0.9,
	}, nil, "corr-2")

	if err := m.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(pub.calls) != 1 || pub.calls[0].channel != string(envelope.ChannelRiskCheck) {
		t.Fatalf("expected one publish to risk_check, got %+v", pub.calls)
	}
}

func TestMetaDecisionIgnoresOtherChannels(t *testing.T) {
	m := NewMetaDecisionAgent(0.5)
	pub := &recordingPublisher{}
	m.SetAgent(pub)

	env := envelope.Create("x", string(envelope.ChannelMarketData), nil, nil, "")
	if err := m.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.calls) != 0 {
		t.Errorf("expected no publish for an unrelated channel, got %+v", pub.calls)
	}
}

func TestSignalAgentPublishesEveryNCycles(t *testing.T) {
	s := NewSignalAgent("BTC-USD", 3)
	pub := &recordingPublisher{}
	s.SetAgent(pub)

	for i := 0; i < 2; i++ {
		if err := s.Cycle(context.Background()); err != nil {
			t.Fatalf("Cycle failed: %v", err)
		}
	}
	if len(pub.calls) != 0 {
		t.Fatalf("expected no signal before the 3rd cycle, got %+v", pub.calls)
	}

	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected exactly one signal on the 3rd cycle, got %+v", pub.calls)
	}
	if pub.calls[0].payload["side"] != "buy" {
		t.Errorf("expected first signal to be a buy, got %+v", pub.calls[0].payload)
	}
}

func TestRiskAgentRejectsOversizedOrder(t *testing.T) {
	r := NewRiskAgent(decimal.NewFromFloat(1.0))
	pub := &recordingPublisher{}
	r.SetAgent(pub)

	env := envelope.Create("meta-decision", string(envelope.ChannelRiskCheck), map[string]interface{}{
		"instrument": "BTC-USD", "size": 5.0,
	}, nil, "corr-3")

	if err := r.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if len(pub.calls) != 1 || pub.calls[0].channel != string(envelope.ChannelRiskRejected) {
		t.Fatalf("expected one publish to risk_rejected, got %+v", pub.calls)
	}
}

func TestRiskAgentApprovesWithinLimit(t *testing.T) {
	r := NewRiskAgent(decimal.NewFromFloat(1.0))
	pub := &recordingPublisher{}
	r.SetAgent(pub)

	env := envelope.Create("meta-decision", string(envelope.ChannelRiskCheck), map[string]interface{}{
		"instrument": "BTC-USD", "size": 0.1,
	}, nil, "corr-4")

	if err := r.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if len(pub.calls) != 1 || pub.calls[0].channel != string(envelope.ChannelRiskApproved) {
		t.Fatalf("expected one publish to risk_approved, got %+v", pub.calls)
	}
}

func TestExecutionAgentExecutesApprovedOrderAndPublishesFill(t *testing.T) {
	store := storage.NewMemoryAdapter()
	seedActiveBookAndSettings(store)
	gw := gateway.New(store)
	bookID := testBookID

	execute := func(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (decimal.Decimal, *decimal.Decimal, *string, error) {
		price := decimal.NewFromFloat(50000)
		venueID := "venue-1"
		return req.Size, &price, &venueID, nil
	}

	e := NewExecutionAgent(gw, bookID, execute)
	pub := &recordingPublisher{}
	e.SetAgent(pub)

	env := envelope.Create("risk-agent-01", string(envelope.ChannelRiskApproved), map[string]interface{}{
		"instrument": "BTC-USD", "side": "buy", "size": 0.1,
	}, nil, "corr-5")

	if err := e.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(pub.calls) != 1 || pub.calls[0].channel != string(envelope.ChannelFills) {
		t.Fatalf("expected one publish to fills, got %+v", pub.calls)
	}
	if pub.calls[0].payload["success"] != true {
		t.Errorf("expected a successful fill, got %+v", pub.calls[0].payload)
	}
	if len(store.Rows("orders")) != 1 {
		t.Errorf("expected exactly one orders row, got %d", len(store.Rows("orders")))
	}
}

func TestCapitalAllocationAgentTracksFills(t *testing.T) {
	c := NewCapitalAllocationAgent(decimal.NewFromFloat(100))
	pub := &recordingPublisher{}
	c.SetAgent(pub)

	env := envelope.Create("execution-agent-01", string(envelope.ChannelFills), map[string]interface{}{
		"success": true, "filled_size": 10.0,
	}, nil, "")
	if err := c.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if !c.Allocated().Equal(decimal.NewFromFloat(10)) {
		t.Errorf("expected allocated=10, got %s", c.Allocated())
	}
	if !c.Remaining().Equal(decimal.NewFromFloat(90)) {
		t.Errorf("expected remaining=90, got %s", c.Remaining())
	}
}

func TestCapitalAllocationAgentIgnoresFailedFills(t *testing.T) {
	c := NewCapitalAllocationAgent(decimal.NewFromFloat(100))
	pub := &recordingPublisher{}
	c.SetAgent(pub)

	env := envelope.Create("execution-agent-01", string(envelope.ChannelFills), map[string]interface{}{
		"success": false, "filled_size": 10.0,
	}, nil, "")
	if err := c.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if !c.Allocated().IsZero() {
		t.Errorf("expected allocated=0 for a failed fill, got %s", c.Allocated())
	}
}

var testBookID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func seedActiveBookAndSettings(store *storage.MemoryAdapter) {
	_ = store.Upsert(context.Background(), "global_settings", storage.Row{"global_kill_switch": false}, nil)
	_ = store.Insert(context.Background(), "books", storage.Row{"id": testBookID.String(), "status": models.BookActive})
}
