package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/gateway"
	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/public/agent"
)

// ExecutionAgent is the "execution" agent_type and the ONLY agent that
// invokes the Order Gateway directly rather than over the bus. It turns an
// approved risk_approved envelope into a gateway call and republishes the
// outcome on fills.
type ExecutionAgent struct {
	pub     agent.Publisher
	gw      *gateway.Gateway
	bookID  uuid.UUID
	execute gateway.ExecuteFunc
}

// NewExecutionAgent builds an execution agent that submits every approved
// order against bookID through gw, using execute as the venue adapter.
func NewExecutionAgent(gw *gateway.Gateway, bookID uuid.UUID, execute gateway.ExecuteFunc) *ExecutionAgent {
	return &ExecutionAgent{gw: gw, bookID: bookID, execute: execute}
}

func (e *ExecutionAgent) SetAgent(pub agent.Publisher) { e.pub = pub }

// HandleMessage builds an OrderRequest from a risk_approved envelope,
// submits it through the gateway, and publishes the result to fills. A
// malformed envelope (failing OrderRequest validation) is reported as a
// HandleMessage error, counted in the agent's error metric, rather than
// reaching the gateway at all.
func (e *ExecutionAgent) HandleMessage(ctx context.Context, env *envelope.Envelope) error {
	if env.Channel != string(envelope.ChannelRiskApproved) {
		return nil
	}

	instrument, _ := env.Payload["instrument"].(string)
	side, _ := env.Payload["side"].(string)
	size := decimalFromPayload(env.Payload["size"])

	req, err := models.NewOrderRequest(e.bookID, nil, instrument, models.Side(side), size, nil, models.OrderTypeMarket, nil, nil)
	if err != nil {
		return fmt.Errorf("execution agent: invalid approved order: %w", err)
	}

	result := e.gw.SubmitAndExecute(ctx, req, e.execute)

	payload := map[string]interface{}{
		"order_id":    result.OrderID.String(),
		"instrument":  instrument,
		"side":        side,
		"status":      string(result.Status),
		"filled_size": floatOf(result.FilledSize),
		"success":     result.Success,
	}
	if result.Error != "" {
		payload["error"] = result.Error
	}

	return e.pub.Publish(string(envelope.ChannelFills), payload, nil, env.CorrelationID)
}

// Cycle is a no-op: the execution agent only acts on risk_approved traffic.
func (e *ExecutionAgent) Cycle(ctx context.Context) error { return nil }
