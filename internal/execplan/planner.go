// Package execplan implements the legged execution planner: it executes a
// multi-leg ExecutionPlan leg by leg through the Order Gateway, and on a
// leg failure, when the plan sets UnwindOnFail, unwinds the legs that
// already filled by submitting reversing orders, rather than leaving a
// partial multi-venue position outstanding.
package execplan

import (
	"context"
	"fmt"

	"github.com/tenzoki/tradecore/internal/gateway"
	"github.com/tenzoki/tradecore/internal/models"
)

// VenueExecutor resolves a leg's venue name to the ExecuteFunc the gateway
// should invoke for it.
type VenueExecutor func(venue string) gateway.ExecuteFunc

// Planner runs ExecutionPlans against a Gateway.
type Planner struct {
	gw      *gateway.Gateway
	resolve VenueExecutor
	onAlert func(ctx context.Context, severity, message string)
}

// New builds a Planner. onAlert is called whenever a plan fails, whether or
// not it unwinds, and for each unwind order that fails; pass nil to disable
// alerting (tests typically supply a recording stub).
func New(gw *gateway.Gateway, resolve VenueExecutor, onAlert func(ctx context.Context, severity, message string)) *Planner {
	if onAlert == nil {
		onAlert = func(context.Context, string, string) {}
	}
	return &Planner{gw: gw, resolve: resolve, onAlert: onAlert}
}

// LegResult pairs a leg with the OrderResult the gateway produced for it.
type LegResult struct {
	Leg    models.Leg
	Result *models.OrderResult
}

// ExecutePlan runs plan's legs in order against intent's book/strategy.
// Every leg that passes the gateway's pre-trade gates has its order
// persisted by the gateway, filled or not; a leg rejected at a gate is not
// persisted. On the first leg failure, already-filled legs are unwound with
// reversing orders (if plan.UnwindOnFail) and ExecutePlan returns an empty
// result slice; on full success it returns every leg's result.
func (p *Planner) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan, intent models.Intent) ([]LegResult, error) {
	if plan.Mode != models.ExecutionModeLegged {
		return nil, fmt.Errorf("execplan: unsupported execution mode %q", plan.Mode)
	}

	var filled []LegResult

	for _, leg := range plan.Legs {
		req, err := models.NewOrderRequest(intent.BookID, intent.StrategyID, leg.Instrument, leg.Side, leg.Size, nil, models.OrderTypeMarket, nil, map[string]interface{}{"venue": leg.Venue})
		if err != nil {
			p.abort(ctx, plan, filled, intent, fmt.Sprintf("leg construction failed for venue %s: %v", leg.Venue, err))
			return nil, nil
		}

		result := p.gw.SubmitAndExecute(ctx, req, p.resolve(leg.Venue))
		if !result.Success {
			p.abort(ctx, plan, filled, intent, fmt.Sprintf("leg failed on venue %s: %s", leg.Venue, result.Error))
			return nil, nil
		}

		filled = append(filled, LegResult{Leg: leg, Result: result})
	}

	return filled, nil
}

// abort handles a failed leg: it raises a critical alert and, when the plan
// asked for it, unwinds the legs that already filled. Without UnwindOnFail
// the filled legs are left standing; the alert is the only signal.
func (p *Planner) abort(ctx context.Context, plan *models.ExecutionPlan, filled []LegResult, intent models.Intent, reason string) {
	if !plan.UnwindOnFail {
		p.onAlert(ctx, "critical", fmt.Sprintf("execution plan failed, unwind disabled, %d filled leg(s) left standing: %s", len(filled), reason))
		return
	}
	p.unwind(ctx, filled, intent, reason)
}

// unwind raises a critical alert, then reverses every already-filled leg
// with an opposite-side order on the same venue. A leg that fails to unwind
// still gets an alert per-leg so the anomaly is never silently dropped.
func (p *Planner) unwind(ctx context.Context, filled []LegResult, intent models.Intent, reason string) {
	if len(filled) == 0 {
		p.onAlert(ctx, "critical", fmt.Sprintf("execution plan aborted before any leg filled: %s", reason))
		return
	}

	p.onAlert(ctx, "critical", fmt.Sprintf("unwinding %d filled leg(s): %s", len(filled), reason))

	for i := len(filled) - 1; i >= 0; i-- {
		lr := filled[i]
		reverseReq, err := models.NewOrderRequest(intent.BookID, intent.StrategyID, lr.Leg.Instrument, lr.Leg.Side.Opposite(), lr.Result.FilledSize, nil, models.OrderTypeMarket, nil, map[string]interface{}{"venue": lr.Leg.Venue, "unwind_of": lr.Result.OrderID.String()})
		if err != nil {
			p.onAlert(ctx, "critical", fmt.Sprintf("could not construct unwind order for venue %s: %v", lr.Leg.Venue, err))
			continue
		}
		unwindResult := p.gw.SubmitAndExecute(ctx, reverseReq, p.resolve(lr.Leg.Venue))
		if !unwindResult.Success {
			p.onAlert(ctx, "critical", fmt.Sprintf("unwind order failed on venue %s: %s", lr.Leg.Venue, unwindResult.Error))
		}
	}
}
