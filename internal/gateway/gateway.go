// Package gateway implements the Order Gateway: the single write path for
// the orders and positions tables. Every order-writing side effect in the
// system funnels through Gateway.SubmitAndExecute or Gateway.SubmitOrder —
// pre-trade gating, venue execution, order persistence, position
// reconciliation, and audit emission as one logical, strictly sequential
// pipeline per call.
//
// No exception escapes the gateway: every call resolves to an OrderResult.
// Gate failures and venue/persistence failures are reflected in the result,
// never propagated to the caller as an error return.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/internal/storage"
)

// ExecuteFunc is the venue adapter shape the gateway invokes to fill an
// order: it returns the filled size, fill price, and venue order id, or an
// error if the venue rejected/failed the order.
type ExecuteFunc func(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (filledSize decimal.Decimal, filledPrice *decimal.Decimal, venueOrderID *string, err error)

// Gateway is the sole writer of the orders and positions tables.
type Gateway struct {
	store storage.Adapter
}

// New builds a Gateway over the given persistence adapter.
func New(store storage.Adapter) *Gateway {
	return &Gateway{store: store}
}

// SubmitAndExecute runs the full gateway pipeline: gates, venue execution,
// order persistence, position reconciliation, and audit emission. It always
// returns a populated OrderResult with LatencyMs set, even when rejected at
// a gate.
func (g *Gateway) SubmitAndExecute(ctx context.Context, req *models.OrderRequest, execute ExecuteFunc) *models.OrderResult {
	orderID := uuid.New()
	start := time.Now()

	result := &models.OrderResult{OrderID: orderID}

	if rejected := g.checkGates(ctx, req, result); rejected {
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	filledSize, filledPrice, venueOrderID, err := safeExecute(ctx, execute, req, orderID)
	if err != nil {
		result.Success = false
		result.Status = models.StatusRejected
		result.Error = err.Error()
	} else {
		result.Success = true
		result.FilledSize = filledSize
		result.FilledPrice = filledPrice
		result.VenueOrderID = venueOrderID
		if filledSize.Equal(req.Size) {
			result.Status = models.StatusFilled
		} else {
			result.Status = models.StatusPartiallyFilled
		}
	}

	// The venue side effect has already happened by this point, so a
	// persistence failure here cannot reject the call; the anomaly gets
	// its own audit row below and is noted in result.Error instead.
	result.LatencyMs = time.Since(start).Milliseconds()
	persistErr := g.persistOrder(ctx, orderID, req, result)

	if result.Success && result.FilledSize.IsPositive() {
		if recErr := g.reconcilePosition(ctx, req, result); recErr != nil {
			g.auditAnomaly(ctx, orderID, fmt.Sprintf("position reconciliation failed: %v", recErr))
		}
	}

	if persistErr != nil {
		msg := fmt.Sprintf("order persistence failed after execution: %v", persistErr)
		g.auditAnomaly(ctx, orderID, msg)
		if result.Error == "" {
			result.Error = msg
		}
	}

	g.audit(ctx, orderID, req, result)

	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

// SubmitOrder stages an order as "pending" without venue execution, used
// for staging flows. Unlike SubmitAndExecute, a persistence failure here
// rejects the call outright since there is no venue side effect yet to
// reconcile against.
func (g *Gateway) SubmitOrder(ctx context.Context, req *models.OrderRequest) *models.OrderResult {
	orderID := uuid.New()
	start := time.Now()

	result := &models.OrderResult{OrderID: orderID, Status: models.StatusPending}

	if rejected := g.checkGates(ctx, req, result); rejected {
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	result.Success = true
	result.LatencyMs = time.Since(start).Milliseconds()
	if err := g.persistOrder(ctx, orderID, req, result); err != nil {
		result.Success = false
		result.Status = models.StatusRejected
		result.Error = fmt.Sprintf("failed to persist staged order: %v", err)
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	g.audit(ctx, orderID, req, result)
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

// checkGates runs the kill-switch and book-active gates. It mutates result
// to a rejected state and returns true if either gate blocks the order.
// Both gates fail safe: an unreachable store is treated as if the unsafe
// condition held.
func (g *Gateway) checkGates(ctx context.Context, req *models.OrderRequest, result *models.OrderResult) bool {
	rows, err := g.store.Get(ctx, "global_settings", nil, []string{"global_kill_switch"})
	if err != nil || killSwitchActive(rows) {
		result.Success = false
		result.Status = models.StatusRejected
		result.Error = "Global kill switch is active"
		return true
	}

	bookRows, err := g.store.Get(ctx, "books", storage.Filter{"id": req.BookID.String()}, []string{"status"})
	if err != nil || !bookActive(bookRows) {
		result.Success = false
		result.Status = models.StatusRejected
		result.Error = "book is not active or frozen"
		return true
	}

	return false
}

func killSwitchActive(rows []storage.Row) bool {
	if len(rows) == 0 {
		// Fail safe: no settings row found is treated as active.
		return true
	}
	active, ok := rows[0]["global_kill_switch"].(bool)
	if !ok {
		return true
	}
	return active
}

func bookActive(rows []storage.Row) bool {
	if len(rows) == 0 {
		return false
	}
	status, ok := rows[0]["status"].(string)
	if !ok {
		return false
	}
	return status == models.BookActive
}

// safeExecute invokes execute, recovering from a panicking venue adapter so
// that no exception escapes the gateway.
func safeExecute(ctx context.Context, execute ExecuteFunc, req *models.OrderRequest, orderID uuid.UUID) (size decimal.Decimal, price *decimal.Decimal, venueOrderID *string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("venue adapter panicked: %v", r)
		}
	}()
	return execute(ctx, req, orderID)
}

func (g *Gateway) persistOrder(ctx context.Context, orderID uuid.UUID, req *models.OrderRequest, result *models.OrderResult) error {
	row := storage.Row{
		"id":          orderID.String(),
		"book_id":     req.BookID.String(),
		"instrument":  req.Instrument,
		"side":        string(req.Side),
		"size":        toFloat(req.Size),
		"status":      string(result.Status),
		"filled_size": toFloat(result.FilledSize),
		"venue_id":    uuidPtrToString(req.VenueID),
		"latency_ms":  result.LatencyMs,
		"created_at":  time.Now().UTC(),
		"updated_at":  time.Now().UTC(),
	}
	if req.StrategyID != nil {
		row["strategy_id"] = req.StrategyID.String()
	}
	if req.Price != nil {
		row["price"] = toFloat(*req.Price)
	}
	if result.FilledPrice != nil {
		row["filled_price"] = toFloat(*result.FilledPrice)
	}
	if result.Error != "" {
		row["error"] = result.Error
	}
	return g.store.Insert(ctx, "orders", row)
}

// reconcilePosition updates (or creates) the open position for
// (book_id, instrument). Same-side fills accumulate into a size-weighted
// entry price; opposite-side fills reduce size, closing the position when
// it crosses zero. Only ever called when result.Success and
// result.FilledSize is positive.
func (g *Gateway) reconcilePosition(ctx context.Context, req *models.OrderRequest, result *models.OrderResult) error {
	filter := storage.Filter{"book_id": req.BookID.String(), "instrument": req.Instrument, "is_open": true}
	rows, err := g.store.Get(ctx, "positions", filter, nil)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		entryPrice := decimal.Zero
		if result.FilledPrice != nil {
			entryPrice = *result.FilledPrice
		}
		return g.store.Insert(ctx, "positions", storage.Row{
			"id":          uuid.New().String(),
			"book_id":     req.BookID.String(),
			"instrument":  req.Instrument,
			"side":        string(req.Side),
			"size":        toFloat(result.FilledSize),
			"entry_price": toFloat(entryPrice),
			"mark_price":  toFloat(entryPrice),
			"is_open":     true,
			"created_at":  time.Now().UTC(),
		})
	}

	existing := rows[0]
	currentSide, _ := existing["side"].(string)
	currentSize := decimalFromAny(existing["size"])
	currentEntry := decimalFromAny(existing["entry_price"])

	fillPrice := decimal.Zero
	if result.FilledPrice != nil {
		fillPrice = *result.FilledPrice
	}

	if currentSide == string(req.Side) {
		newSize := currentSize.Add(result.FilledSize)
		newEntry := currentEntry.Mul(currentSize).Add(fillPrice.Mul(result.FilledSize)).Div(newSize)
		return g.store.Patch(ctx, "positions", filter, storage.Row{
			"size":        toFloat(newSize),
			"entry_price": toFloat(newEntry),
		})
	}

	newSize := currentSize.Sub(result.FilledSize)
	if !newSize.IsPositive() {
		return g.store.Patch(ctx, "positions", filter, storage.Row{
			"is_open": false,
			"size":    0.0,
		})
	}
	return g.store.Patch(ctx, "positions", filter, storage.Row{
		"size": toFloat(newSize),
	})
}

func (g *Gateway) audit(ctx context.Context, orderID uuid.UUID, req *models.OrderRequest, result *models.OrderResult) {
	_ = g.store.Insert(ctx, "audit_events", storage.Row{
		"action":        "order_created",
		"resource_type": "order",
		"resource_id":   orderID.String(),
		"severity":      "info",
		"created_at":    time.Now().UTC(),
		"after_state": map[string]interface{}{
			"instrument": req.Instrument,
			"side":       string(req.Side),
			"size":       toFloat(req.Size),
			"status":     string(result.Status),
			"success":    result.Success,
		},
	})
}

func (g *Gateway) auditAnomaly(ctx context.Context, orderID uuid.UUID, message string) {
	_ = g.store.Insert(ctx, "audit_events", storage.Row{
		"action":        "torn_write_detected",
		"resource_type": "order",
		"resource_id":   orderID.String(),
		"severity":      "warning",
		"created_at":    time.Now().UTC(),
		"after_state":   map[string]interface{}{"message": message},
	})
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decimalFromAny(v interface{}) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case decimal.Decimal:
		return n
	default:
		return decimal.Zero
	}
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
