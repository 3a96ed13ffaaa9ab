package gateway

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/internal/storage"
)

func newActiveBookFixture(t *testing.T, store *storage.MemoryAdapter, bookID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if err := store.Insert(ctx, "global_settings", storage.Row{"global_kill_switch": false}); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
	if err := store.Insert(ctx, "books", storage.Row{"id": bookID.String(), "status": models.BookActive}); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
}

func fillAt(price float64) ExecuteFunc {
	return func(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (decimal.Decimal, *decimal.Decimal, *string, error) {
		p := decimal.NewFromFloat(price)
		venueID := "venue-order-1"
		return req.Size, &p, &venueID, nil
	}
}

func TestKillSwitchBlocksOrder(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	_ = store.Insert(ctx, "global_settings", storage.Row{"global_kill_switch": true})
	_ = store.Insert(ctx, "books", storage.Row{"id": bookID.String(), "status": models.BookActive})

	gw := New(store)
	req, err := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	result := gw.SubmitAndExecute(ctx, req, fillAt(50000))
	if result.Success {
		t.Fatal("expected order rejected by kill switch")
	}
	if result.Status != models.StatusRejected {
		t.Errorf("expected rejected status, got %s", result.Status)
	}
	if len(store.Rows("orders")) != 0 {
		t.Error("expected no order row persisted when kill switch blocks")
	}
}

func TestInactiveBookBlocksOrder(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	_ = store.Insert(ctx, "global_settings", storage.Row{"global_kill_switch": false})
	_ = store.Insert(ctx, "books", storage.Row{"id": bookID.String(), "status": "frozen"})

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)

	result := gw.SubmitAndExecute(ctx, req, fillAt(50000))
	if result.Success {
		t.Fatal("expected order rejected by inactive book gate")
	}
}

func TestUnreachableSettingsStoreFailsSafe(t *testing.T) {
	store := storage.NewMemoryAdapter()
	store.FailGet["global_settings"] = true
	ctx := context.Background()
	bookID := uuid.New()
	_ = store.Insert(ctx, "books", storage.Row{"id": bookID.String(), "status": models.BookActive})

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)

	result := gw.SubmitAndExecute(ctx, req, fillAt(50000))
	if result.Success {
		t.Fatal("expected an unreachable settings store to reject the order, not allow it")
	}
}

func TestSuccessfulFillCreatesOrderPositionAndAudit(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(2), nil, models.OrderTypeMarket, nil, nil)

	result := gw.SubmitAndExecute(ctx, req, fillAt(50000))
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Status != models.StatusFilled {
		t.Errorf("expected filled status, got %s", result.Status)
	}

	orders := store.Rows("orders")
	if len(orders) != 1 {
		t.Fatalf("expected 1 order row, got %d", len(orders))
	}

	positions := store.Rows("positions")
	if len(positions) != 1 {
		t.Fatalf("expected 1 position row, got %d", len(positions))
	}
	if positions[0]["size"] != 2.0 {
		t.Errorf("expected position size 2.0, got %v", positions[0]["size"])
	}

	audits := store.Rows("audit_events")
	if len(audits) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audits))
	}
}

func TestWeightedAverageEntryPriceOnSameSideAccumulation(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)

	req1, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, req1, fillAt(3000))

	req2, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideBuy, decimal.NewFromInt(3), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, req2, fillAt(4000))

	positions := store.Rows("positions")
	if len(positions) != 1 {
		t.Fatalf("expected single position row after two fills, got %d", len(positions))
	}
	// (1*3000 + 3*4000) / 4 = 3750
	if got := positions[0]["entry_price"]; got != 3750.0 {
		t.Errorf("expected weighted average entry price 3750, got %v", got)
	}
	if got := positions[0]["size"]; got != 4.0 {
		t.Errorf("expected accumulated size 4.0, got %v", got)
	}
}

func TestOppositeSideFillReducesPosition(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)

	open, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideBuy, decimal.NewFromInt(5), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, open, fillAt(3000))

	reduce, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideSell, decimal.NewFromInt(2), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, reduce, fillAt(3200))

	positions := store.Rows("positions")
	if len(positions) != 1 {
		t.Fatalf("expected single position row, got %d", len(positions))
	}
	if got := positions[0]["size"]; got != 3.0 {
		t.Errorf("expected reduced size 3.0, got %v", got)
	}
	if got := positions[0]["is_open"]; got != true {
		t.Errorf("expected position to remain open, got %v", got)
	}
}

func TestOppositeSideFillClosesPositionWhenFullyReduced(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)

	open, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideBuy, decimal.NewFromInt(2), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, open, fillAt(3000))

	close, _ := models.NewOrderRequest(bookID, nil, "ETH-USD", models.SideSell, decimal.NewFromInt(2), nil, models.OrderTypeMarket, nil, nil)
	gw.SubmitAndExecute(ctx, close, fillAt(3200))

	positions := store.Rows("positions")
	if positions[0]["is_open"] != false {
		t.Errorf("expected position to be closed, got is_open=%v", positions[0]["is_open"])
	}
}

func TestVenueErrorRejectsButStillPersistsOrder(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)

	failingVenue := func(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (decimal.Decimal, *decimal.Decimal, *string, error) {
		return decimal.Zero, nil, nil, errVenueUnavailable
	}

	result := gw.SubmitAndExecute(ctx, req, failingVenue)
	if result.Success {
		t.Fatal("expected rejection on venue error")
	}
	orders := store.Rows("orders")
	if len(orders) != 1 {
		t.Fatalf("expected the rejected order to still be persisted, got %d rows", len(orders))
	}
	if orders[0]["status"] != string(models.StatusRejected) {
		t.Errorf("expected persisted status rejected, got %v", orders[0]["status"])
	}
	if len(store.Rows("positions")) != 0 {
		t.Error("expected no position reconciliation on a rejected fill")
	}
}

func TestVenuePanicIsRecoveredAsRejection(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)

	panicking := func(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (decimal.Decimal, *decimal.Decimal, *string, error) {
		panic("venue socket closed")
	}

	result := gw.SubmitAndExecute(ctx, req, panicking)
	if result.Success {
		t.Fatal("expected a panicking venue adapter to resolve as a rejected result, not propagate")
	}
}

func TestSubmitOrderStagesWithoutExecution(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	bookID := uuid.New()
	newActiveBookFixture(t, store, bookID)

	gw := New(store)
	req, _ := models.NewOrderRequest(bookID, nil, "BTC-USD", models.SideBuy, decimal.NewFromInt(1), nil, models.OrderTypeMarket, nil, nil)

	result := gw.SubmitOrder(ctx, req)
	if !result.Success || result.Status != models.StatusPending {
		t.Fatalf("expected staged pending order, got success=%v status=%s", result.Success, result.Status)
	}
	if len(store.Rows("positions")) != 0 {
		t.Error("expected SubmitOrder to never reconcile a position")
	}
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errVenueUnavailable = sentinelError("venue unavailable")
