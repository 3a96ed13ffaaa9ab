package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewOrderRequestRejectsZeroSize(t *testing.T) {
	_, err := NewOrderRequest(uuid.New(), nil, "BTC-USD", SideBuy, decimal.Zero, nil, OrderTypeMarket, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for zero size")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Field != "size" {
		t.Errorf("expected field 'size', got %q", ve.Field)
	}
}

func TestNewOrderRequestRejectsNegativeSize(t *testing.T) {
	_, err := NewOrderRequest(uuid.New(), nil, "BTC-USD", SideBuy, decimal.NewFromInt(-1), nil, OrderTypeMarket, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for negative size")
	}
}

func TestNewOrderRequestLimitRequiresPrice(t *testing.T) {
	size := decimal.NewFromFloat(0.1)
	_, err := NewOrderRequest(uuid.New(), nil, "BTC-USD", SideBuy, size, nil, OrderTypeLimit, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for limit order without price")
	}
}

func TestNewOrderRequestMarketRejectsPrice(t *testing.T) {
	size := decimal.NewFromFloat(0.1)
	price := decimal.NewFromInt(50000)
	_, err := NewOrderRequest(uuid.New(), nil, "BTC-USD", SideBuy, size, &price, OrderTypeMarket, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for market order carrying a price")
	}
}

func TestNewOrderRequestValid(t *testing.T) {
	size := decimal.NewFromFloat(0.1)
	price := decimal.NewFromInt(50000)
	req, err := NewOrderRequest(uuid.New(), nil, "BTC-USD", SideBuy, size, &price, OrderTypeLimit, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Metadata == nil {
		t.Error("expected metadata to default to empty map")
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("expected opposite of buy to be sell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("expected opposite of sell to be buy")
	}
}
