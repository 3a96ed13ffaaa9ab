// Package models holds the shared domain types passed between the Order
// Gateway, the legged execution planner, and the agents that call them:
// order requests/results, positions, and the gating rows the gateway reads
// (global settings, books).
//
// Sizes and prices are github.com/shopspring/decimal values through the
// whole pipeline; conversion to float64 happens only at the persistence
// boundary, never here.
package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order or position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes market orders (no price) from limit orders
// (price required).
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order as tracked by the gateway.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusOpen            OrderStatus = "open"
	StatusFilled          OrderStatus = "filled"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRejected        OrderStatus = "rejected"
)

// OrderRequest is the gateway's input. NewOrderRequest is the only
// constructor; it enforces the validation invariants so a malformed
// request never reaches the gateway pipeline.
type OrderRequest struct {
	BookID     uuid.UUID
	StrategyID *uuid.UUID
	Instrument string
	Side       Side
	Size       decimal.Decimal
	Price      *decimal.Decimal
	OrderType  OrderType
	VenueID    *uuid.UUID
	Metadata   map[string]interface{}
}

// ValidationError reports a malformed OrderRequest, caught at construction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewOrderRequest validates and constructs an OrderRequest. Size must be
// strictly positive; limit orders require a price, market orders must not
// carry one.
func NewOrderRequest(bookID uuid.UUID, strategyID *uuid.UUID, instrument string, side Side, size decimal.Decimal, price *decimal.Decimal, orderType OrderType, venueID *uuid.UUID, metadata map[string]interface{}) (*OrderRequest, error) {
	if !size.IsPositive() {
		return nil, &ValidationError{Field: "size", Message: "must be strictly greater than zero"}
	}
	if side != SideBuy && side != SideSell {
		return nil, &ValidationError{Field: "side", Message: "must be buy or sell"}
	}
	if orderType == OrderTypeLimit && price == nil {
		return nil, &ValidationError{Field: "price", Message: "required for limit orders"}
	}
	if orderType == OrderTypeMarket && price != nil {
		return nil, &ValidationError{Field: "price", Message: "must be absent for market orders"}
	}
	if instrument == "" {
		return nil, &ValidationError{Field: "instrument", Message: "must not be empty"}
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return &OrderRequest{
		BookID:     bookID,
		StrategyID: strategyID,
		Instrument: instrument,
		Side:       side,
		Size:       size,
		Price:      price,
		OrderType:  orderType,
		VenueID:    venueID,
		Metadata:   metadata,
	}, nil
}

// OrderResult is returned from every gateway call. It is always populated;
// the gateway never raises an error to its caller.
type OrderResult struct {
	Success      bool
	OrderID      uuid.UUID
	Status       OrderStatus
	FilledSize   decimal.Decimal
	FilledPrice  *decimal.Decimal
	VenueOrderID *string
	Error        string
	LatencyMs    int64
}

// Position is the (book_id, instrument) open-position record. Only one open
// position may exist per pair at a time.
type Position struct {
	ID         uuid.UUID
	BookID     uuid.UUID
	StrategyID *uuid.UUID
	Instrument string
	Side       Side
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	MarkPrice  decimal.Decimal
	IsOpen     bool
}

// GlobalSettings is the single-row gateway gate: when GlobalKillSwitch is true,
// all writes must be rejected.
type GlobalSettings struct {
	GlobalKillSwitch bool
}

// Book is the accounting unit gating writes by its Status field.
type Book struct {
	ID     uuid.UUID
	Status string
}

// BookActive is the only status that permits gateway writes.
const BookActive = "active"

// ExecutionMode enumerates supported execution plan modes. The core only
// implements ExecutionModeLegged.
type ExecutionMode string

const ExecutionModeLegged ExecutionMode = "legged"

// Leg is one venue-specific order within a multi-leg ExecutionPlan.
type Leg struct {
	Venue      string
	Instrument string
	Side       Side
	Size       decimal.Decimal
}

// ExecutionPlan describes a multi-leg intent for the legged execution
// planner.
type ExecutionPlan struct {
	Mode                 ExecutionMode
	Legs                 []Leg
	MaxTimeBetweenLegsMs int64
	UnwindOnFail         bool
}

// Intent is the feedstock for a legged execution: the book/strategy the
// resulting orders should be attributed to.
type Intent struct {
	BookID     uuid.UUID
	StrategyID *uuid.UUID
}

// Opposite returns the reversing side used when unwinding a filled leg.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// AgentDescriptor is the registry-facing identity of a running agent:
// stable id, category label, and the bus/capability surface it exposes.
// Runtime metrics live alongside it in the agent runtime (see public/agent),
// not here, since they are in-memory counters reset only on process restart.
type AgentDescriptor struct {
	AgentID            string
	AgentType          string
	SubscribedChannels []string
	Capabilities       []string
}

// Agent type labels.
const (
	AgentTypeMetaDecision      = "meta_decision"
	AgentTypeRisk              = "risk"
	AgentTypeSignal            = "signal"
	AgentTypeExecution         = "execution"
	AgentTypeCapitalAllocation = "capital_allocation"
)

// AlertSeverity is the three-level severity of a system alert, carried on
// the alerts channel and mirrored into the alerts table.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert is the payload shape published on the alerts channel and mirrored
// into the "alerts" table.
type Alert struct {
	Severity AlertSeverity
	Title    string
	Message  string
	Source   string
}

// Payload converts the alert into the map[string]interface{} shape an
// envelope carries.
func (a Alert) Payload() map[string]interface{} {
	return map[string]interface{}{
		"severity": string(a.Severity),
		"title":    a.Title,
		"message":  a.Message,
		"source":   a.Source,
	}
}
