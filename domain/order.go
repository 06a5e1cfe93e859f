package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Side is which side of the book an order rests on.
type Side int

const (
	SideAsk Side = iota
	SideBid
)

func (s Side) String() string {
	if s == SideBid {
		return "BID"
	}
	return "ASK"
}

// OrderType distinguishes resting LIMIT orders from immediate-or-terminal MARKET orders.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	if t == OrderTypeMarket {
		return "MARKET"
	}
	return "LIMIT"
}

// OrderEventType is the lifecycle event delivered to an EventSink for an order.
type OrderEventType int

const (
	OrderEventPut OrderEventType = iota
	OrderEventUpdate
	OrderEventFinish
	OrderEventExpired
)

func (t OrderEventType) String() string {
	switch t {
	case OrderEventPut:
		return "PUT"
	case OrderEventUpdate:
		return "UPDATE"
	case OrderEventFinish:
		return "FINISH"
	case OrderEventExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// OrderInput is the gateway-facing request to place one order, per the external interface contract.
type OrderInput struct {
	UserID     uint32
	Side       Side
	Type       OrderType
	Amount     decimal.Decimal
	Price      decimal.Decimal // zero for MARKET
	QuoteLimit decimal.Decimal // MARKET BID only; zero means "use full AVAILABLE"
	TakerFee   decimal.Decimal
	MakerFee   decimal.Decimal
	Market     string
	PostOnly   bool
	Signature  [64]byte
}

// Order is a single resting or terminal order. Fields are split into a constant
// half (set once at acceptance) and a mutable half (updated on every fill).
//
// ListElement is the orderbook package's bookkeeping (the price-ordered
// index's back-pointer for O(1) removal). Only orderbook writes it; IsResting
// and the matching engine read it to tell whether the order rests in the book.
type Order struct {
	// Constant after creation.
	ID           uint64
	Market       string
	Base         string
	Quote        string
	Type         OrderType
	Side         Side
	UserID       uint32
	PostOnly     bool
	Signature    [64]byte
	Price        decimal.Decimal // zero for MARKET
	Amount       decimal.Decimal
	MakerFeeRate decimal.Decimal
	TakerFeeRate decimal.Decimal
	CreateTime   time.Time

	// Mutable.
	Remain        decimal.Decimal
	Frozen        decimal.Decimal
	FinishedBase  decimal.Decimal
	FinishedQuote decimal.Decimal
	FinishedFee   decimal.Decimal
	UpdateTime    time.Time

	// ListElement is set when orderbook.OrderBook.Insert places the order in
	// a price level and cleared by OrderBook.Remove.
	ListElement interface{}
}

var orderPool = sync.Pool{
	New: func() any { return &Order{} },
}

// AcquireOrder returns a zeroed Order from the pool, ready to be populated.
func AcquireOrder() *Order {
	return orderPool.Get().(*Order)
}

// ReleaseOrder resets an Order and returns it to the pool. Callers must not
// retain any reference to o after calling this, including via ListElement.
func ReleaseOrder(o *Order) {
	o.Reset()
	orderPool.Put(o)
}

// Reset zeroes every field, relying on the compiler's DUFFZERO-style struct
// clear rather than a field-by-field assignment.
func (o *Order) Reset() {
	*o = Order{}
}

// IsResting reports whether the order currently occupies book space.
func (o *Order) IsResting() bool {
	return o.Type == OrderTypeLimit && !o.Remain.IsZero() && o.ListElement != nil
}

// IsFinished reports whether the order has no remaining quantity.
func (o *Order) IsFinished() bool {
	return o.Remain.IsZero()
}

// Clone returns a value copy suitable for handing to a caller or an event
// sink without exposing the engine's live, mutable Order.
func (o *Order) Clone() Order {
	return *o
}
