package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies whether a trade participant was the maker or the taker.
type Role int

const (
	RoleMaker Role = iota
	RoleTaker
)

func (r Role) String() string {
	if r == RoleTaker {
		return "TAKER"
	}
	return "MAKER"
}

// OrderSnapshot is the embedded copy of an order's constant fields (id, user,
// amount, price), attached to a Trade only for an order that had no fill
// before that trade (its FinishedBase was still zero).
type OrderSnapshot struct {
	ID     uint64
	UserID uint32
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// ParticipantState captures one side's finished_* totals and ledger totals,
// before and after a trade, for diagnostic/verbose event payloads.
type ParticipantState struct {
	FinishedBase  decimal.Decimal
	FinishedQuote decimal.Decimal
	FinishedFee   decimal.Decimal
	Base          decimal.Decimal
	Quote         decimal.Decimal
}

// VerboseTradeState is the diagnostic before/after capture attached to
// every Trade; callers that don't need it simply ignore the field.
type VerboseTradeState struct {
	AskBefore ParticipantState
	AskAfter  ParticipantState
	BidBefore ParticipantState
	BidAfter  ParticipantState
}

// Trade is one match between a taker and a resting maker.
type Trade struct {
	ID         uint64
	Timestamp  time.Time
	Market     string
	Base       string
	Quote      string
	Price      decimal.Decimal
	BaseAmount decimal.Decimal
	QuoteAmount decimal.Decimal

	AskUserID  uint32
	AskOrderID uint64
	AskRole    Role
	AskFee     decimal.Decimal

	BidUserID  uint32
	BidOrderID uint64
	BidRole    Role
	BidFee     decimal.Decimal

	// AskNew/BidNew are populated only for the side that was new-this-trade.
	AskNew *OrderSnapshot
	BidNew *OrderSnapshot

	Verbose VerboseTradeState
}

var tradePool = sync.Pool{
	New: func() any { return &Trade{} },
}

// AcquireTrade returns a zeroed Trade from the pool.
func AcquireTrade() *Trade {
	return tradePool.Get().(*Trade)
}

// ReleaseTrade resets a Trade and returns it to the pool. Only call this once
// every consumer (sinks, callers) is done with the Trade; the matching engine
// releases trades after they've been handed to the sink, since sinks receive
// a value copy via Clone, not the pooled pointer.
func ReleaseTrade(t *Trade) {
	t.Reset()
	tradePool.Put(t)
}

func (t *Trade) Reset() {
	*t = Trade{}
}

// Clone returns a value copy safe to hand to a caller or event sink.
func (t *Trade) Clone() Trade {
	return *t
}
