// Package eventsink defines the outbound event contract the matching engine
// uses (EventSink) and ships a small number of in-tree reference
// implementations for testing. Concrete production sinks (Kafka, file,
// database-backed) are external collaborators and live outside this
// module.
package eventsink

import (
	"sync"

	"go.uber.org/zap"

	"clobcore/domain"
)

// EventSink is the outbound contract the matching engine calls into. All
// methods are void by contract: a sink that cannot process an event must
// panic rather than silently drop it, since failure here is a fatal
// invariant violation, not ordinary back-pressure.
type EventSink interface {
	// ServiceAvailable reports whether upstream callers should keep
	// submitting orders. It is a back-pressure signal, not an error.
	ServiceAvailable() bool
	// RealPersist governs whether BalanceUpdateController assembles and
	// emits a BalanceHistory at all.
	RealPersist() bool

	PutOrder(order domain.Order, eventType domain.OrderEventType)
	PutTrade(trade domain.Trade)
	PutBalance(h domain.BalanceHistory)
	PutDeposit(h domain.BalanceHistory)
	PutWithdraw(h domain.BalanceHistory)
	PutTransfer(tx domain.InternalTx)
	RegisterUser(desc domain.AccountDesc)
}

// NoopSink discards every event. RealPersist is false, so the controller
// never spends time assembling BalanceHistory values for it.
type NoopSink struct{}

func (NoopSink) ServiceAvailable() bool                       { return true }
func (NoopSink) RealPersist() bool                            { return false }
func (NoopSink) PutOrder(domain.Order, domain.OrderEventType) {}
func (NoopSink) PutTrade(domain.Trade)                        {}
func (NoopSink) PutBalance(domain.BalanceHistory)             {}
func (NoopSink) PutDeposit(domain.BalanceHistory)             {}
func (NoopSink) PutWithdraw(domain.BalanceHistory)            {}
func (NoopSink) PutTransfer(domain.InternalTx)                {}
func (NoopSink) RegisterUser(domain.AccountDesc)              {}

// MemorySink records every event it receives, in order, for test
// assertions. Safe for concurrent use, though in practice a single market's
// single writer goroutine is its only caller.
type MemorySink struct {
	mu        sync.Mutex
	Orders    []OrderEvent
	Trades    []domain.Trade
	Balances  []domain.BalanceHistory
	Deposits  []domain.BalanceHistory
	Withdraws []domain.BalanceHistory
	Transfers []domain.InternalTx
	Users     []domain.AccountDesc
}

// OrderEvent pairs an order snapshot with the lifecycle event it was
// emitted under.
type OrderEvent struct {
	Order domain.Order
	Type  domain.OrderEventType
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) ServiceAvailable() bool { return true }
func (s *MemorySink) RealPersist() bool      { return true }

func (s *MemorySink) PutOrder(order domain.Order, eventType domain.OrderEventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Orders = append(s.Orders, OrderEvent{Order: order, Type: eventType})
}

func (s *MemorySink) PutTrade(trade domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trades = append(s.Trades, trade)
}

func (s *MemorySink) PutBalance(h domain.BalanceHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Balances = append(s.Balances, h)
}

func (s *MemorySink) PutDeposit(h domain.BalanceHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deposits = append(s.Deposits, h)
}

func (s *MemorySink) PutWithdraw(h domain.BalanceHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Withdraws = append(s.Withdraws, h)
}

func (s *MemorySink) PutTransfer(tx domain.InternalTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transfers = append(s.Transfers, tx)
}

func (s *MemorySink) RegisterUser(desc domain.AccountDesc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users = append(s.Users, desc)
}

// CompositeSink broadcasts every call to all members. Composite sinks must
// not silently swallow a member's failure: if a member's method panics, the
// panic propagates out of the composite call rather than being recovered,
// per the fatal-invariant-violation contract.
type CompositeSink struct {
	members []EventSink
	log     *zap.Logger
}

// NewCompositeSink constructs a CompositeSink broadcasting to members in order.
func NewCompositeSink(log *zap.Logger, members ...EventSink) *CompositeSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompositeSink{members: members, log: log}
}

// ServiceAvailable is the AND of all members' ServiceAvailable results: the
// composite can only accept load if every member can.
func (c *CompositeSink) ServiceAvailable() bool {
	for _, m := range c.members {
		if !m.ServiceAvailable() {
			return false
		}
	}
	return true
}

// RealPersist is the OR of all members' RealPersist results: if any member
// actually persists, the controller must build the BalanceHistory payload.
func (c *CompositeSink) RealPersist() bool {
	for _, m := range c.members {
		if m.RealPersist() {
			return true
		}
	}
	return false
}

func (c *CompositeSink) PutOrder(order domain.Order, eventType domain.OrderEventType) {
	for _, m := range c.members {
		m.PutOrder(order, eventType)
	}
}

func (c *CompositeSink) PutTrade(trade domain.Trade) {
	for _, m := range c.members {
		m.PutTrade(trade)
	}
}

func (c *CompositeSink) PutBalance(h domain.BalanceHistory) {
	for _, m := range c.members {
		m.PutBalance(h)
	}
}

func (c *CompositeSink) PutDeposit(h domain.BalanceHistory) {
	for _, m := range c.members {
		m.PutDeposit(h)
	}
}

func (c *CompositeSink) PutWithdraw(h domain.BalanceHistory) {
	for _, m := range c.members {
		m.PutWithdraw(h)
	}
}

func (c *CompositeSink) PutTransfer(tx domain.InternalTx) {
	for _, m := range c.members {
		m.PutTransfer(tx)
	}
}

func (c *CompositeSink) RegisterUser(desc domain.AccountDesc) {
	for _, m := range c.members {
		m.RegisterUser(desc)
	}
}
