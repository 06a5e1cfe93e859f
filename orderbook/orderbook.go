// Package orderbook implements the two price-time priority indices
// (asks ascending, bids descending) plus the id→order and
// user_id→(id→order) maps that back one market's resting orders.
package orderbook

import (
	"github.com/shopspring/decimal"

	"clobcore/domain"
)

// Status is the result of sweeping one side of the book.
type Status struct {
	OrderCount int
	RemainSum  decimal.Decimal
}

// OrderBook is a pure container: it holds no matching logic, no balances,
// no event emission. It is lock-free by convention, not by synchronization:
// exactly one goroutine (the owning market's matching goroutine) ever
// touches it.
type OrderBook struct {
	market    string
	kind      TreeKind
	precision uint

	asks priceTree // ascending price
	bids priceTree // descending price

	orders map[uint64]*domain.Order
	users  map[uint32]map[uint64]*domain.Order

	tradeCount uint64
}

// New constructs an empty OrderBook for market, using kind to pick the
// underlying price index implementation and precision as the price
// precision for RedBlackTreeKind's scaled integer key.
func New(market string, kind TreeKind, precision uint) *OrderBook {
	return &OrderBook{
		market:    market,
		kind:      kind,
		precision: precision,
		asks:      newPriceTree(kind, precision, false),
		bids:      newPriceTree(kind, precision, true),
		orders:    make(map[uint64]*domain.Order),
		users:     make(map[uint32]map[uint64]*domain.Order),
	}
}

func (ob *OrderBook) sideTree(side domain.Side) priceTree {
	if side == domain.SideBid {
		return ob.bids
	}
	return ob.asks
}

// counterSideTree returns the tree holding potential counterparties for an
// incoming order on side.
func (ob *OrderBook) counterSideTree(side domain.Side) priceTree {
	if side == domain.SideBid {
		return ob.asks
	}
	return ob.bids
}

// Insert places a LIMIT order into the book's id map, user map, and the
// appropriate side index. The caller must ensure order.Type == LIMIT.
func (ob *OrderBook) Insert(order *domain.Order) {
	ob.orders[order.ID] = order
	userOrders, ok := ob.users[order.UserID]
	if !ok {
		userOrders = make(map[uint64]*domain.Order)
		ob.users[order.UserID] = userOrders
	}
	userOrders[order.ID] = order
	ob.sideTree(order.Side).Insert(order)
}

// Remove takes order out of all four indices.
func (ob *OrderBook) Remove(order *domain.Order) {
	ob.sideTree(order.Side).Remove(order)
	delete(ob.orders, order.ID)
	if userOrders, ok := ob.users[order.UserID]; ok {
		delete(userOrders, order.ID)
		if len(userOrders) == 0 {
			delete(ob.users, order.UserID)
		}
	}
}

// Fill reduces a resting order's Remain by amount and keeps its price
// level's cached Volume in sync. Only call this for an order that is
// currently resting (i.e. already Inserted); a taker that hasn't been
// inserted yet has no level to adjust and should have its Remain mutated
// directly instead.
func (ob *OrderBook) Fill(order *domain.Order, amount decimal.Decimal) {
	ob.sideTree(order.Side).ReduceVolume(order, amount)
	order.Remain = order.Remain.Sub(amount)
}

// Get returns the order with id, if resting.
func (ob *OrderBook) Get(id uint64) (*domain.Order, bool) {
	o, ok := ob.orders[id]
	return o, ok
}

// OrdersOf returns every order currently resting for userID. The returned
// slice is a snapshot: safe to range over while cancelling each order.
func (ob *OrderBook) OrdersOf(userID uint32) []*domain.Order {
	userOrders, ok := ob.users[userID]
	if !ok {
		return nil
	}
	out := make([]*domain.Order, 0, len(userOrders))
	for _, o := range userOrders {
		out = append(out, o)
	}
	return out
}

// CountOfUser returns how many orders userID currently has resting.
func (ob *OrderBook) CountOfUser(userID uint32) int {
	return len(ob.users[userID])
}

// BestAsk returns the lowest resting ask price.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	return ob.asks.BestPrice()
}

// BestBid returns the highest resting bid price.
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	return ob.bids.BestPrice()
}

// CounterSideEmpty reports whether the opposite side of side has no resting
// orders at all. MARKET orders are rejected against an empty counter side.
func (ob *OrderBook) CounterSideEmpty(side domain.Side) bool {
	return ob.counterSideTree(side).IsEmpty()
}

// counterSideIterator yields opposing orders for an incoming order on side,
// in priority order, re-reading the live tree each time a level is exhausted
// so that in-loop removals are reflected. A level whose orders were all
// yielded but are still resting is not walked again.
type counterSideIterator struct {
	tree      priceTree
	current   []*domain.Order
	idx       int
	lastPrice decimal.Decimal // price of the level current was read from
}

// IterateCounterSide returns an iterator over the book's opposite side to
// side, yielding one order at a time in priority order. Call Next
// repeatedly; it re-reads the live book each time an exhausted level is
// crossed, so makers removed mid-match by the caller are never revisited.
func (ob *OrderBook) IterateCounterSide(side domain.Side) *counterSideIterator {
	return &counterSideIterator{tree: ob.counterSideTree(side)}
}

// Next returns the next counterparty order, or nil if the counter side is
// exhausted.
func (it *counterSideIterator) Next() *domain.Order {
	for it.idx >= len(it.current) {
		level := it.tree.BestLevel()
		if level != nil && it.current != nil && it.tree.Level(it.lastPrice) != nil {
			// The level just walked is still in the book (its orders were
			// yielded but not removed): continue with the level after it.
			level = nil
			levels := it.tree.Depth(it.tree.Size())
			for i := 0; i+1 < len(levels); i++ {
				if levels[i].Price.Equal(it.lastPrice) {
					level = &levels[i+1]
					break
				}
			}
		}
		if level == nil {
			return nil
		}
		it.current = levelOrders(level)
		it.lastPrice = level.Price
		it.idx = 0
		if len(it.current) == 0 {
			// Level is present but empty only transiently; bail to avoid
			// looping forever if the tree didn't prune it.
			return nil
		}
	}
	o := it.current[it.idx]
	it.idx++
	return o
}

// Depth groups orders into at most limit price buckets. If interval is zero,
// buckets are exact prices (one bucket per distinct resting price). A
// nonzero interval buckets by ceil(price/interval)*interval on the ask side
// and floor(price/interval)*interval on the bid side.
func (ob *OrderBook) Depth(limit int, interval decimal.Decimal) (bids, asks []PriceLevel) {
	bids = bucketSide(ob.bids, limit, interval, true)
	asks = bucketSide(ob.asks, limit, interval, false)
	return bids, asks
}

func bucketSide(tree priceTree, limit int, interval decimal.Decimal, isBid bool) []PriceLevel {
	if interval.IsZero() {
		return tree.Depth(limit)
	}
	levels := tree.Depth(limit * 64) // overscan raw levels before re-bucketing; bounded by the book's size in practice
	buckets := make(map[string]*PriceLevel)
	order := make([]string, 0, limit)
	for _, lv := range levels {
		bucketPrice := bucketPrice(lv.Price, interval, isBid)
		key := canonicalPriceKey(bucketPrice)
		b, ok := buckets[key]
		if !ok {
			b = &PriceLevel{Price: bucketPrice}
			buckets[key] = b
			order = append(order, key)
		}
		b.Volume = b.Volume.Add(lv.Volume)
	}
	out := make([]PriceLevel, 0, len(order))
	for _, key := range order {
		if len(out) >= limit {
			break
		}
		out = append(out, *buckets[key])
	}
	return out
}

func bucketPrice(price, interval decimal.Decimal, isBid bool) decimal.Decimal {
	quotient := price.Div(interval)
	if isBid {
		return quotient.Floor().Mul(interval)
	}
	return quotient.Ceil().Mul(interval)
}

// Status sweeps one side, returning its order count and summed remains.
func (ob *OrderBook) Status(side domain.Side) Status {
	tree := ob.sideTree(side)
	var st Status
	for _, lv := range tree.Depth(tree.Size()) {
		st.OrderCount += lv.Orders.Len()
		st.RemainSum = st.RemainSum.Add(lv.Volume)
	}
	return st
}

// TradeCount returns the cumulative number of trades this book has produced.
func (ob *OrderBook) TradeCount() uint64 { return ob.tradeCount }

// RecordTrade increments the cumulative trade counter. Called once per
// trade by the matching engine.
func (ob *OrderBook) RecordTrade() { ob.tradeCount++ }

// Reset clears the book entirely. Balances are untouched: callers are
// responsible for unfreezing any resting orders' locked balance before
// calling Reset, if that's the desired semantics.
func (ob *OrderBook) Reset() {
	ob.asks = newPriceTree(ob.kind, ob.precision, false)
	ob.bids = newPriceTree(ob.kind, ob.precision, true)
	ob.orders = make(map[uint64]*domain.Order)
	ob.users = make(map[uint32]map[uint64]*domain.Order)
	ob.tradeCount = 0
}
