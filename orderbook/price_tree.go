package orderbook

import (
	"container/list"

	"github.com/shopspring/decimal"

	"clobcore/domain"
)

// listPriceTree is a HashMap + doubly linked list price index: a map from
// canonical price string to PriceLevel, plus a doubly linked list of levels
// kept in priority order so the best price is always an O(1) pointer
// dereference.
type listPriceTree struct {
	levels     map[string]*PriceLevel
	best       *PriceLevel
	descending bool // true for bids (best = highest price), false for asks
}

func newListPriceTree(descending bool) *listPriceTree {
	return &listPriceTree{
		levels:     make(map[string]*PriceLevel),
		descending: descending,
	}
}

func canonicalPriceKey(price decimal.Decimal) string {
	return price.String()
}

// isBetterPrice reports whether a has priority over b for this side: higher
// for bids, lower for asks.
func (t *listPriceTree) isBetterPrice(a, b decimal.Decimal) bool {
	if t.descending {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

func (t *listPriceTree) Insert(order *domain.Order) {
	key := canonicalPriceKey(order.Price)
	level, ok := t.levels[key]
	if !ok {
		level = &PriceLevel{Price: order.Price, Orders: list.New()}
		t.levels[key] = level
		t.insertLevel(level)
	}
	elem := level.Orders.PushBack(order)
	level.Volume = level.Volume.Add(order.Remain)
	order.ListElement = elem
}

func (t *listPriceTree) insertLevel(level *PriceLevel) {
	if t.best == nil {
		t.best = level
		return
	}
	if t.isBetterPrice(level.Price, t.best.Price) {
		level.next = t.best
		t.best.prev = level
		t.best = level
		return
	}
	cur := t.best
	for cur.next != nil && !t.isBetterPrice(level.Price, cur.next.Price) {
		cur = cur.next
	}
	level.next = cur.next
	level.prev = cur
	if cur.next != nil {
		cur.next.prev = level
	}
	cur.next = level
}

func (t *listPriceTree) removeLevel(level *PriceLevel) {
	if level.prev != nil {
		level.prev.next = level.next
	} else {
		t.best = level.next
	}
	if level.next != nil {
		level.next.prev = level.prev
	}
	level.next, level.prev = nil, nil
	delete(t.levels, canonicalPriceKey(level.Price))
}

func (t *listPriceTree) Remove(order *domain.Order) {
	key := canonicalPriceKey(order.Price)
	level, ok := t.levels[key]
	if !ok {
		return
	}
	elem, ok := order.ListElement.(*list.Element)
	if !ok || elem == nil {
		return
	}
	level.Orders.Remove(elem)
	level.Volume = level.Volume.Sub(order.Remain)
	order.ListElement = nil
	if level.Orders.Len() == 0 {
		t.removeLevel(level)
	}
}

func (t *listPriceTree) ReduceVolume(order *domain.Order, amount decimal.Decimal) {
	level, ok := t.levels[canonicalPriceKey(order.Price)]
	if !ok {
		return
	}
	level.Volume = level.Volume.Sub(amount)
}

func (t *listPriceTree) BestPrice() (decimal.Decimal, bool) {
	if t.best == nil {
		return decimal.Zero, false
	}
	return t.best.Price, true
}

func (t *listPriceTree) BestLevel() *PriceLevel {
	return t.best
}

func (t *listPriceTree) BestOrders() []*domain.Order {
	if t.best == nil {
		return nil
	}
	return levelOrders(t.best)
}

func levelOrders(level *PriceLevel) []*domain.Order {
	orders := make([]*domain.Order, 0, level.Orders.Len())
	for e := level.Orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*domain.Order))
	}
	return orders
}

func (t *listPriceTree) Level(price decimal.Decimal) *PriceLevel {
	return t.levels[canonicalPriceKey(price)]
}

func (t *listPriceTree) Depth(maxLevels int) []PriceLevel {
	out := make([]PriceLevel, 0, maxLevels)
	cur := t.best
	for cur != nil && len(out) < maxLevels {
		out = append(out, PriceLevel{Price: cur.Price, Orders: cur.Orders, Volume: cur.Volume})
		cur = cur.next
	}
	return out
}

func (t *listPriceTree) IsEmpty() bool {
	return t.best == nil
}

func (t *listPriceTree) Size() int {
	return len(t.levels)
}
