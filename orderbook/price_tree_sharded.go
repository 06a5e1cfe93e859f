package orderbook

import (
	"container/list"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/shopspring/decimal"

	"clobcore/domain"
)

// treePriceTree is a red-black-tree-backed price index, keyed by a scaled
// int64 derived from the market's price precision: a price already rounded
// to price_precision shifts to an exact integer, so the scaled key preserves
// price ordering exactly. The comparator is direction-aware (reversed for
// bids), so the tree's leftmost node is always the best price and forward
// iteration always walks priority order.
type treePriceTree struct {
	tree       *rbt.Tree[int64, *PriceLevel]
	precision  int32
	descending bool
	best       *PriceLevel // cached, invalidated on structural change
	bestValid  bool
}

func newTreePriceTree(precision int32, descending bool) *treePriceTree {
	var comparator func(a, b int64) int
	if descending {
		comparator = func(a, b int64) int {
			if a > b {
				return -1
			} else if a < b {
				return 1
			}
			return 0
		}
	} else {
		comparator = func(a, b int64) int {
			if a < b {
				return -1
			} else if a > b {
				return 1
			}
			return 0
		}
	}
	return &treePriceTree{
		tree:       rbt.NewWith[int64, *PriceLevel](comparator),
		precision:  precision,
		descending: descending,
	}
}

func (t *treePriceTree) scaledKey(price decimal.Decimal) int64 {
	return price.Shift(t.precision).IntPart()
}

func (t *treePriceTree) Insert(order *domain.Order) {
	key := t.scaledKey(order.Price)
	level, found := t.tree.Get(key)
	if !found {
		level = &PriceLevel{Price: order.Price, Orders: list.New()}
		t.tree.Put(key, level)
	}
	elem := level.Orders.PushBack(order)
	level.Volume = level.Volume.Add(order.Remain)
	order.ListElement = elem
	t.bestValid = false
}

func (t *treePriceTree) Remove(order *domain.Order) {
	key := t.scaledKey(order.Price)
	level, found := t.tree.Get(key)
	if !found {
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
		t.tree.Remove(key)
	}
	t.bestValid = false
}

func (t *treePriceTree) ReduceVolume(order *domain.Order, amount decimal.Decimal) {
	level, found := t.tree.Get(t.scaledKey(order.Price))
	if !found {
		return
	}
	level.Volume = level.Volume.Sub(amount)
}

func (t *treePriceTree) refreshBest() {
	if t.bestValid {
		return
	}
	node := t.tree.Left()
	if node == nil {
		t.best = nil
	} else {
		t.best = node.Value
	}
	t.bestValid = true
}

func (t *treePriceTree) BestPrice() (decimal.Decimal, bool) {
	t.refreshBest()
	if t.best == nil {
		return decimal.Zero, false
	}
	return t.best.Price, true
}

func (t *treePriceTree) BestLevel() *PriceLevel {
	t.refreshBest()
	return t.best
}

func (t *treePriceTree) BestOrders() []*domain.Order {
	t.refreshBest()
	if t.best == nil {
		return nil
	}
	return levelOrders(t.best)
}

func (t *treePriceTree) Level(price decimal.Decimal) *PriceLevel {
	level, _ := t.tree.Get(t.scaledKey(price))
	return level
}

func (t *treePriceTree) Depth(maxLevels int) []PriceLevel {
	out := make([]PriceLevel, 0, maxLevels)
	it := t.tree.Iterator()
	for it.Next() && len(out) < maxLevels {
		level := it.Value()
		out = append(out, PriceLevel{Price: level.Price, Orders: level.Orders, Volume: level.Volume})
	}
	return out
}

func (t *treePriceTree) IsEmpty() bool {
	return t.tree.Size() == 0
}

func (t *treePriceTree) Size() int {
	return t.tree.Size()
}
