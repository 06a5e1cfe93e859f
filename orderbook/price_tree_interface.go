package orderbook

import (
	"container/list"

	"github.com/shopspring/decimal"

	"clobcore/domain"
)

// PriceLevel is one price bucket: every resting order at that exact price,
// in FIFO order, plus the cached sum of their remains.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders *list.List // of *domain.Order
	Volume decimal.Decimal

	next, prev *PriceLevel
}

// priceTree is the ordered index one side of an OrderBook uses: supports
// O(1) best-price access and amortized-cheap insert/remove. Two
// implementations are provided: listPriceTree (HashMap + doubly linked
// list, simplest and cheapest for a modest number of distinct price levels)
// and treePriceTree (backed by a red-black tree, better asymptotics for
// markets with many simultaneously active price levels).
type priceTree interface {
	// Insert places order into its price level, creating the level if
	// necessary.
	Insert(order *domain.Order)
	// Remove takes order out of its price level, removing the level
	// entirely if it becomes empty.
	Remove(order *domain.Order)
	// ReduceVolume decrements order's level's cached Volume by amount,
	// without touching order's own position in the level. Used when a
	// resting order is partially filled and stays in the book.
	ReduceVolume(order *domain.Order, amount decimal.Decimal)
	// BestPrice returns the best (highest bid / lowest ask) resting price.
	// ok is false if the tree is empty.
	BestPrice() (price decimal.Decimal, ok bool)
	// BestLevel returns the best price level, or nil if empty.
	BestLevel() *PriceLevel
	// BestOrders returns every order resting at the best price, in FIFO
	// order.
	BestOrders() []*domain.Order
	// Level returns the price level at price, or nil if there are no
	// resting orders there.
	Level(price decimal.Decimal) *PriceLevel
	// Depth returns up to maxLevels price levels starting from the best
	// price, in priority order.
	Depth(maxLevels int) []PriceLevel
	// IsEmpty reports whether the tree has no resting orders.
	IsEmpty() bool
	// Size returns the number of distinct price levels.
	Size() int
}
