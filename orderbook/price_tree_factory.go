package orderbook

// TreeKind selects which priceTree implementation backs one side of an
// OrderBook.
type TreeKind int

const (
	// ListTreeKind is the HashMap + doubly linked list implementation.
	// Best when the number of distinct, simultaneously active price
	// levels is small (a market trading at a handful of rounded prices).
	ListTreeKind TreeKind = iota
	// RedBlackTreeKind is the red-black-tree implementation. Better
	// asymptotics when a market sees many distinct resting price levels
	// at once.
	RedBlackTreeKind
)

// newPriceTree constructs a priceTree of kind, ordered descending (bids) or
// ascending (asks). precision is the market's price_precision, used by
// RedBlackTreeKind to derive a scaled integer ordering key.
func newPriceTree(kind TreeKind, precision uint, descending bool) priceTree {
	switch kind {
	case RedBlackTreeKind:
		return newTreePriceTree(int32(precision), descending)
	default:
		return newListPriceTree(descending)
	}
}
