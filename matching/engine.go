// Package matching implements the per-market matching engine: validating
// and executing one order against a resting book, producing fills, updating
// balances via a BalanceUpdateController, and emitting lifecycle events.
package matching

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clobcore/domain"
	"clobcore/eventsink"
	"clobcore/ledger"
	"clobcore/orderbook"
	"clobcore/sequencer"
)

// Engine is the pure, single-threaded matching algorithm for one market. It
// is not safe for concurrent use: exactly one goroutine may call its
// methods at a time, which in production is the Worker goroutine in
// queue.go. Tests call Engine's methods directly, with no goroutine
// machinery at all.
type Engine struct {
	market     *domain.Market
	registry   *domain.AssetRegistry
	book       *orderbook.OrderBook
	ledger     *ledger.Ledger
	controller *ledger.UpdateController
	seq        *sequencer.Sequencer
	sink       eventsink.EventSink
	settings   domain.GlobalSettings
	log        *zap.Logger
}

// NewEngine constructs an Engine for market, wiring in the shared registry
// and ledger, this market's own controller and sequencer (per the
// single-writer-per-market model), the sink events are delivered to, and
// the process-wide policy switches.
func NewEngine(
	market *domain.Market,
	registry *domain.AssetRegistry,
	led *ledger.Ledger,
	controller *ledger.UpdateController,
	seq *sequencer.Sequencer,
	sink eventsink.EventSink,
	settings domain.GlobalSettings,
	bookKind orderbook.TreeKind,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		market:     market,
		registry:   registry,
		book:       orderbook.New(market.Name, bookKind, market.PricePrecision),
		ledger:     led,
		controller: controller,
		seq:        seq,
		sink:       sink,
		settings:   settings,
		log:        log,
	}
}

// Book exposes the market's order book for read-only queries (depth,
// status). Matching itself only ever runs through PutOrder/Cancel.
func (e *Engine) Book() *orderbook.OrderBook { return e.book }

// Market returns the market this engine services.
func (e *Engine) Market() *domain.Market { return e.market }

// validate runs the put-order preconditions in their fixed order,
// returning the first failure. It never mutates state.
func (e *Engine) validate(in domain.OrderInput) error {
	if in.Type == domain.OrderTypeMarket && e.settings.DisableMarketOrder {
		return domain.NewError(domain.KindMarketOrdersDisabled, "market %s", e.market.Name)
	}
	if in.Amount.LessThan(e.market.MinAmount) {
		return domain.NewError(domain.KindAmountTooSmall, "amount %s below min_amount %s", in.Amount, e.market.MinAmount)
	}
	if e.market.FeePrecision == 0 && (!in.TakerFee.IsZero() || !in.MakerFee.IsZero()) {
		return domain.NewError(domain.KindFeeNotAllowed, "market %s has fee_precision 0", e.market.Name)
	}
	if !e.market.RoundAmount(in.Amount).Equal(in.Amount) {
		return domain.NewError(domain.KindInvalidAmountPrecision, "amount %s not expressible at precision %d", in.Amount, e.market.AmountPrecision)
	}
	if in.Type == domain.OrderTypeLimit {
		if !e.market.RoundPrice(in.Price).Equal(in.Price) {
			return domain.NewError(domain.KindInvalidPricePrecision, "price %s not expressible at precision %d", in.Price, e.market.PricePrecision)
		}
	}
	if in.Type == domain.OrderTypeMarket {
		if !in.Price.IsZero() {
			return domain.NewError(domain.KindMarketOrderHasPrice, "MARKET order must have zero price")
		}
		if in.PostOnly {
			return domain.NewError(domain.KindMarketPostOnly, "MARKET order cannot be post_only")
		}
		if e.book.CounterSideEmpty(in.Side) {
			return domain.NewError(domain.KindNoCounterOrders, "no resting counter-side orders for market %s", e.market.Name)
		}
	} else if in.Price.IsZero() {
		return domain.NewError(domain.KindInvalidLimitPrice, "LIMIT order must have nonzero price")
	}

	switch {
	case in.Side == domain.SideAsk:
		if e.ledger.Get(in.UserID, domain.BucketAvailable, e.market.Base).LessThan(in.Amount) {
			return domain.NewError(domain.KindBalanceNotEnough, "insufficient %s available", e.market.Base)
		}
	case in.Type == domain.OrderTypeLimit: // BID LIMIT
		need := in.Amount.Mul(in.Price)
		if e.ledger.Get(in.UserID, domain.BucketAvailable, e.market.Quote).LessThan(need) {
			return domain.NewError(domain.KindBalanceNotEnough, "insufficient %s available", e.market.Quote)
		}
	// BID MARKET: no pre-check; partial fill bounded by quote_limit during matching.
	}
	return nil
}

// effectiveQuoteLimit computes the quote_limit a MARKET BID is bounded by.
func (e *Engine) effectiveQuoteLimit(in domain.OrderInput) decimal.Decimal {
	available := e.ledger.Get(in.UserID, domain.BucketAvailable, e.market.Quote)
	if in.QuoteLimit.IsZero() {
		return available
	}
	quoteAsset := e.registry.MustGet(e.market.Quote)
	requested := in.QuoteLimit.Truncate(int32(quoteAsset.SavePrecision))
	if available.LessThan(requested) {
		return available
	}
	return requested
}

// PutOrder validates and executes in against the book. On precondition
// failure, no state changes and no events are emitted.
func (e *Engine) PutOrder(in domain.OrderInput) (domain.Order, error) {
	if err := e.validate(in); err != nil {
		e.log.Debug("put_order rejected", zap.Error(err), zap.Uint32("user_id", in.UserID), zap.String("market", e.market.Name))
		return domain.Order{}, err
	}

	now := time.Now()
	taker := domain.AcquireOrder()
	taker.ID = e.seq.NextOrderID()
	taker.Market = e.market.Name
	taker.Base = e.market.Base
	taker.Quote = e.market.Quote
	taker.Type = in.Type
	taker.Side = in.Side
	taker.UserID = in.UserID
	taker.PostOnly = in.PostOnly
	taker.Signature = in.Signature
	taker.Price = in.Price
	taker.Amount = in.Amount
	taker.MakerFeeRate = in.MakerFee
	taker.TakerFeeRate = in.TakerFee
	taker.CreateTime = now
	taker.UpdateTime = now
	taker.Remain = in.Amount
	taker.Frozen = decimal.Zero
	taker.FinishedBase = decimal.Zero
	taker.FinishedQuote = decimal.Zero
	taker.FinishedFee = decimal.Zero

	e.sink.PutOrder(taker.Clone(), domain.OrderEventPut)

	quoteLimit := decimal.Zero
	if in.Type == domain.OrderTypeMarket && in.Side == domain.SideBid {
		quoteLimit = e.effectiveQuoteLimit(in)
	}

	needCancel := e.matchLoop(taker, quoteLimit)
	e.finalizeTaker(taker, needCancel)

	result := taker.Clone()
	if needCancel || taker.IsFinished() || taker.ListElement == nil {
		// taker's lifetime under the pool ends once it is neither resting
		// in the book nor referenced by the caller.
		domain.ReleaseOrder(taker)
	}
	return result, nil
}

// matchLoop matches taker against counter-side makers in priority order,
// returning whether a need-cancel abort occurred (post-only or self-trade).
func (e *Engine) matchLoop(taker *domain.Order, quoteLimit decimal.Decimal) (needCancel bool) {
	it := e.book.IterateCounterSide(taker.Side)
	quoteSum := decimal.Zero
	var finished []*domain.Order

	for {
		if taker.Remain.IsZero() {
			break
		}
		maker := it.Next()
		if maker == nil {
			break
		}

		price := maker.Price

		if taker.Type == domain.OrderTypeLimit {
			if taker.Side == domain.SideAsk && price.LessThan(taker.Price) {
				break
			}
			if taker.Side == domain.SideBid && price.GreaterThan(taker.Price) {
				break
			}
		}
		if taker.PostOnly {
			needCancel = true
			break
		}
		if e.settings.DisableSelfTrade && maker.UserID == taker.UserID {
			needCancel = true
			break
		}

		var askOrder, bidOrder *domain.Order
		if taker.Side == domain.SideAsk {
			askOrder, bidOrder = taker, maker
		} else {
			askOrder, bidOrder = maker, taker
		}

		tradedBase := decimal.Min(askOrder.Remain, bidOrder.Remain)
		if taker.Type == domain.OrderTypeMarket && taker.Side == domain.SideBid {
			if quoteSum.Add(price.Mul(tradedBase)).GreaterThan(quoteLimit) {
				remaining := quoteLimit.Sub(quoteSum)
				tradedBase = remaining.Div(price).Truncate(int32(e.market.AmountPrecision))
				if tradedBase.IsNegative() {
					tradedBase = decimal.Zero
				}
			}
			if tradedBase.IsZero() {
				break
			}
		}

		e.executeTrade(askOrder, bidOrder, maker, price, tradedBase, &quoteSum, &finished)
	}

	for _, maker := range finished {
		// Already removed from the book's indices in executeTrade; only the
		// deferred FINISH event and pool release remain.
		e.sink.PutOrder(maker.Clone(), domain.OrderEventFinish)
		domain.ReleaseOrder(maker)
	}

	return needCancel
}

// executeTrade applies one match between askOrder and bidOrder at price for
// tradedBase: residuals, fees, the four balance legs, the trade event, and
// maker removal. maker identifies which of the two is resting, for the
// frozen-balance-decrement and finished-list bookkeeping.
func (e *Engine) executeTrade(askOrder, bidOrder, maker *domain.Order, price, tradedBase decimal.Decimal, quoteSum *decimal.Decimal, finished *[]*domain.Order) {
	baseAsset := e.registry.MustGet(e.market.Base)
	quoteAsset := e.registry.MustGet(e.market.Quote)

	tradedQuote := price.Mul(tradedBase)
	*quoteSum = quoteSum.Add(tradedQuote)

	askIsMaker := askOrder == maker
	askFeeRate := askOrder.TakerFeeRate
	if askIsMaker {
		askFeeRate = askOrder.MakerFeeRate
	}
	bidFeeRate := bidOrder.TakerFeeRate
	if !askIsMaker {
		bidFeeRate = bidOrder.MakerFeeRate
	}

	bidFee := tradedBase.Mul(bidFeeRate).Truncate(int32(baseAsset.SavePrecision))
	askFee := tradedQuote.Mul(askFeeRate).Truncate(int32(quoteAsset.SavePrecision))

	askNew := askOrder.FinishedBase.IsZero()
	bidNew := bidOrder.FinishedBase.IsZero()

	askBefore := domain.ParticipantState{
		FinishedBase: askOrder.FinishedBase, FinishedQuote: askOrder.FinishedQuote, FinishedFee: askOrder.FinishedFee,
		Base: e.ledger.Total(askOrder.UserID, e.market.Base), Quote: e.ledger.Total(askOrder.UserID, e.market.Quote),
	}
	bidBefore := domain.ParticipantState{
		FinishedBase: bidOrder.FinishedBase, FinishedQuote: bidOrder.FinishedQuote, FinishedFee: bidOrder.FinishedFee,
		Base: e.ledger.Total(bidOrder.UserID, e.market.Base), Quote: e.ledger.Total(bidOrder.UserID, e.market.Quote),
	}

	tradeID := e.seq.NextTradeID()
	now := time.Now()

	// Fill keeps a resting maker's price-level Volume in sync with its
	// Remain; the taker isn't in the book yet, so its Remain is mutated
	// directly.
	if askOrder == maker {
		e.book.Fill(askOrder, tradedBase)
	} else {
		askOrder.Remain = askOrder.Remain.Sub(tradedBase)
	}
	askOrder.FinishedBase = askOrder.FinishedBase.Add(tradedBase)
	askOrder.FinishedQuote = askOrder.FinishedQuote.Add(tradedQuote)
	askOrder.FinishedFee = askOrder.FinishedFee.Add(askFee)
	askOrder.UpdateTime = now

	if bidOrder == maker {
		e.book.Fill(bidOrder, tradedBase)
	} else {
		bidOrder.Remain = bidOrder.Remain.Sub(tradedBase)
	}
	bidOrder.FinishedBase = bidOrder.FinishedBase.Add(tradedBase)
	bidOrder.FinishedQuote = bidOrder.FinishedQuote.Add(tradedQuote)
	bidOrder.FinishedFee = bidOrder.FinishedFee.Add(bidFee)
	bidOrder.UpdateTime = now

	trade := domain.AcquireTrade()
	defer domain.ReleaseTrade(trade)
	trade.ID = tradeID
	trade.Timestamp = now
	trade.Market = e.market.Name
	trade.Base = e.market.Base
	trade.Quote = e.market.Quote
	trade.Price = price
	trade.BaseAmount = tradedBase
	trade.QuoteAmount = tradedQuote
	trade.AskUserID = askOrder.UserID
	trade.AskOrderID = askOrder.ID
	trade.AskFee = askFee
	trade.BidUserID = bidOrder.UserID
	trade.BidOrderID = bidOrder.ID
	trade.BidFee = bidFee
	if askIsMaker {
		trade.AskRole = domain.RoleMaker
		trade.BidRole = domain.RoleTaker
	} else {
		trade.AskRole = domain.RoleTaker
		trade.BidRole = domain.RoleMaker
	}
	if askNew {
		trade.AskNew = &domain.OrderSnapshot{ID: askOrder.ID, UserID: askOrder.UserID, Amount: askOrder.Amount, Price: askOrder.Price}
	}
	if bidNew {
		trade.BidNew = &domain.OrderSnapshot{ID: bidOrder.ID, UserID: bidOrder.UserID, Amount: bidOrder.Amount, Price: bidOrder.Price}
	}

	// Four balance updates: bid receives base, ask pays base, ask receives
	// quote, bid pays quote. The paying side's bucket is FREEZE when it is
	// the maker, AVAILABLE when it is the taker. A
	// negative fee is a rebate settled outside the trade legs, so the
	// credited change never grows past the traded amount.
	bidBaseChange := tradedBase
	if !bidFee.IsNegative() {
		bidBaseChange = tradedBase.Sub(bidFee)
	}
	e.mustUpdateBalance(domain.BalanceUpdateParams{
		Bucket: domain.BucketAvailable, BusinessType: domain.BusinessTrade,
		UserID: bidOrder.UserID, BusinessID: tradeID, Asset: e.market.Base,
		Business: "trade", MarketPrice: price, Change: bidBaseChange,
	})
	askBaseBucket := domain.BucketAvailable
	if askIsMaker {
		askBaseBucket = domain.BucketFreeze
	}
	e.mustUpdateBalance(domain.BalanceUpdateParams{
		Bucket: askBaseBucket, BusinessType: domain.BusinessTrade,
		UserID: askOrder.UserID, BusinessID: tradeID, Asset: e.market.Base,
		Business: "trade", MarketPrice: price, Change: tradedBase.Neg(),
	})
	askQuoteChange := tradedQuote
	if !askFee.IsNegative() {
		askQuoteChange = tradedQuote.Sub(askFee)
	}
	e.mustUpdateBalance(domain.BalanceUpdateParams{
		Bucket: domain.BucketAvailable, BusinessType: domain.BusinessTrade,
		UserID: askOrder.UserID, BusinessID: tradeID, Asset: e.market.Quote,
		Business: "trade", MarketPrice: price, Change: askQuoteChange,
	})
	bidQuoteBucket := domain.BucketAvailable
	if !askIsMaker {
		bidQuoteBucket = domain.BucketFreeze
	}
	e.mustUpdateBalance(domain.BalanceUpdateParams{
		Bucket: bidQuoteBucket, BusinessType: domain.BusinessTrade,
		UserID: bidOrder.UserID, BusinessID: tradeID, Asset: e.market.Quote,
		Business: "trade", MarketPrice: price, Change: tradedQuote.Neg(),
	})

	if maker.Side == domain.SideBid {
		maker.Frozen = maker.Frozen.Sub(tradedQuote)
	} else {
		maker.Frozen = maker.Frozen.Sub(tradedBase)
	}

	trade.Verbose = domain.VerboseTradeState{
		AskBefore: askBefore,
		AskAfter: domain.ParticipantState{
			FinishedBase: askOrder.FinishedBase, FinishedQuote: askOrder.FinishedQuote, FinishedFee: askOrder.FinishedFee,
			Base: e.ledger.Total(askOrder.UserID, e.market.Base), Quote: e.ledger.Total(askOrder.UserID, e.market.Quote),
		},
		BidBefore: bidBefore,
		BidAfter: domain.ParticipantState{
			FinishedBase: bidOrder.FinishedBase, FinishedQuote: bidOrder.FinishedQuote, FinishedFee: bidOrder.FinishedFee,
			Base: e.ledger.Total(bidOrder.UserID, e.market.Base), Quote: e.ledger.Total(bidOrder.UserID, e.market.Quote),
		},
	}

	e.sink.PutTrade(trade.Clone())
	e.book.RecordTrade()

	if maker.Remain.IsZero() {
		// Remove from the book's indices now, so a later iteration of this
		// same matching loop never revisits an already-exhausted maker;
		// the FINISH event itself is still deferred until after the loop.
		e.book.Remove(maker)
		*finished = append(*finished, maker)
	} else {
		e.sink.PutOrder(maker.Clone(), domain.OrderEventUpdate)
	}

	e.market.SetLastTradePrice(price)
}

// mustUpdateBalance calls the controller and panics on failure: by the time
// a trade leg is computed, insufficiency is an invariant violation (the
// freeze/available accounting upstream guaranteed sufficiency), not a user
// error.
func (e *Engine) mustUpdateBalance(params domain.BalanceUpdateParams) {
	if err := e.controller.UpdateUserBalance(e.ledger, e.sink, params); err != nil {
		e.log.Error("fatal: trade-leg balance update failed", zap.Error(err), zap.Any("params", params))
		panic(errors.WithStack(fmt.Errorf("clobcore/matching: trade-leg balance update failed: %w", err)))
	}
}

// finalizeTaker applies the taker's terminal handling: need-cancel, MARKET
// completion, or LIMIT resting/finishing.
func (e *Engine) finalizeTaker(taker *domain.Order, needCancel bool) {
	switch {
	case needCancel:
		e.sink.PutOrder(taker.Clone(), domain.OrderEventFinish)
	case taker.Type == domain.OrderTypeMarket:
		e.sink.PutOrder(taker.Clone(), domain.OrderEventFinish)
	case taker.Remain.IsZero():
		e.sink.PutOrder(taker.Clone(), domain.OrderEventFinish)
	default:
		var frozenAsset string
		var frozenAmount decimal.Decimal
		if taker.Side == domain.SideAsk {
			frozenAsset = e.market.Base
			frozenAmount = taker.Remain
		} else {
			frozenAsset = e.market.Quote
			frozenAmount = taker.Remain.Mul(taker.Price)
		}
		e.ledger.Frozen(taker.UserID, frozenAsset, frozenAmount)
		taker.Frozen = frozenAmount
		e.book.Insert(taker)
		// PUT was already emitted at entry; no further event here.
	}
}

// Cancel finishes order_id: removes it from the book, unfreezes its
// locked balance, and emits FINISH.
func (e *Engine) Cancel(orderID uint64) error {
	order, ok := e.book.Get(orderID)
	if !ok {
		return domain.NewError(domain.KindOrderNotFound, "order %d not found", orderID)
	}
	e.finishResting(order)
	return nil
}

// CancelAllForUser cancels every order userID currently has resting. It
// snapshots the user's order ids before cancelling, so a cancel that
// mutates the user map never invalidates the iteration.
func (e *Engine) CancelAllForUser(userID uint32) {
	for _, order := range e.book.OrdersOf(userID) {
		e.finishResting(order)
	}
}

func (e *Engine) finishResting(order *domain.Order) {
	e.book.Remove(order)
	var asset string
	if order.Side == domain.SideAsk {
		asset = e.market.Base
	} else {
		asset = e.market.Quote
	}
	if !order.Frozen.IsZero() {
		e.ledger.Unfrozen(order.UserID, asset, order.Frozen)
		order.Frozen = decimal.Zero
	}
	e.sink.PutOrder(order.Clone(), domain.OrderEventFinish)
	domain.ReleaseOrder(order)
}

// Get returns the resting order with id, if any.
func (e *Engine) Get(orderID uint64) (domain.Order, bool) {
	o, ok := e.book.Get(orderID)
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

// OrderNumOfUser returns how many orders userID has resting.
func (e *Engine) OrderNumOfUser(userID uint32) int {
	return e.book.CountOfUser(userID)
}

// OrdersOfUser returns a snapshot of userID's resting orders.
func (e *Engine) OrdersOfUser(userID uint32) []domain.Order {
	orders := e.book.OrdersOf(userID)
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// MarketStatus summarizes both sides of the book plus the cumulative trade
// count.
type MarketStatus struct {
	AskOrders int
	AskRemain decimal.Decimal
	BidOrders int
	BidRemain decimal.Decimal
	Trades    uint64
}

// Status returns the current order-count/remain-sum summary for both sides.
func (e *Engine) Status() MarketStatus {
	askSt := e.book.Status(domain.SideAsk)
	bidSt := e.book.Status(domain.SideBid)
	return MarketStatus{
		AskOrders: askSt.OrderCount,
		AskRemain: askSt.RemainSum,
		BidOrders: bidSt.OrderCount,
		BidRemain: bidSt.RemainSum,
		Trades:    e.book.TradeCount(),
	}
}

// Depth returns up to limit grouped price levels per side.
func (e *Engine) Depth(limit int, interval decimal.Decimal) (bids, asks []orderbook.PriceLevel) {
	return e.book.Depth(limit, interval)
}

// Reset clears the book. Balances and the sequencer are untouched;
// reusing trade ids within the dedup cache's TTL window would make the
// controller reject legitimate trade legs as duplicates.
func (e *Engine) Reset() {
	e.book.Reset()
}
