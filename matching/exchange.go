package matching

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"clobcore/domain"
	"clobcore/eventsink"
	"clobcore/ledger"
	"clobcore/orderbook"
	"clobcore/sequencer"
)

const defaultQueueCapacity = 1024

// Exchange is the multi-market registry. An atomic.Value holding an
// immutable map gives lock-free reads on the hot SubmitOrder/CancelOrder
// path, while a mutex serializes the rare copy-on-write replace when a
// market is registered.
type Exchange struct {
	workers atomic.Value // map[string]*Worker
	mu      sync.Mutex

	registry *domain.AssetRegistry
	ledger   *ledger.Ledger
	sink     eventsink.EventSink
	settings domain.GlobalSettings
	log      *zap.Logger
}

// NewExchange constructs an empty Exchange sharing one AssetRegistry, one
// Ledger, and one EventSink across every market it registers.
func NewExchange(registry *domain.AssetRegistry, led *ledger.Ledger, sink eventsink.EventSink, settings domain.GlobalSettings, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Exchange{
		registry: registry,
		ledger:   led,
		sink:     sink,
		settings: settings,
		log:      log,
	}
	e.workers.Store(map[string]*Worker{})
	return e
}

// GetWorker returns the running Worker for market, if registered.
func (e *Exchange) GetWorker(market string) (*Worker, bool) {
	workers := e.workers.Load().(map[string]*Worker)
	w, ok := workers[market]
	return w, ok
}

// RegisterMarket constructs an Engine and Worker for cfg, starts its
// goroutine, and publishes it into the lock-free map via copy-on-write.
// Calling RegisterMarket twice for the same market name replaces the
// previous worker after stopping it. Each market gets its own
// BalanceUpdateController and Sequencer, consistent with the
// single-writer-per-market model: neither is ever touched by more than one
// goroutine.
func (e *Exchange) RegisterMarket(cfg domain.MarketConfig, bookKind orderbook.TreeKind) (*Worker, error) {
	market, err := domain.NewMarket(cfg, e.registry)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.workers.Load().(map[string]*Worker)
	if prev, ok := old[market.Name]; ok {
		prev.Stop()
	}

	controller := ledger.NewUpdateController(e.log)
	seq := sequencer.New(e.log)
	engine := NewEngine(market, e.registry, e.ledger, controller, seq, e.sink, e.settings, bookKind, e.log)
	worker := NewWorker(engine, defaultQueueCapacity, e.log)
	worker.Start()

	next := make(map[string]*Worker, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[market.Name] = worker
	e.workers.Store(next)

	return worker, nil
}

// SubmitOrder routes in to its market's worker and blocks for the
// synchronous result.
func (e *Exchange) SubmitOrder(market string, in domain.OrderInput) (domain.Order, error) {
	w, ok := e.GetWorker(market)
	if !ok {
		return domain.Order{}, domain.NewError(domain.KindUnknownMarket, "%s", market)
	}
	return w.PutOrder(in)
}

// CancelOrder routes a cancel to market's worker.
func (e *Exchange) CancelOrder(market string, orderID uint64) error {
	w, ok := e.GetWorker(market)
	if !ok {
		return domain.NewError(domain.KindUnknownMarket, "%s", market)
	}
	return w.Cancel(orderID)
}

// StopAll stops every registered worker's goroutine. Used for orderly
// shutdown; balances and books are left exactly as they were.
func (e *Exchange) StopAll() {
	workers := e.workers.Load().(map[string]*Worker)
	for _, w := range workers {
		w.Stop()
	}
}
