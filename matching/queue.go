package matching

import (
	"runtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clobcore/domain"
	"clobcore/orderbook"
)

// requestQueue is the single-writer submission channel for one market: one
// producer-side publish call, one blocking consumer loop. A buffered channel
// gives bounded-capacity, FIFO, blocking-publish-when-full delivery without
// reaching for anything lower-level.
type requestQueue struct {
	ch chan *request
}

func newRequestQueue(capacity int) *requestQueue {
	return &requestQueue{ch: make(chan *request, capacity)}
}

func (q *requestQueue) publish(r *request) {
	q.ch <- r
}

func (q *requestQueue) consume() *request {
	return <-q.ch
}

type requestKind int

const (
	reqPutOrder requestKind = iota
	reqCancel
	reqCancelAllForUser
	reqGet
	reqOrderNumOfUser
	reqOrdersOfUser
	reqStatus
	reqDepth
	reqReset
)

type request struct {
	kind          requestKind
	input         domain.OrderInput
	orderID       uint64
	userID        uint32
	depthLimit    int
	depthInterval decimal.Decimal
	reply         chan result
}

type result struct {
	order      domain.Order
	orders     []domain.Order
	found      bool
	count      int
	status     MarketStatus
	bids, asks []orderbook.PriceLevel
	err        error
}

// Worker pins one goroutine to one market's Engine via runtime.LockOSThread
// and serializes every call to the Engine through requestQueue, realizing
// PutOrder's synchronous (Order, error) return without a second goroutine
// ever touching the book, ledger, or sequencer this market owns.
type Worker struct {
	engine *Engine
	queue  *requestQueue
	stopCh chan struct{}
	done   chan struct{}
	log    *zap.Logger
}

// NewWorker constructs a Worker around engine. Call Start to begin serving
// requests; until then, PutOrder and friends block forever.
func NewWorker(engine *Engine, queueCapacity int, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		engine: engine,
		queue:  newRequestQueue(queueCapacity),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Start launches the market's dedicated goroutine. It locks the OS thread
// for its lifetime: a matching goroutine that never migrates avoids
// cache-line bounces between the book, the ledger, and the sequencer this
// worker exclusively owns.
func (w *Worker) Start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(w.done)
		for {
			select {
			case <-w.stopCh:
				return
			case req := <-w.queue.ch:
				w.handle(req)
			}
		}
	}()
}

// Stop signals the worker goroutine to exit after its current request, and
// waits for it to do so.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.done
}

func (w *Worker) handle(req *request) {
	switch req.kind {
	case reqPutOrder:
		order, err := w.engine.PutOrder(req.input)
		req.reply <- result{order: order, err: err}
	case reqCancel:
		err := w.engine.Cancel(req.orderID)
		req.reply <- result{err: err}
	case reqCancelAllForUser:
		w.engine.CancelAllForUser(req.userID)
		req.reply <- result{}
	case reqGet:
		order, ok := w.engine.Get(req.orderID)
		req.reply <- result{order: order, found: ok}
	case reqOrderNumOfUser:
		req.reply <- result{count: w.engine.OrderNumOfUser(req.userID)}
	case reqOrdersOfUser:
		req.reply <- result{orders: w.engine.OrdersOfUser(req.userID)}
	case reqStatus:
		req.reply <- result{status: w.engine.Status()}
	case reqDepth:
		bids, asks := w.engine.Depth(req.depthLimit, req.depthInterval)
		req.reply <- result{bids: bids, asks: asks}
	case reqReset:
		w.engine.Reset()
		req.reply <- result{}
	}
}

func (w *Worker) call(req *request) result {
	req.reply = make(chan result, 1)
	w.queue.publish(req)
	return <-req.reply
}

// PutOrder submits in to this market's single writer and blocks for the
// synchronous result, per the external interface contract.
func (w *Worker) PutOrder(in domain.OrderInput) (domain.Order, error) {
	r := w.call(&request{kind: reqPutOrder, input: in})
	return r.order, r.err
}

// Cancel finishes orderID on this market's writer.
func (w *Worker) Cancel(orderID uint64) error {
	r := w.call(&request{kind: reqCancel, orderID: orderID})
	return r.err
}

// CancelAllForUser cancels every resting order userID has on this market.
func (w *Worker) CancelAllForUser(userID uint32) {
	w.call(&request{kind: reqCancelAllForUser, userID: userID})
}

// Get returns the resting order with id, if any.
func (w *Worker) Get(orderID uint64) (domain.Order, bool) {
	r := w.call(&request{kind: reqGet, orderID: orderID})
	return r.order, r.found
}

// OrderNumOfUser returns how many orders userID has resting on this market.
func (w *Worker) OrderNumOfUser(userID uint32) int {
	r := w.call(&request{kind: reqOrderNumOfUser, userID: userID})
	return r.count
}

// OrdersOfUser returns a snapshot of userID's resting orders on this market.
func (w *Worker) OrdersOfUser(userID uint32) []domain.Order {
	r := w.call(&request{kind: reqOrdersOfUser, userID: userID})
	return r.orders
}

// Status returns the market's current order-count/remain-sum summary.
func (w *Worker) Status() MarketStatus {
	r := w.call(&request{kind: reqStatus})
	return r.status
}

// Depth returns up to limit grouped price levels per side.
func (w *Worker) Depth(limit int, interval decimal.Decimal) (bids, asks []orderbook.PriceLevel) {
	r := w.call(&request{kind: reqDepth, depthLimit: limit, depthInterval: interval})
	return r.bids, r.asks
}

// Reset clears the market's book.
func (w *Worker) Reset() {
	w.call(&request{kind: reqReset})
}
