// Package sequencer allocates the monotonic ids matching needs: order,
// trade, message, and operation-log ids. One Sequencer is owned per market,
// consistent with the single-writer-per-market model: it is never shared
// across markets and never accessed from more than one goroutine.
package sequencer

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sequencer holds four independent monotonic u64 counters. Every next_*
// call pre-increments and returns the new value, so the first id issued is
// 1, never 0.
type Sequencer struct {
	orderID        uint64
	tradeID        uint64
	msgID          uint64
	operationLogID uint64
	log            *zap.Logger
}

// New constructs a Sequencer with all counters at zero.
func New(log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{log: log}
}

// Reset zeroes all four counters. Used only when resetting a market's state
// entirely (e.g. in tests); ids are not persisted by the core, so an
// operator restores them via the Set* accessors on recovery.
func (s *Sequencer) Reset() {
	s.orderID = 0
	s.tradeID = 0
	s.msgID = 0
	s.operationLogID = 0
}

func (s *Sequencer) next(counter *uint64, name string) uint64 {
	if *counter == ^uint64(0) {
		s.log.Error("fatal: sequencer counter overflow", zap.String("counter", name))
		panic(errors.WithStack(fmt.Errorf("clobcore/sequencer: %s counter overflow", name)))
	}
	*counter++
	return *counter
}

// NextOrderID pre-increments and returns the order id counter.
func (s *Sequencer) NextOrderID() uint64 { return s.next(&s.orderID, "order_id") }

// NextTradeID pre-increments and returns the trade id counter.
func (s *Sequencer) NextTradeID() uint64 { return s.next(&s.tradeID, "trade_id") }

// NextMsgID pre-increments and returns the message id counter.
func (s *Sequencer) NextMsgID() uint64 { return s.next(&s.msgID, "msg_id") }

// NextOperationLogID pre-increments and returns the operation-log id counter.
func (s *Sequencer) NextOperationLogID() uint64 {
	return s.next(&s.operationLogID, "operation_log_id")
}

// OrderID returns the current order id counter without incrementing it.
func (s *Sequencer) OrderID() uint64 { return s.orderID }

// TradeID returns the current trade id counter without incrementing it.
func (s *Sequencer) TradeID() uint64 { return s.tradeID }

// MsgID returns the current message id counter without incrementing it.
func (s *Sequencer) MsgID() uint64 { return s.msgID }

// OperationLogID returns the current operation-log id counter without incrementing it.
func (s *Sequencer) OperationLogID() uint64 { return s.operationLogID }

// SetOrderID sets the order id counter directly. Used by an operator
// restoring state on recovery.
func (s *Sequencer) SetOrderID(v uint64) { s.orderID = v }

// SetTradeID sets the trade id counter directly.
func (s *Sequencer) SetTradeID(v uint64) { s.tradeID = v }

// SetMsgID sets the message id counter directly.
func (s *Sequencer) SetMsgID(v uint64) { s.msgID = v }

// SetOperationLogID sets the operation-log id counter directly.
func (s *Sequencer) SetOperationLogID(v uint64) { s.operationLogID = v }
