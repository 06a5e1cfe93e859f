package sequencer

import "testing"

func TestNextPreIncrements(t *testing.T) {
	s := New(nil)
	if got := s.NextOrderID(); got != 1 {
		t.Errorf("first NextOrderID() = %d, want 1", got)
	}
	if got := s.NextOrderID(); got != 2 {
		t.Errorf("second NextOrderID() = %d, want 2", got)
	}
	if got := s.OrderID(); got != 2 {
		t.Errorf("OrderID() = %d, want 2", got)
	}
}

func TestCountersIndependent(t *testing.T) {
	s := New(nil)
	s.NextOrderID()
	s.NextOrderID()
	s.NextTradeID()
	if got := s.OrderID(); got != 2 {
		t.Errorf("OrderID() = %d, want 2", got)
	}
	if got := s.TradeID(); got != 1 {
		t.Errorf("TradeID() = %d, want 1", got)
	}
	if got := s.MsgID(); got != 0 {
		t.Errorf("MsgID() = %d, want 0", got)
	}
}

func TestReset(t *testing.T) {
	s := New(nil)
	s.NextOrderID()
	s.NextTradeID()
	s.NextMsgID()
	s.NextOperationLogID()
	s.Reset()
	if s.OrderID() != 0 || s.TradeID() != 0 || s.MsgID() != 0 || s.OperationLogID() != 0 {
		t.Errorf("Reset() left a nonzero counter: %+v", s)
	}
}

func TestSetAccessors(t *testing.T) {
	s := New(nil)
	s.SetOrderID(100)
	s.SetTradeID(200)
	if got := s.NextOrderID(); got != 101 {
		t.Errorf("NextOrderID() after SetOrderID(100) = %d, want 101", got)
	}
	if got := s.NextTradeID(); got != 201 {
		t.Errorf("NextTradeID() after SetTradeID(200) = %d, want 201", got)
	}
}

func TestOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on order id overflow, got none")
		}
	}()
	s := New(nil)
	s.SetOrderID(^uint64(0))
	s.NextOrderID()
}
