package eventsink

import (
	"testing"

	"clobcore/domain"
)

func TestMemorySinkRecordsInOrder(t *testing.T) {
	s := NewMemorySink()
	s.PutOrder(domain.Order{ID: 1}, domain.OrderEventPut)
	s.PutOrder(domain.Order{ID: 1}, domain.OrderEventFinish)
	if len(s.Orders) != 2 {
		t.Fatalf("len(Orders) = %d, want 2", len(s.Orders))
	}
	if s.Orders[0].Type != domain.OrderEventPut || s.Orders[1].Type != domain.OrderEventFinish {
		t.Errorf("order events out of sequence: %+v", s.Orders)
	}
}

func TestCompositeSinkBroadcasts(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	c := NewCompositeSink(nil, a, b)
	c.PutTrade(domain.Trade{ID: 7})
	if len(a.Trades) != 1 || len(b.Trades) != 1 {
		t.Fatalf("expected both members to receive the trade, got a=%d b=%d", len(a.Trades), len(b.Trades))
	}
}

func TestCompositeSinkServiceAvailableIsAnd(t *testing.T) {
	available := NoopSink{}
	unavailable := &unavailableSink{}
	c := NewCompositeSink(nil, available, unavailable)
	if c.ServiceAvailable() {
		t.Error("ServiceAvailable() = true, want false when one member is unavailable")
	}
}

func TestCompositeSinkRealPersistIsOr(t *testing.T) {
	c := NewCompositeSink(nil, NoopSink{}, NewMemorySink())
	if !c.RealPersist() {
		t.Error("RealPersist() = false, want true when one member really persists")
	}
}

type unavailableSink struct{ NoopSink }

func (unavailableSink) ServiceAvailable() bool { return false }
