package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"

	"clobcore/domain"
)

func price(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newOrder(id uint64, side domain.Side, p string, remain string) *domain.Order {
	return &domain.Order{
		ID:     id,
		Side:   side,
		Type:   domain.OrderTypeLimit,
		Price:  price(p),
		Remain: price(remain),
		Amount: price(remain),
	}
}

func testBothKinds(t *testing.T, name string, fn func(t *testing.T, kind TreeKind)) {
	t.Run(name+"/list", func(t *testing.T) { fn(t, ListTreeKind) })
	t.Run(name+"/redblack", func(t *testing.T) { fn(t, RedBlackTreeKind) })
}

func TestAddOrder(t *testing.T) {
	testBothKinds(t, "AddOrder", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		ob.Insert(newOrder(1, domain.SideAsk, "10.00", "5"))
		if got, ok := ob.Get(1); !ok || got.ID != 1 {
			t.Fatalf("Get(1) = %v, %v", got, ok)
		}
		best, ok := ob.BestAsk()
		if !ok || !best.Equal(price("10.00")) {
			t.Errorf("BestAsk() = %v, %v, want 10.00", best, ok)
		}
	})
}

func TestCancelOrder(t *testing.T) {
	testBothKinds(t, "CancelOrder", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		o := newOrder(1, domain.SideAsk, "10.00", "5")
		ob.Insert(o)
		ob.Remove(o)
		if _, ok := ob.Get(1); ok {
			t.Error("Get(1) found order after Remove")
		}
		if !ob.CounterSideEmpty(domain.SideBid) {
			t.Error("ask side should be empty after removing its only order")
		}
	})
}

func TestPricePriority(t *testing.T) {
	testBothKinds(t, "PricePriority", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		ob.Insert(newOrder(1, domain.SideAsk, "10.50", "1"))
		ob.Insert(newOrder(2, domain.SideAsk, "10.00", "1"))
		ob.Insert(newOrder(3, domain.SideAsk, "10.25", "1"))
		best, _ := ob.BestAsk()
		if !best.Equal(price("10.00")) {
			t.Errorf("BestAsk() = %s, want 10.00 (lowest ask should win)", best)
		}

		ob.Insert(newOrder(4, domain.SideBid, "9.00", "1"))
		ob.Insert(newOrder(5, domain.SideBid, "9.50", "1"))
		ob.Insert(newOrder(6, domain.SideBid, "9.25", "1"))
		bestBid, _ := ob.BestBid()
		if !bestBid.Equal(price("9.50")) {
			t.Errorf("BestBid() = %s, want 9.50 (highest bid should win)", bestBid)
		}
	})
}

func TestFIFOAtSamePrice(t *testing.T) {
	testBothKinds(t, "FIFOAtSamePrice", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		ob.Insert(newOrder(1, domain.SideAsk, "10.00", "1"))
		ob.Insert(newOrder(2, domain.SideAsk, "10.00", "1"))
		ob.Insert(newOrder(3, domain.SideAsk, "10.00", "1"))

		it := ob.IterateCounterSide(domain.SideBid)
		var gotIDs []uint64
		for o := it.Next(); o != nil; o = it.Next() {
			gotIDs = append(gotIDs, o.ID)
		}
		want := []uint64{1, 2, 3}
		if len(gotIDs) != len(want) {
			t.Fatalf("got %v orders, want %v", gotIDs, want)
		}
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Errorf("order %d = %d, want %d (FIFO at same price)", i, gotIDs[i], want[i])
			}
		}
	})
}

func TestDepthExactPrice(t *testing.T) {
	testBothKinds(t, "DepthExactPrice", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		ob.Insert(newOrder(1, domain.SideAsk, "10.00", "5"))
		ob.Insert(newOrder(2, domain.SideAsk, "10.00", "3"))
		ob.Insert(newOrder(3, domain.SideAsk, "11.00", "2"))

		_, asks := ob.Depth(10, decimal.Zero)
		if len(asks) != 2 {
			t.Fatalf("len(asks) = %d, want 2", len(asks))
		}
		if !asks[0].Price.Equal(price("10.00")) || !asks[0].Volume.Equal(price("8")) {
			t.Errorf("asks[0] = %+v, want price 10.00 volume 8", asks[0])
		}
	})
}

func TestDepthRespectsLimit(t *testing.T) {
	ob := New("ETHUSDT", ListTreeKind, 2)
	prices := []string{"10.00", "11.00", "12.00", "13.00", "14.00"}
	for i, p := range prices {
		ob.Insert(newOrder(uint64(i+1), domain.SideAsk, p, "1"))
	}
	_, asks := ob.Depth(2, decimal.Zero)
	if len(asks) > 2 {
		t.Errorf("len(asks) = %d, want at most 2", len(asks))
	}
}

func TestFillKeepsVolumeInSync(t *testing.T) {
	testBothKinds(t, "FillKeepsVolumeInSync", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		o := newOrder(1, domain.SideAsk, "10.00", "5")
		ob.Insert(o)
		ob.Fill(o, price("2"))
		if !o.Remain.Equal(price("3")) {
			t.Fatalf("Remain = %s, want 3", o.Remain)
		}
		_, asks := ob.Depth(10, decimal.Zero)
		if len(asks) != 1 || !asks[0].Volume.Equal(price("3")) {
			t.Errorf("asks[0].Volume = %+v, want 3 (Fill must keep level Volume in sync)", asks)
		}
	})
}

func TestOrdersOfUser(t *testing.T) {
	ob := New("ETHUSDT", ListTreeKind, 2)
	ob.Insert(newOrder(1, domain.SideAsk, "10.00", "1"))
	o2 := newOrder(2, domain.SideAsk, "11.00", "1")
	o2.UserID = 7
	ob.Insert(o2)
	o1 := newOrder(1, domain.SideAsk, "10.00", "1")
	o1.UserID = 7
	if got := ob.CountOfUser(7); got != 1 {
		t.Errorf("CountOfUser(7) = %d, want 1 (only order 2 was inserted for user 7)", got)
	}
}

func TestDepthGroupsByInterval(t *testing.T) {
	testBothKinds(t, "DepthGroupsByInterval", func(t *testing.T, kind TreeKind) {
		ob := New("ETHUSDT", kind, 2)
		ob.Insert(newOrder(1, domain.SideAsk, "10.10", "1"))
		ob.Insert(newOrder(2, domain.SideAsk, "10.20", "2"))
		ob.Insert(newOrder(3, domain.SideAsk, "10.60", "3"))
		ob.Insert(newOrder(4, domain.SideBid, "9.90", "1"))
		ob.Insert(newOrder(5, domain.SideBid, "9.80", "2"))
		ob.Insert(newOrder(6, domain.SideBid, "9.40", "4"))

		bids, asks := ob.Depth(10, price("0.25"))

		// Asks bucket upward to the next interval boundary.
		if len(asks) != 2 {
			t.Fatalf("len(asks) = %d, want 2", len(asks))
		}
		if !asks[0].Price.Equal(price("10.25")) || !asks[0].Volume.Equal(price("3")) {
			t.Errorf("asks[0] = %s@%s, want 3@10.25", asks[0].Volume, asks[0].Price)
		}
		if !asks[1].Price.Equal(price("10.75")) || !asks[1].Volume.Equal(price("3")) {
			t.Errorf("asks[1] = %s@%s, want 3@10.75", asks[1].Volume, asks[1].Price)
		}

		// Bids bucket downward.
		if len(bids) != 2 {
			t.Fatalf("len(bids) = %d, want 2", len(bids))
		}
		if !bids[0].Price.Equal(price("9.75")) || !bids[0].Volume.Equal(price("3")) {
			t.Errorf("bids[0] = %s@%s, want 3@9.75", bids[0].Volume, bids[0].Price)
		}
		if !bids[1].Price.Equal(price("9.25")) || !bids[1].Volume.Equal(price("4")) {
			t.Errorf("bids[1] = %s@%s, want 4@9.25", bids[1].Volume, bids[1].Price)
		}
	})
}
