package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"clobcore/domain"
)

func newTestRegistry() *domain.AssetRegistry {
	r := domain.NewAssetRegistry(nil)
	r.Register(
		domain.AssetConfig{ID: "ETH", SavePrecision: 8, ShowPrecision: 8},
		domain.AssetConfig{ID: "USDT", SavePrecision: 8, ShowPrecision: 2},
	)
	return r
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAddSub(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "ETH", d("10"))
	if got := l.Get(1, domain.BucketAvailable, "ETH"); !got.Equal(d("10")) {
		t.Fatalf("Get() = %s, want 10", got)
	}
	l.Sub(1, domain.BucketAvailable, "ETH", d("3"))
	if got := l.Get(1, domain.BucketAvailable, "ETH"); !got.Equal(d("7")) {
		t.Fatalf("Get() after Sub = %s, want 7", got)
	}
}

func TestMissingKeyReadsZero(t *testing.T) {
	l := New(newTestRegistry(), nil)
	if got := l.Get(999, domain.BucketAvailable, "ETH"); !got.IsZero() {
		t.Errorf("Get() on missing key = %s, want 0", got)
	}
}

func TestSubInsufficientPanics(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "ETH", d("1"))
	defer func() {
		if recover() == nil {
			t.Error("expected panic on insufficient Sub, got none")
		}
	}()
	l.Sub(1, domain.BucketAvailable, "ETH", d("2"))
}

func TestFrozenUnfrozenRoundTrip(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "ETH", d("10"))
	l.Frozen(1, "ETH", d("4"))
	if got := l.Get(1, domain.BucketAvailable, "ETH"); !got.Equal(d("6")) {
		t.Errorf("AVAILABLE after Frozen = %s, want 6", got)
	}
	if got := l.Get(1, domain.BucketFreeze, "ETH"); !got.Equal(d("4")) {
		t.Errorf("FREEZE after Frozen = %s, want 4", got)
	}
	l.Unfrozen(1, "ETH", d("4"))
	if got := l.Get(1, domain.BucketAvailable, "ETH"); !got.Equal(d("10")) {
		t.Errorf("AVAILABLE after Unfrozen = %s, want 10", got)
	}
	if got := l.Get(1, domain.BucketFreeze, "ETH"); !got.IsZero() {
		t.Errorf("FREEZE after Unfrozen = %s, want 0", got)
	}
}

func TestFrozenInsufficientPanics(t *testing.T) {
	l := New(newTestRegistry(), nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on Frozen with insufficient AVAILABLE, got none")
		}
	}()
	l.Frozen(1, "ETH", d("1"))
}

func TestTotal(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "ETH", d("10"))
	l.Add(1, domain.BucketFreeze, "ETH", d("5"))
	if got := l.Total(1, "ETH"); !got.Equal(d("15")) {
		t.Errorf("Total() = %s, want 15", got)
	}
}

func TestGetWithRoundUsesShowPrecision(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "USDT", d("10.129999"))
	got := l.GetWithRound(1, domain.BucketAvailable, "USDT")
	if !got.Equal(d("10.13")) {
		t.Errorf("GetWithRound() = %s, want 10.13", got)
	}
}

func TestStatusSkipsZeroEntries(t *testing.T) {
	l := New(newTestRegistry(), nil)
	l.Add(1, domain.BucketAvailable, "ETH", d("10"))
	l.Add(2, domain.BucketAvailable, "ETH", d("0"))
	l.Add(3, domain.BucketFreeze, "ETH", d("5"))
	st := l.Status("ETH")
	if st.AvailableCount != 1 {
		t.Errorf("AvailableCount = %d, want 1", st.AvailableCount)
	}
	if st.FrozenCount != 1 {
		t.Errorf("FrozenCount = %d, want 1", st.FrozenCount)
	}
	if !st.Sum.Equal(d("15")) {
		t.Errorf("Sum = %s, want 15", st.Sum)
	}
}
