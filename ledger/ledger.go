// Package ledger implements the double-entry balance ledger (BalanceLedger)
// and the deduplicating BalanceUpdateController that sits in front of it.
package ledger

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clobcore/domain"
)

type balanceKey struct {
	userID uint32
	bucket domain.Bucket
	asset  string
}

// Ledger is the per-(user,asset,bucket) decimal balance store. Missing keys
// read as zero. Every externally observable balance is non-negative;
// negative intermediates are forbidden by construction since sub/frozen
// check sufficiency before mutating.
type Ledger struct {
	registry *domain.AssetRegistry
	balances map[balanceKey]decimal.Decimal
	log      *zap.Logger
}

// New constructs an empty Ledger backed by registry for precision lookups.
func New(registry *domain.AssetRegistry, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		registry: registry,
		balances: make(map[balanceKey]decimal.Decimal),
		log:      log,
	}
}

// Get returns the balance for (user, bucket, asset), zero if absent.
func (l *Ledger) Get(userID uint32, bucket domain.Bucket, asset string) decimal.Decimal {
	return l.balances[balanceKey{userID, bucket, asset}]
}

// GetByKey is an alias for Get, useful where callers already hold a
// balanceKey-shaped tuple.
func (l *Ledger) GetByKey(userID uint32, bucket domain.Bucket, asset string) decimal.Decimal {
	return l.Get(userID, bucket, asset)
}

// GetWithRound reads the balance and, if the asset's save precision differs
// from its show precision, rounds half-even to show precision.
func (l *Ledger) GetWithRound(userID uint32, bucket domain.Bucket, asset string) decimal.Decimal {
	v := l.Get(userID, bucket, asset)
	a := l.registry.MustGet(asset)
	if a.SavePrecision != a.ShowPrecision {
		return v.RoundBank(int32(a.ShowPrecision))
	}
	return v
}

// Set stores amount for (user, bucket, asset), rounded to the asset's save
// precision. amount must be non-negative.
func (l *Ledger) Set(userID uint32, bucket domain.Bucket, asset string, amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		l.log.Error("fatal: ledger Set called with negative amount", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Set negative amount %s for user %d asset %s", amount, userID, asset)))
	}
	a := l.registry.MustGet(asset)
	rounded := amount.Truncate(int32(a.SavePrecision))
	l.balances[balanceKey{userID, bucket, asset}] = rounded
	return rounded
}

// Add increases (user, bucket, asset) by amount (non-negative) and returns
// the new balance.
func (l *Ledger) Add(userID uint32, bucket domain.Bucket, asset string, amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		l.log.Error("fatal: ledger Add called with negative amount", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Add negative amount %s for user %d asset %s", amount, userID, asset)))
	}
	key := balanceKey{userID, bucket, asset}
	newBal := l.balances[key].Add(amount)
	l.balances[key] = newBal
	return newBal
}

// Sub decreases (user, bucket, asset) by amount (non-negative). It panics if
// the current balance is insufficient; callers (BalanceUpdateController)
// are expected to check sufficiency themselves and turn insufficiency into a
// user-facing error before ever calling Sub.
func (l *Ledger) Sub(userID uint32, bucket domain.Bucket, asset string, amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		l.log.Error("fatal: ledger Sub called with negative amount", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Sub negative amount %s for user %d asset %s", amount, userID, asset)))
	}
	key := balanceKey{userID, bucket, asset}
	current := l.balances[key]
	if current.LessThan(amount) {
		l.log.Error("fatal: ledger Sub insufficient balance", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Sub insufficient balance for user %d asset %s: have %s, want %s", userID, asset, current, amount)))
	}
	newBal := current.Sub(amount)
	l.balances[key] = newBal
	return newBal
}

// CanSub reports whether the current (user, bucket, asset) balance is
// sufficient to Sub amount, without mutating anything. Callers use this to
// turn insufficiency into a user-facing error before calling Sub.
func (l *Ledger) CanSub(userID uint32, bucket domain.Bucket, asset string, amount decimal.Decimal) bool {
	return l.Get(userID, bucket, asset).GreaterThanOrEqual(amount)
}

// Frozen moves amount from AVAILABLE to FREEZE for (user, asset). The
// decremented bucket (AVAILABLE) is checked first so no balance ever goes
// negative, even transiently.
func (l *Ledger) Frozen(userID uint32, asset string, amount decimal.Decimal) {
	if !l.CanSub(userID, domain.BucketAvailable, asset, amount) {
		l.log.Error("fatal: Frozen called with insufficient AVAILABLE balance", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Frozen insufficient AVAILABLE for user %d asset %s", userID, asset)))
	}
	l.Sub(userID, domain.BucketAvailable, asset, amount)
	l.Add(userID, domain.BucketFreeze, asset, amount)
}

// Unfrozen moves amount from FREEZE to AVAILABLE for (user, asset). The
// decremented bucket (FREEZE) is checked first.
func (l *Ledger) Unfrozen(userID uint32, asset string, amount decimal.Decimal) {
	if !l.CanSub(userID, domain.BucketFreeze, asset, amount) {
		l.log.Error("fatal: Unfrozen called with insufficient FREEZE balance", zap.Uint32("user_id", userID), zap.String("asset", asset))
		panic(errors.WithStack(fmt.Errorf("clobcore/ledger: Unfrozen insufficient FREEZE for user %d asset %s", userID, asset)))
	}
	l.Sub(userID, domain.BucketFreeze, asset, amount)
	l.Add(userID, domain.BucketAvailable, asset, amount)
}

// Total returns AVAILABLE + FREEZE for (user, asset).
func (l *Ledger) Total(userID uint32, asset string) decimal.Decimal {
	return l.Get(userID, domain.BucketAvailable, asset).Add(l.Get(userID, domain.BucketFreeze, asset))
}

// Status is the result of sweeping every entry for one asset.
type Status struct {
	Sum            decimal.Decimal
	AvailableSum   decimal.Decimal
	AvailableCount int
	FrozenSum      decimal.Decimal
	FrozenCount    int
}

// Status sweeps all ledger entries for asset, skipping zero entries.
func (l *Ledger) Status(asset string) Status {
	var st Status
	for key, bal := range l.balances {
		if key.asset != asset || bal.IsZero() {
			continue
		}
		st.Sum = st.Sum.Add(bal)
		switch key.bucket {
		case domain.BucketAvailable:
			st.AvailableSum = st.AvailableSum.Add(bal)
			st.AvailableCount++
		case domain.BucketFreeze:
			st.FrozenSum = st.FrozenSum.Add(bal)
			st.FrozenCount++
		}
	}
	return st
}
