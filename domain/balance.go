package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is which balance bucket a ledger entry belongs to.
type Bucket int

const (
	BucketAvailable Bucket = iota
	BucketFreeze
)

func (b Bucket) String() string {
	if b == BucketFreeze {
		return "FREEZE"
	}
	return "AVAILABLE"
}

// BusinessType tags why a balance is being mutated, a tagged-variant
// dispatch (not an interface hierarchy) used by BalanceUpdateController to
// decide which extra sink calls accompany put_balance.
type BusinessType int

const (
	BusinessDeposit BusinessType = iota
	BusinessTrade
	BusinessTransfer
	BusinessWithdraw
)

func (b BusinessType) String() string {
	switch b {
	case BusinessDeposit:
		return "deposit"
	case BusinessTrade:
		return "trade"
	case BusinessTransfer:
		return "transfer"
	case BusinessWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// BalanceUpdateKey fingerprints one externally-driven balance change for
// deduplication: two submissions with an equal key inside the TTL window are
// rejected as duplicates.
type BalanceUpdateKey struct {
	UserID       uint32
	Asset        string
	Bucket       Bucket
	BusinessType BusinessType
	Business     string
	BusinessID   uint64
}

// BalanceUpdateParams is the input to BalanceUpdateController.UpdateUserBalance.
type BalanceUpdateParams struct {
	Bucket       Bucket
	BusinessType BusinessType
	UserID       uint32
	BusinessID   uint64
	Asset        string
	Business     string
	MarketPrice  decimal.Decimal
	Change       decimal.Decimal
	Detail       string
	Signature    [64]byte
}

// BalanceHistory is the durable record of one applied balance mutation.
type BalanceHistory struct {
	Time        time.Time
	UserID      uint32
	BusinessID  uint64
	Asset       string
	Business    string
	MarketPrice decimal.Decimal
	Change      decimal.Decimal
	Balance     decimal.Decimal
	Available   decimal.Decimal
	Frozen      decimal.Decimal
	Detail      string
	Signature   [64]byte
}

// InternalTx is a ledger-to-ledger transfer record, emitted by the
// controller's Transfer business type path.
type InternalTx struct {
	ID       uint64
	Time     time.Time
	UserFrom uint32
	UserTo   uint32
	Asset    string
	Amount   decimal.Decimal
	Business string
	Detail   string
}

// AccountDesc is the payload for EventSink.RegisterUser. Nothing in this
// module emits it: neither the controller nor the matching engine calls
// RegisterUser.
type AccountDesc struct {
	UserID     uint32
	Registered time.Time
	Detail     string
}
