package ledger

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clobcore/domain"
)

const (
	// dedupTTL is the window inside which a repeated fingerprint is
	// rejected as a duplicate.
	dedupTTL = time.Hour
	// dedupSweepInterval matches the coarse ~60s cache-wide sweep; go-cache
	// runs this on its own janitor goroutine, so it never touches the
	// matching goroutine's state.
	dedupSweepInterval = 60 * time.Second
	// persistZeroBalanceUpdate controls whether a zero-change update still
	// emits a BalanceHistory.
	persistZeroBalanceUpdate = false
)

// UpdateController deduplicates externally-driven balance changes via a TTL
// cache keyed by a BalanceUpdateKey fingerprint, and composes a ledger
// mutation with emission of a BalanceHistory event.
//
// Capacity is bounded in the steady state by TTL eviction rather than a
// hard LRU cap: go-cache does not expose a maximum-entries option, and the
// cache cannot grow past the set of unique fingerprints submitted within
// one TTL window, which in practice is bounded by request rate.
type UpdateController struct {
	cache *cache.Cache
	log   *zap.Logger
}

// NewUpdateController constructs an UpdateController with the TTL and sweep
// interval named above.
func NewUpdateController(log *zap.Logger) *UpdateController {
	if log == nil {
		log = zap.NewNop()
	}
	return &UpdateController{
		cache: cache.New(dedupTTL, dedupSweepInterval),
		log:   log,
	}
}

func fingerprint(key domain.BalanceUpdateKey) string {
	return fmt.Sprintf("%d:%s:%d:%d:%s:%d",
		key.UserID, key.Asset, key.Bucket, key.BusinessType, key.Business, key.BusinessID)
}

// UpdateUserBalance applies params.Change to ledger for (params.UserID,
// params.Bucket, params.Asset), deduplicating via the fingerprint cache and
// optionally emitting a BalanceHistory (plus a put_deposit/put_withdraw
// companion call) through sink. On failure no mutation has occurred.
func (c *UpdateController) UpdateUserBalance(ledger *Ledger, sink Sink, params domain.BalanceUpdateParams) error {
	key := domain.BalanceUpdateKey{
		UserID:       params.UserID,
		Asset:        params.Asset,
		Bucket:       params.Bucket,
		BusinessType: params.BusinessType,
		Business:     params.Business,
		BusinessID:   params.BusinessID,
	}
	fp := fingerprint(key)

	if _, found := c.cache.Get(fp); found {
		return domain.NewError(domain.KindDuplicateRequest, "business=%s business_id=%d user=%d asset=%s",
			params.Business, params.BusinessID, params.UserID, params.Asset)
	}

	switch {
	case params.Change.IsPositive():
		ledger.Add(params.UserID, params.Bucket, params.Asset, params.Change)
	case params.Change.IsNegative():
		neg := params.Change.Neg()
		if !ledger.CanSub(params.UserID, params.Bucket, params.Asset, neg) {
			return domain.NewError(domain.KindBalanceNotEnough, "user=%d asset=%s bucket=%s want=%s",
				params.UserID, params.Asset, params.Bucket, neg)
		}
		ledger.Sub(params.UserID, params.Bucket, params.Asset, neg)
	default:
		// Zero change: no mutation, but the fingerprint is still recorded
		// below so a repeated zero-change submission also dedups.
	}

	c.cache.Set(fp, true, dedupTTL)

	if sink.RealPersist() && (persistZeroBalanceUpdate || !params.Change.IsZero()) {
		available := ledger.Get(params.UserID, domain.BucketAvailable, params.Asset)
		frozen := ledger.Get(params.UserID, domain.BucketFreeze, params.Asset)
		hist := domain.BalanceHistory{
			Time:        time.Now(),
			UserID:      params.UserID,
			BusinessID:  params.BusinessID,
			Asset:       params.Asset,
			Business:    params.Business,
			MarketPrice: params.MarketPrice,
			Change:      params.Change,
			Balance:     available.Add(frozen),
			Available:   available,
			Frozen:      frozen,
			Detail:      params.Detail,
			Signature:   params.Signature,
		}
		sink.PutBalance(hist)
		switch params.BusinessType {
		case domain.BusinessDeposit:
			sink.PutDeposit(hist)
		case domain.BusinessWithdraw:
			sink.PutWithdraw(hist)
		}
	}

	return nil
}

// Transfer moves amount of asset from fromUser's AVAILABLE balance to
// toUser's AVAILABLE balance via two UpdateUserBalance calls sharing
// businessID, then emits an InternalTx through sink once persistence is
// confirmed real.
func (c *UpdateController) Transfer(ledger *Ledger, sink Sink, businessID uint64, fromUser, toUser uint32, asset string, amount decimal.Decimal, business, detail string) error {
	if err := c.UpdateUserBalance(ledger, sink, domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessTransfer,
		UserID:       fromUser,
		BusinessID:   businessID,
		Asset:        asset,
		Business:     business,
		Change:       amount.Neg(),
		Detail:       detail,
	}); err != nil {
		return err
	}
	if err := c.UpdateUserBalance(ledger, sink, domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessTransfer,
		UserID:       toUser,
		BusinessID:   businessID,
		Asset:        asset,
		Business:     business,
		Change:       amount,
		Detail:       detail,
	}); err != nil {
		// The credit leg can only fail as a duplicate. Reverse the debit
		// directly so the transfer is all-or-nothing.
		ledger.Add(fromUser, domain.BucketAvailable, asset, amount)
		return err
	}
	if sink.RealPersist() {
		sink.PutTransfer(domain.InternalTx{
			ID:       businessID,
			Time:     time.Now(),
			UserFrom: fromUser,
			UserTo:   toUser,
			Asset:    asset,
			Amount:   amount,
			Business: business,
			Detail:   detail,
		})
	}
	return nil
}

// Sink is the subset of eventsink.EventSink the controller depends on. It is
// declared locally, not imported from the eventsink package, so that ledger
// does not need to import eventsink; any concrete sink type satisfies both
// interfaces structurally.
type Sink interface {
	RealPersist() bool
	PutBalance(domain.BalanceHistory)
	PutDeposit(domain.BalanceHistory)
	PutWithdraw(domain.BalanceHistory)
	PutTransfer(domain.InternalTx)
}
