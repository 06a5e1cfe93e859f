package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MarketConfig is the operator-supplied definition of one market.
type MarketConfig struct {
	Name            string
	Base            string
	Quote           string
	AmountPrecision uint
	PricePrecision  uint
	FeePrecision    uint
	MinAmount       decimal.Decimal
	BasePrecision   uint
	QuotePrecision  uint
}

// GlobalSettings are process-wide matching policy switches, set once at
// startup and read (never written) from the single matching goroutine.
type GlobalSettings struct {
	DisableSelfTrade   bool
	DisableMarketOrder bool
	SignatureCheck     SignatureCheckPolicy
}

// SignatureCheckPolicy controls whether and how order signatures are
// validated. The core treats signatures as opaque bytes regardless of
// policy; actual cryptographic verification is an external collaborator.
type SignatureCheckPolicy int

const (
	SignatureCheckOff SignatureCheckPolicy = iota
	SignatureCheckValidate
	SignatureCheckValidateAndReject
)

// Market holds the per-market configuration and the single mutable field
// (LastTradePrice) that matching updates. It does not own the order book or
// balances (those belong to the matching engine and ledger respectively)
// but it is the source of truth for precision and fee-rounding rules.
type Market struct {
	Name            string
	Base            string
	Quote           string
	AmountPrecision uint
	PricePrecision  uint
	FeePrecision    uint
	MinAmount       decimal.Decimal

	mu             sync.RWMutex
	lastTradePrice decimal.Decimal
}

// NewMarket validates cfg against registry and constructs a Market.
// Invariants enforced at construction, per the data model: base and quote
// must exist; amount_precision <= base.save_precision; amount_precision +
// price_precision <= quote.save_precision.
func NewMarket(cfg MarketConfig, registry *AssetRegistry) (*Market, error) {
	base, ok := registry.Get(cfg.Base)
	if !ok {
		return nil, NewError(KindUnknownAsset, "base asset %q not registered", cfg.Base)
	}
	quote, ok := registry.Get(cfg.Quote)
	if !ok {
		return nil, NewError(KindUnknownAsset, "quote asset %q not registered", cfg.Quote)
	}
	if cfg.AmountPrecision > base.SavePrecision {
		return nil, fmt.Errorf("clobcore/domain: market %q amount_precision %d exceeds base save_precision %d", cfg.Name, cfg.AmountPrecision, base.SavePrecision)
	}
	if cfg.AmountPrecision+cfg.PricePrecision > quote.SavePrecision {
		return nil, fmt.Errorf("clobcore/domain: market %q amount_precision+price_precision %d exceeds quote save_precision %d", cfg.Name, cfg.AmountPrecision+cfg.PricePrecision, quote.SavePrecision)
	}
	// The stricter headroom check for fee rounding (amount_precision+fee_precision
	// against base, and amount_precision+price_precision+fee_precision against
	// quote) only applies when fee rounding is disallowed; this deployment always
	// allows it, so that branch is intentionally elided.
	return &Market{
		Name:            Intern(cfg.Name),
		Base:            base.ID,
		Quote:           quote.ID,
		AmountPrecision: cfg.AmountPrecision,
		PricePrecision:  cfg.PricePrecision,
		FeePrecision:    cfg.FeePrecision,
		MinAmount:       cfg.MinAmount,
	}, nil
}

// LastTradePrice returns the most recent trade price, or zero if the market
// has not traded yet.
func (m *Market) LastTradePrice() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastTradePrice
}

// SetLastTradePrice records price as the market's most recent trade price.
// Called only from the single matching goroutine that owns this market, but
// guarded anyway since LastTradePrice may be read concurrently from a
// status/depth query on another goroutine.
func (m *Market) SetLastTradePrice(price decimal.Decimal) {
	m.mu.Lock()
	m.lastTradePrice = price
	m.mu.Unlock()
}

// RoundAmount truncates v toward zero at the market's amount precision.
func (m *Market) RoundAmount(v decimal.Decimal) decimal.Decimal {
	return v.Truncate(int32(m.AmountPrecision))
}

// RoundPrice rounds v half-even at the market's price precision.
func (m *Market) RoundPrice(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(int32(m.PricePrecision))
}
