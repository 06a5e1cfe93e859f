package domain

import "fmt"

// Kind enumerates the user-facing error kinds: the put_order precondition
// failures, plus KindUnknownAsset (also returned by market construction) and
// KindOrderNotFound (returned by Cancel). Every Kind is a precondition
// rejection: state is unchanged, no trades are produced, no events are emitted.
type Kind int

const (
	KindUnknownMarket Kind = iota
	KindUnknownAsset
	KindMarketOrdersDisabled
	KindAmountTooSmall
	KindFeeNotAllowed
	KindInvalidAmountPrecision
	KindInvalidPricePrecision
	KindMarketOrderHasPrice
	KindMarketPostOnly
	KindNoCounterOrders
	KindInvalidLimitPrice
	KindBalanceNotEnough
	KindDuplicateRequest
	KindOrderNotFound
)

var kindNames = map[Kind]string{
	KindUnknownMarket:          "unknown_market",
	KindUnknownAsset:           "unknown_asset",
	KindMarketOrdersDisabled:   "market_orders_disabled",
	KindAmountTooSmall:         "amount_too_small",
	KindFeeNotAllowed:          "fee_not_allowed",
	KindInvalidAmountPrecision: "invalid_amount_precision",
	KindInvalidPricePrecision:  "invalid_price_precision",
	KindMarketOrderHasPrice:    "market_order_has_price",
	KindMarketPostOnly:         "market_post_only",
	KindNoCounterOrders:        "no_counter_orders",
	KindInvalidLimitPrice:      "invalid_limit_price",
	KindBalanceNotEnough:       "balance_not_enough",
	KindDuplicateRequest:       "duplicate_request",
	KindOrderNotFound:          "order_not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown_kind"
}

// Error wraps a Kind with optional additional context. Callers should use
// errors.Is(err, &domain.Error{Kind: domain.KindBalanceNotEnough}) or the
// KindError helper rather than comparing strings.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

// Is implements the errors.Is matching protocol: two *Error values match if
// their Kind matches, regardless of Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs an *Error for kind with an optional formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindError is a sentinel usable with errors.Is: errors.Is(err, domain.KindError(domain.KindBalanceNotEnough)).
func KindError(kind Kind) error {
	return &Error{Kind: kind}
}
