package matching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clobcore/domain"
	"clobcore/eventsink"
	"clobcore/ledger"
	"clobcore/orderbook"
)

func newExchangeFixture(t *testing.T) (*Exchange, *ledger.Ledger) {
	t.Helper()
	registry := domain.NewAssetRegistry(nil)
	registry.Register(
		domain.AssetConfig{ID: "ETH", SavePrecision: 8, ShowPrecision: 8},
		domain.AssetConfig{ID: "USDT", SavePrecision: 8, ShowPrecision: 2},
	)
	led := ledger.New(registry, nil)
	ex := NewExchange(registry, led, eventsink.NewMemorySink(), domain.GlobalSettings{}, nil)
	t.Cleanup(ex.StopAll)
	return ex, led
}

func TestExchangeRejectsUnknownMarket(t *testing.T) {
	ex, _ := newExchangeFixture(t)
	_, err := ex.SubmitOrder("NOPE", domain.OrderInput{})
	require.ErrorIs(t, err, domain.KindError(domain.KindUnknownMarket))
	require.ErrorIs(t, ex.CancelOrder("NOPE", 1), domain.KindError(domain.KindUnknownMarket))
}

func TestExchangeRegisterAndSubmitRoundTrip(t *testing.T) {
	ex, led := newExchangeFixture(t)
	_, err := ex.RegisterMarket(domain.MarketConfig{
		Name: "ETHUSDT", Base: "ETH", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2, FeePrecision: 4,
		MinAmount: d("0.001"),
	}, orderbook.ListTreeKind)
	require.NoError(t, err)

	led.Add(1, domain.BucketAvailable, "ETH", d("10"))
	order, err := ex.SubmitOrder("ETHUSDT", domain.OrderInput{
		UserID: 1, Side: domain.SideAsk, Type: domain.OrderTypeLimit,
		Amount: d("1.0000"), Price: d("100.00"), Market: "ETHUSDT",
	})
	require.NoError(t, err)
	require.NoError(t, ex.CancelOrder("ETHUSDT", order.ID))
	require.True(t, led.Get(1, domain.BucketAvailable, "ETH").Equal(d("10")))
}

func TestExchangeRegisterMarketRejectsUnknownAsset(t *testing.T) {
	ex, _ := newExchangeFixture(t)
	_, err := ex.RegisterMarket(domain.MarketConfig{
		Name: "FOOUSDT", Base: "FOO", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2,
		MinAmount: d("0.001"),
	}, orderbook.ListTreeKind)
	require.ErrorIs(t, err, domain.KindError(domain.KindUnknownAsset))
}
