package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clobcore/domain"
	"clobcore/eventsink"
	"clobcore/ledger"
	"clobcore/matching"
	"clobcore/orderbook"
)

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	registry := domain.NewAssetRegistry(log)
	registry.Register(
		domain.AssetConfig{ID: "BTC", SavePrecision: 8, ShowPrecision: 8},
		domain.AssetConfig{ID: "USDT", SavePrecision: 8, ShowPrecision: 2},
	)
	led := ledger.New(registry, log)
	sink := eventsink.NewMemorySink()

	exchange := matching.NewExchange(registry, led, sink, domain.GlobalSettings{}, log)

	worker, err := exchange.RegisterMarket(domain.MarketConfig{
		Name:            "BTCUSDT",
		Base:            "BTC",
		Quote:           "USDT",
		AmountPrecision: 4,
		PricePrecision:  2,
		FeePrecision:    4,
		MinAmount:       decimal.New(1, -4),
	}, orderbook.RedBlackTreeKind)
	if err != nil {
		panic(err)
	}
	defer worker.Stop()

	fmt.Println("Exchange started")
	fmt.Println("BTCUSDT matching engine registered")

	led.Add(1, domain.BucketAvailable, "BTC", decimal.New(1, 0))
	led.Add(2, domain.BucketAvailable, "USDT", decimal.New(50000, 0))

	sellOrder, err := exchange.SubmitOrder("BTCUSDT", domain.OrderInput{
		UserID: 1, Side: domain.SideAsk, Type: domain.OrderTypeLimit,
		Amount: decimal.New(1, 0), Price: decimal.New(50000, 0), Market: "BTCUSDT",
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Submitted sell order %d: 1 BTC @ 50000 USDT\n", sellOrder.ID)

	buyOrder, err := exchange.SubmitOrder("BTCUSDT", domain.OrderInput{
		UserID: 2, Side: domain.SideBid, Type: domain.OrderTypeLimit,
		Amount: decimal.New(5, -1), Price: decimal.New(50000, 0), Market: "BTCUSDT",
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Submitted buy order %d: 0.5 BTC @ 50000 USDT\n", buyOrder.ID)

	time.Sleep(50 * time.Millisecond)

	for _, trade := range sink.Trades {
		fmt.Printf("Trade executed: #%d price=%s base=%s ask_user=%d bid_user=%d\n",
			trade.ID, trade.Price, trade.BaseAmount, trade.AskUserID, trade.BidUserID)
	}

	status := worker.Status()
	fmt.Printf("Book status: %d asks / %d bids resting, %d trades total\n", status.AskOrders, status.BidOrders, status.Trades)
}
