package main

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"clobcore/domain"
	"clobcore/eventsink"
	"clobcore/ledger"
	"clobcore/matching"
	"clobcore/orderbook"
)

func main() {
	fmt.Println("=== 交易所撮合系统性能测试 ===")

	registry := domain.NewAssetRegistry(nil)
	registry.Register(
		domain.AssetConfig{ID: "BTC", SavePrecision: 8, ShowPrecision: 8},
		domain.AssetConfig{ID: "USDT", SavePrecision: 8, ShowPrecision: 2},
	)
	led := ledger.New(registry, nil)
	sink := eventsink.NoopSink{}

	exchange := matching.NewExchange(registry, led, sink, domain.GlobalSettings{DisableSelfTrade: true}, nil)
	worker, err := exchange.RegisterMarket(domain.MarketConfig{
		Name: "BTCUSDT", Base: "BTC", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2, FeePrecision: 4,
		MinAmount: decimal.New(1, -4),
	}, orderbook.RedBlackTreeKind)
	if err != nil {
		panic(err)
	}
	defer worker.Stop()

	testDuration := 5 * time.Second
	numCPU := runtime.NumCPU()
	numWorkers := numCPU - 2 // 1 个给撮合 goroutine，1 个给系统/GC
	if numWorkers < 1 {
		numWorkers = 1
	}

	var orderCount, tradeCount atomic.Int64

	fmt.Printf("开始测试...\n")
	fmt.Printf("CPU 核心数: %d\n", numCPU)
	fmt.Printf("生产者数量: %d (NumCPU - 2)\n", numWorkers)
	fmt.Printf("测试时长: %v\n\n", testDuration)

	// Every worker-user gets a large pre-funded balance on both sides so
	// that precondition checks never reject an order mid-run.
	for w := 0; w < numWorkers; w++ {
		led.Add(uint32(w), domain.BucketAvailable, "BTC", decimal.New(10_000_000, 0))
		led.Add(uint32(w), domain.BucketAvailable, "USDT", decimal.New(1_000_000_000, 0))
	}

	startTime := time.Now()
	stopChan := make(chan struct{})

	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			orderID := 0
			for {
				select {
				case <-stopChan:
					return
				default:
					var side domain.Side
					if orderID%2 == 0 {
						side = domain.SideBid
					} else {
						side = domain.SideAsk
					}
					price := decimal.New(50000+int64(orderID%200), 0) // 50000-50199, overlapping

					_, err := worker.PutOrder(domain.OrderInput{
						UserID: uint32(workerID), Side: side, Type: domain.OrderTypeLimit,
						Amount: decimal.New(1, -4), Price: price, Market: "BTCUSDT",
					})
					if err == nil {
						orderCount.Add(1)
					}
					orderID++
				}
			}
		}(w)
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			orders := orderCount.Load()
			tradeCount.Store(int64(worker.Status().Trades))
			trades := tradeCount.Load()
			qps := float64(orders) / elapsed.Seconds()
			tps := float64(trades) / elapsed.Seconds()
			fmt.Printf("[%.0fs] 订单: %d (%.0f/s) | 成交: %d (%.0f/s)\n",
				elapsed.Seconds(), orders, qps, trades, tps)
		}
	}()

	time.Sleep(testDuration)
	close(stopChan)
	ticker.Stop()
	time.Sleep(200 * time.Millisecond)

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := int64(worker.Status().Trades)

	qps := float64(totalOrders) / elapsed.Seconds()
	tps := float64(totalTrades) / elapsed.Seconds()
	avgLatency := elapsed.Seconds() * 1e6 / float64(totalOrders)
	matchRate := float64(totalTrades) / float64(totalOrders) * 100

	fmt.Println("\n=== 性能测试结果 ===")
	fmt.Printf("测试时长:     %v\n", elapsed)
	fmt.Printf("总订单数:     %d\n", totalOrders)
	fmt.Printf("总成交数:     %d\n", totalTrades)
	fmt.Printf("订单吞吐量:   %.0f orders/sec\n", qps)
	fmt.Printf("成交吞吐量:   %.0f trades/sec\n", tps)
	fmt.Printf("平均延迟:     %.2f μs/order\n", avgLatency)
	fmt.Printf("撮合率:       %.2f%%\n", matchRate)

	status := worker.Status()
	fmt.Println("\n=== 订单簿状态 ===")
	fmt.Printf("挂单数 (买/卖): %d / %d\n", status.BidOrders, status.AskOrders)

	bids, asks := worker.Depth(5, decimal.Zero)
	fmt.Println("\n买单深度 (前5档):")
	for i, level := range bids {
		fmt.Printf("  %d. 价格: %s, 数量: %s, 订单数: %d\n", i+1, level.Price, level.Volume, level.Orders.Len())
	}
	fmt.Println("\n卖单深度 (前5档):")
	for i, level := range asks {
		fmt.Printf("  %d. 价格: %s, 数量: %s, 订单数: %d\n", i+1, level.Price, level.Volume, level.Orders.Len())
	}
}
