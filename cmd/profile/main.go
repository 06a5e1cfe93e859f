package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
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
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	pprof.StartCPUProfile(cpuFile)
	defer pprof.StopCPUProfile()

	fmt.Println("=== 性能分析开始 ===")
	fmt.Println("生成 CPU profile: cpu.prof")

	registry := domain.NewAssetRegistry(nil)
	registry.Register(
		domain.AssetConfig{ID: "BTC", SavePrecision: 8, ShowPrecision: 8},
		domain.AssetConfig{ID: "USDT", SavePrecision: 8, ShowPrecision: 2},
	)
	led := ledger.New(registry, nil)
	exchange := matching.NewExchange(registry, led, eventsink.NoopSink{}, domain.GlobalSettings{DisableSelfTrade: true}, nil)
	worker, err := exchange.RegisterMarket(domain.MarketConfig{
		Name: "BTCUSDT", Base: "BTC", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2, FeePrecision: 4,
		MinAmount: decimal.New(1, -4),
	}, orderbook.RedBlackTreeKind)
	if err != nil {
		panic(err)
	}
	defer worker.Stop()

	duration := 10 * time.Second
	numCPU := runtime.NumCPU()
	numWorkers := numCPU - 2
	if numWorkers < 1 {
		numWorkers = 1
	}

	var orderCount atomic.Int64

	for w := 0; w < numWorkers; w++ {
		led.Add(uint32(w), domain.BucketAvailable, "BTC", decimal.New(10_000_000, 0))
		led.Add(uint32(w), domain.BucketAvailable, "USDT", decimal.New(1_000_000_000, 0))
	}

	fmt.Printf("CPU 核心数: %d\n", numCPU)
	fmt.Printf("生产者数量: %d\n", numWorkers)
	fmt.Printf("测试时长: %v\n\n", duration)

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
					price := decimal.New(50000+int64(orderID%200), 0)

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

	time.Sleep(duration)
	close(stopChan)
	time.Sleep(200 * time.Millisecond)

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := int64(worker.Status().Trades)

	fmt.Println("\n=== 性能测试结果 ===")
	fmt.Printf("总订单数: %d\n", totalOrders)
	fmt.Printf("总成交数: %d\n", totalTrades)
	fmt.Printf("Order QPS: %.0f orders/sec\n", float64(totalOrders)/elapsed.Seconds())
	fmt.Printf("Trade TPS: %.0f trades/sec\n", float64(totalTrades)/elapsed.Seconds())

	fmt.Println("\n分析 CPU profile:")
	fmt.Println("  go tool pprof -http=:8080 cpu.prof")
	fmt.Println("  或者: go tool pprof cpu.prof")
	fmt.Println("  然后输入: top10  (查看前 10 个热点函数)")
	fmt.Println("  然后输入: list <函数名>  (查看具体代码)")
}
