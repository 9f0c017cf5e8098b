// 连通性探针：拉取现货+保证金开放订单与余额并打印。
// 用于验证 API key 权限与签名配置，不下任何单。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"drag-trade-go/balance"
	"drag-trade-go/config"
	"drag-trade-go/gateway"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "BTCUSDC", "交易对")
	margin := flag.Bool("margin", false, "同时查询保证金账户余额")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	restURL := cfg.Gateway.RestURL
	if restURL == "" {
		restURL = gateway.BinanceSpotRESTEndpoint
	}

	client := &gateway.BinanceRESTClient{
		BaseURL:      restURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	symbolUpper := strings.ToUpper(*symbol)
	open, err := client.FetchOpenOrders(ctx, symbolUpper)
	if err != nil {
		log.Fatalf("查询开放订单失败: %v", err)
	}
	fmt.Printf("open orders for %s: %d\n", symbolUpper, len(open))
	for _, o := range open {
		fmt.Printf("  %s %s %s qty=%g price=%g stop=%g status=%s margin=%v\n",
			o.ID, o.Side, o.Category, o.Quantity, o.Price, o.StopPrice, o.Status, o.IsMargin)
	}

	spot, err := client.FetchBalances(ctx, balance.ModeSpot)
	if err != nil {
		log.Fatalf("查询现货余额失败: %v", err)
	}
	printBalances("spot", spot)

	if *margin {
		mb, err := client.FetchBalances(ctx, balance.ModeMargin)
		if err != nil {
			log.Fatalf("查询保证金余额失败: %v", err)
		}
		printBalances("margin", mb)
	}
}

func printBalances(label string, balances map[string]balance.Snapshot) {
	fmt.Printf("%s balances (non-zero):\n", label)
	for asset, snap := range balances {
		if snap.Free == 0 && snap.Locked == 0 {
			continue
		}
		fmt.Printf("  %s free=%g locked=%g\n", asset, snap.Free, snap.Locked)
	}
}
