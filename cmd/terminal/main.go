package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"drag-trade-go/balance"
	"drag-trade-go/chart"
	"drag-trade-go/config"
	"drag-trade-go/gateway"
	"drag-trade-go/infrastructure/logger"
	"drag-trade-go/infrastructure/monitor"
	"drag-trade-go/infrastructure/notify"
	internalcfg "drag-trade-go/internal/config"
	"drag-trade-go/internal/engine"
	"drag-trade-go/intent"
	"drag-trade-go/order"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "BTCUSDC", "交易对（例如 BTCUSDC）")
	restRate := flag.Float64("restRate", 5, "REST 限流：每秒令牌数")
	restBurst := flag.Int("restBurst", 10, "REST 限流：最大突发令牌数")
	metricsAddr := flag.String("metricsAddr", ":9101", "Prometheus metrics 监听地址，留空则关闭")
	logLevel := flag.String("logLevel", "info", "日志级别")
	hotReload := flag.Bool("hotReload", true, "启用风控参数热更新")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	symbolUpper := strings.ToUpper(*symbol)
	symConf, ok := cfg.Symbols[symbolUpper]
	if !ok {
		log.Fatalf("symbol %s not found in config", symbolUpper)
	}

	appLog, err := logger.New(logger.Config{Level: *logLevel, Outputs: []string{"stdout"}, Format: "json"})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer appLog.Close()
	zlog := appLog.Logger

	mon := monitor.New(monitor.DefaultConfig())
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, mon, zlog)
	}

	restURL := cfg.Gateway.RestURL
	if restURL == "" {
		restURL = gateway.BinanceSpotRESTEndpoint
	}
	wsEndpoint := cfg.Gateway.WSEndpoint
	if wsEndpoint == "" {
		wsEndpoint = gateway.BinanceSpotWSEndpoint
	}

	restClient := &gateway.BinanceRESTClient{
		BaseURL:      restURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      gateway.NewTokenBucketLimiter(*restRate, *restBurst),
		ErrorHook:    mon.RecordRESTError,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 预热交易所精度规则，失败时退回量级启发式
	if _, err := restClient.WarmRule(ctx, symbolUpper); err != nil {
		zlog.Warn("exchange rule warm-up failed, falling back to heuristics", zap.Error(err))
	}

	renderer := newLogRenderer(zlog)
	viewport := chart.NewViewport()
	translator := chart.NewTranslator(viewport, renderer, lastPriceFunc(ctx, restClient, symbolUpper), zlog)
	lines := chart.NewLineBook(renderer)

	balances := balance.NewCachedSource(restClient, time.Duration(cfg.Balance.CacheTTLSeconds)*time.Second)

	builder := intent.NewBuilder(intent.Config{
		Symbol:        symbolUpper,
		BaseAsset:     symConf.BaseAsset,
		QuoteAsset:    symConf.QuoteAsset,
		MaxOrderValue: cfg.Risk.MaxOrderValueUSD,
		SlippagePct:   cfg.Risk.SlippagePct,
	}, translator, restClient, balances, zlog)

	notifier := notify.NewNotifier([]notify.Channel{notify.NewLogChannel("log", zlog)}, 30*time.Second)
	orders := order.NewManager(restClient, order.Hooks{Lines: lines, Balances: balances}, zlog)

	term, err := engine.New(engine.Config{
		Symbol:       symbolUpper,
		BuyQuantity:  symConf.BuyQuantity,
		SellQuantity: symConf.SellQuantity,
	}, engine.Components{
		Translator: translator,
		Lines:      lines,
		Builder:    builder,
		Orders:     orders,
		Balances:   balances,
		Monitor:    mon,
		Notifier:   notifier,
		Logger:     zlog,
	})
	if err != nil {
		log.Fatalf("初始化终端失败: %v", err)
	}

	lkClient := &gateway.ListenKeyClient{
		BaseURL:    restURL,
		APIKey:     cfg.Gateway.APIKey,
		HTTPClient: gateway.NewListenKeyHTTPClient(),
	}
	stream := gateway.NewUserStream(wsEndpoint, lkClient, term.Handlers(), zlog)
	term.AttachStream(stream)

	if err := term.Start(ctx); err != nil {
		log.Fatalf("启动终端失败: %v", err)
	}

	var reloader *internalcfg.HotReloader
	if *hotReload {
		reloader, err = internalcfg.NewHotReloader(*cfgPath, internalcfg.DefaultHotReloadConfig(), term, zlog)
		if err == nil {
			err = reloader.Start(ctx)
		}
		if err != nil {
			// inotify 不可用时退回 mtime 轮询
			zlog.Warn("fsnotify hot reload unavailable, falling back to polling", zap.Error(err))
			reloader = nil
			go func() {
				poller := config.RiskPoller{Path: *cfgPath, Interval: 10 * time.Second}
				_ = poller.Run(ctx, term.ApplyRisk)
			}()
		}
	}

	// systemd 就绪通知；非 systemd 环境下为空操作
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	zlog.Info("drag-trade terminal ready", zap.String("symbol", symbolUpper))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if reloader != nil {
		_ = reloader.Stop()
	}
	term.Stop()
	zlog.Info("shutdown complete")
}

func serveMetrics(addr string, mon *monitor.Monitor, zlog *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mon.Handler())
	zlog.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		zlog.Warn("metrics server stopped", zap.Error(err))
	}
}

// lastPriceFunc 预览线百分比标签用的最近价读取器；
// REST 客户端内部带短缓存，拖拽期间不会打爆接口。
func lastPriceFunc(ctx context.Context, c *gateway.BinanceRESTClient, symbol string) chart.LastPriceFunc {
	return func() float64 {
		price, err := c.CurrentPrice(ctx, symbol)
		if err != nil {
			return 0
		}
		return price
	}
}
