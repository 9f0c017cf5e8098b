// Package intent converts drop gestures and modal input into validated,
// exchange-compliant order requests. All rejections happen here, locally;
// nothing half-built ever reaches the gateway.
package intent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"drag-trade-go/balance"
	"drag-trade-go/order"
	"drag-trade-go/precision"
)

// OrderMode 下单模式：限价 / 止损限价。
type OrderMode string

const (
	ModeLimit     OrderMode = "limit"
	ModeStopLimit OrderMode = "stop_limit"
)

// DefaultSlippagePct 止损限价单中限价相对触发价的让价比例，
// 保证触发后优先成交。
const DefaultSlippagePct = 0.001

// Drop 一次拖拽落点的全部输入。Quantity 是该方向预先算好的下单数量。
type Drop struct {
	Y           float64
	Side        order.Side
	OrderMode   OrderMode
	AccountMode balance.AccountMode
	Quantity    float64
}

// PriceResolver 将纵向像素坐标解析为价格；chart.Translator 实现它。
type PriceResolver interface {
	PriceAtY(y float64) (float64, bool)
}

// MarketData 行情侧依赖：最新成交价与交易对精度规则。
// 规则异步加载，未就绪时返回零值，精度退回量级启发式。
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	Rule(symbol string) precision.SymbolRule
}

// Config Builder 的静态参数。
type Config struct {
	Symbol        string
	BaseAsset     string
	QuoteAsset    string
	MaxOrderValue float64 // 单笔名义价值上限（风控参数，非交易所规则）
	SlippagePct   float64 // 0 取 DefaultSlippagePct
}

// Builder 订单意图构造器。风控参数（上限、让价）可在运行期热更新。
type Builder struct {
	mu       sync.RWMutex
	cfg      Config
	resolver PriceResolver
	market   MarketData
	balances balance.Source
	log      *zap.Logger
}

// NewBuilder 创建构造器。log 可为 nil。
func NewBuilder(cfg Config, resolver PriceResolver, market MarketData, balances balance.Source, log *zap.Logger) *Builder {
	if cfg.SlippagePct <= 0 {
		cfg.SlippagePct = DefaultSlippagePct
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{cfg: cfg, resolver: resolver, market: market, balances: balances, log: log}
}

// SetRisk 热更新风控参数。非法值保持现值不变。
func (b *Builder) SetRisk(maxOrderValue, slippagePct float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if maxOrderValue > 0 {
		b.cfg.MaxOrderValue = maxOrderValue
	}
	if slippagePct > 0 && slippagePct < 0.1 {
		b.cfg.SlippagePct = slippagePct
	}
}

func (b *Builder) maxOrderValue() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.MaxOrderValue
}

func (b *Builder) slippagePct() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.SlippagePct
}

// BuildFromDrop 将拖拽落点转换为下单请求，或带原因拒绝。
func (b *Builder) BuildFromDrop(ctx context.Context, drop Drop) (order.Request, error) {
	raw, ok := b.resolver.PriceAtY(drop.Y)
	if !ok || raw <= 0 {
		return order.Request{}, reject(ReasonInvalidPrice, fmt.Errorf("no price at y=%.1f", drop.Y))
	}

	rule := b.market.Rule(b.cfg.Symbol)
	price := precision.RoundToPrecision(raw, precision.PricePrecisionFor(rule, raw))
	qty := precision.RoundToStepSize(drop.Quantity, precision.QuantityPrecisionFor(rule, raw))

	req, err := b.build(ctx, drop.Side, drop.OrderMode, drop.AccountMode, price, qty, rule)
	if err != nil {
		return order.Request{}, err
	}
	return req, nil
}

// BuildStopMarket 弹窗流程：用户手填触发价，产出无限价的 stop_loss /
// take_profit 市价单。分类逻辑与拖拽流程完全一致。
func (b *Builder) BuildStopMarket(ctx context.Context, side order.Side, stopPrice, quantity float64, mode balance.AccountMode) (order.Request, error) {
	if stopPrice <= 0 {
		return order.Request{}, reject(ReasonInvalidPrice, fmt.Errorf("stop price must be > 0"))
	}
	rule := b.market.Rule(b.cfg.Symbol)
	stop := precision.RoundToPrecision(stopPrice, precision.PricePrecisionFor(rule, stopPrice))
	qty := precision.RoundToStepSize(quantity, precision.QuantityPrecisionFor(rule, stopPrice))

	if err := precision.ValidateOrderValue(qty, stop, b.maxOrderValue()); err != nil {
		return order.Request{}, reject(ReasonValueExceeded, err)
	}
	if err := b.checkBalance(ctx, side, mode, qty, stop); err != nil {
		return order.Request{}, err
	}

	current, err := b.market.CurrentPrice(ctx, b.cfg.Symbol)
	if err != nil {
		return order.Request{}, reject(ReasonInvalidPrice, fmt.Errorf("current price: %w", err))
	}
	category := order.CategoryStopLoss
	if ClassifyStop(side, stop, current) == KindTakeProfit {
		category = order.CategoryTakeProfit
	}

	return order.Request{
		Symbol:    b.cfg.Symbol,
		Side:      side,
		Category:  category,
		Quantity:  qty,
		StopPrice: stop,
		IsMargin:  mode == balance.ModeMargin,
	}, nil
}

func (b *Builder) build(ctx context.Context, side order.Side, om OrderMode, am balance.AccountMode, price, qty float64, rule precision.SymbolRule) (order.Request, error) {
	if err := precision.ValidateOrderValue(qty, price, b.maxOrderValue()); err != nil {
		return order.Request{}, reject(ReasonValueExceeded, err)
	}
	if err := b.checkBalance(ctx, side, am, qty, price); err != nil {
		return order.Request{}, err
	}

	req := order.Request{
		Symbol:   b.cfg.Symbol,
		Side:     side,
		Quantity: qty,
		IsMargin: am == balance.ModeMargin,
	}

	switch om {
	case ModeStopLimit:
		current, err := b.market.CurrentPrice(ctx, b.cfg.Symbol)
		if err != nil {
			return order.Request{}, reject(ReasonInvalidPrice, fmt.Errorf("current price: %w", err))
		}
		req.Category = order.CategoryStopLossLimit
		if ClassifyStop(side, price, current) == KindTakeProfit {
			req.Category = order.CategoryTakeProfitLimit
		}
		req.StopPrice = price
		req.Price = b.limitFromStop(side, price, rule)
	default:
		req.Category = order.CategoryLimit
		req.Price = price
	}
	return req, nil
}

// limitFromStop 在触发价上按让价比例偏移：买单限价高于触发价、
// 卖单低于触发价，保证触发后吃到对手价。
func (b *Builder) limitFromStop(side order.Side, stop float64, rule precision.SymbolRule) float64 {
	slip := b.slippagePct()
	limit := stop * (1 + slip)
	if side == order.SideSell {
		limit = stop * (1 - slip)
	}
	return precision.RoundToPrecision(limit, precision.PricePrecisionFor(rule, stop))
}

// checkBalance 计算有效可用余额并校验。卖单占用基础资产，买单占用计价
// 资产；保证金模式各自叠加最大可借额度。
func (b *Builder) checkBalance(ctx context.Context, side order.Side, mode balance.AccountMode, qty, price float64) error {
	asset := b.cfg.BaseAsset
	needed := qty
	if side == order.SideBuy {
		asset = b.cfg.QuoteAsset
		needed = qty * price
	}

	snap, err := b.balances.Available(ctx, asset, mode)
	if err != nil {
		return reject(ReasonInsufficientBalance, fmt.Errorf("balance lookup: %w", err))
	}
	available := snap.Free
	if mode == balance.ModeMargin {
		borrowable, err := b.balances.MaxBorrowable(ctx, asset)
		if err != nil {
			return reject(ReasonInsufficientBalance, fmt.Errorf("borrowable lookup: %w", err))
		}
		available += borrowable
	}
	if err := precision.ValidateBalance(needed, available, asset, snap.Locked); err != nil {
		return reject(ReasonInsufficientBalance, err)
	}
	return nil
}
