// Package engine 组装交易终端：手势控制器、意图构造、订单管理、
// 图表联动与推流对账在这里接线成一个可启停的整体。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"drag-trade-go/balance"
	"drag-trade-go/chart"
	"drag-trade-go/config"
	"drag-trade-go/gateway"
	"drag-trade-go/gesture"
	"drag-trade-go/infrastructure/monitor"
	"drag-trade-go/infrastructure/notify"
	"drag-trade-go/intent"
	"drag-trade-go/order"
)

// TerminalState 终端状态
type TerminalState int

const (
	// StateIdle 空闲状态
	StateIdle TerminalState = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s TerminalState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 终端配置
type Config struct {
	Symbol       string  // 交易对
	BuyQuantity  float64 // 买方向预设手数
	SellQuantity float64 // 卖方向预设手数
}

// Stream 用户数据流抽象；gateway.UserStream 实现它。
type Stream interface {
	Start(ctx context.Context) error
	Stop()
}

// Components 终端依赖组件。Monitor/Notifier/Logger 可为 nil。
type Components struct {
	Translator *chart.Translator
	Lines      *chart.LineBook
	Builder    *intent.Builder
	Orders     *order.Manager
	Balances   *balance.CachedSource
	Monitor    *monitor.Monitor
	Notifier   *notify.Notifier
	Logger     *zap.Logger
}

// Statistics 终端统计信息
type Statistics struct {
	StartTime     time.Time
	TotalDrops    int64
	TotalOrders   int64
	TotalFills    int64
	TotalRejects  int64
	LastOrderTime time.Time
	mu            sync.RWMutex
}

// Terminal 拖拽下单终端
type Terminal struct {
	config Config

	translator *chart.Translator
	lines      *chart.LineBook
	builder    *intent.Builder
	orders     *order.Manager
	balances   *balance.CachedSource
	mon        *monitor.Monitor
	notifier   *notify.Notifier
	log        *zap.Logger

	controller *gesture.Controller
	stream     Stream
	onClick    func(id string)

	state TerminalState
	mu    sync.RWMutex

	runCtx context.Context
	cancel context.CancelFunc

	stats Statistics
}

// New 创建终端并在内部完成手势控制器的接线。
func New(cfg Config, components Components) (*Terminal, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	log := components.Logger
	if log == nil {
		log = zap.NewNop()
	}

	t := &Terminal{
		config:     cfg,
		translator: components.Translator,
		lines:      components.Lines,
		builder:    components.Builder,
		orders:     components.Orders,
		balances:   components.Balances,
		mon:        components.Monitor,
		notifier:   components.Notifier,
		log:        log,
		state:      StateIdle,
	}

	t.controller = gesture.NewController(
		components.Translator,
		components.Builder,
		t.presetQuantity,
		gesture.Callbacks{
			Submit:       t.submitFromGesture,
			SetReference: components.Translator.SetReferenceMarker,
			OnClick:      t.handleClick,
			OnReject:     t.handleReject,
			OnDragStart:  t.handleDragStart,
			OnDragAbort:  t.handleDragAbort,
		},
		log,
	)

	// 工作集变化时同步图表价格线与挂单数指标
	t.orders.OnChange(t.syncLines)
	return t, nil
}

func validateConfig(cfg Config) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.BuyQuantity <= 0 || cfg.SellQuantity <= 0 {
		return errors.New("buy/sell quantity must be > 0")
	}
	return nil
}

func validateComponents(c Components) error {
	if c.Translator == nil {
		return errors.New("translator is required")
	}
	if c.Lines == nil {
		return errors.New("line book is required")
	}
	if c.Builder == nil {
		return errors.New("intent builder is required")
	}
	if c.Orders == nil {
		return errors.New("order manager is required")
	}
	if c.Balances == nil {
		return errors.New("balance source is required")
	}
	return nil
}

// AttachStream 注入用户数据流。流的回调用 Handlers() 获取，
// 因此流要在终端之后创建、Start 之前注入。
func (t *Terminal) AttachStream(s Stream) {
	t.mu.Lock()
	t.stream = s
	t.mu.Unlock()
}

// SetOnClick 注册点击回调（未达到拖拽阈值时触发，通常打开下单弹窗）。
func (t *Terminal) SetOnClick(fn func(id string)) {
	t.mu.Lock()
	t.onClick = fn
	t.mu.Unlock()
}

// Handlers 返回接给 gateway.UserStream 的回调集。
func (t *Terminal) Handlers() gateway.StreamHandlers {
	return gateway.StreamHandlers{
		OnOrderEvent:     t.applyStreamEvent,
		OnBalanceChanged: t.balances.InvalidateBalances,
		OnReconnect:      t.reseed,
		OnFatalError:     t.handleStreamFatal,
	}
}

// Start 启动终端：先 Seed 开放订单，再启动推流。
func (t *Terminal) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateRunning {
		t.mu.Unlock()
		return errors.New("terminal already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.runCtx = runCtx
	t.cancel = cancel
	t.state = StateRunning
	stream := t.stream
	t.mu.Unlock()

	t.stats.mu.Lock()
	t.stats.StartTime = time.Now()
	t.stats.mu.Unlock()

	if err := t.orders.Seed(runCtx, t.config.Symbol); err != nil {
		t.log.Warn("initial order seed failed", zap.Error(err))
	}
	if stream != nil {
		if err := stream.Start(runCtx); err != nil {
			cancel()
			t.mu.Lock()
			t.state = StateIdle
			t.mu.Unlock()
			return fmt.Errorf("start user stream: %w", err)
		}
	}
	t.log.Info("terminal started", zap.String("symbol", t.config.Symbol))
	return nil
}

// Stop 停止终端。
func (t *Terminal) Stop() {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	t.state = StateStopped
	stream := t.stream
	cancel := t.cancel
	t.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if cancel != nil {
		cancel()
	}
	t.log.Info("terminal stopped")
}

// State 返回终端状态。
func (t *Terminal) State() TerminalState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Controller 返回手势控制器，展示层把指针事件喂给它。
func (t *Terminal) Controller() *gesture.Controller {
	return t.controller
}

// Callbacks 下单结果回调，面向展示层。交易所拒单带原始错误信息，不重试。
type Callbacks struct {
	OnSuccess func(order.PlacedOrder)
	OnError   func(error)
}

// CreateOrder 展示层下单入口，绕过手势直接提交；结果经回调返回。
func (t *Terminal) CreateOrder(ctx context.Context, req order.Request, cb Callbacks) {
	placed, err := t.place(ctx, req)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(placed)
	}
}

// CreateStopOrder 弹窗流程：手填触发价的 stop_loss / take_profit 市价单。
func (t *Terminal) CreateStopOrder(ctx context.Context, side order.Side, stopPrice, quantity float64, mode balance.AccountMode) (order.PlacedOrder, error) {
	req, err := t.builder.BuildStopMarket(ctx, side, stopPrice, quantity, mode)
	if err != nil {
		t.handleReject(err)
		return order.PlacedOrder{}, err
	}
	return t.place(ctx, req)
}

func (t *Terminal) place(ctx context.Context, req order.Request) (order.PlacedOrder, error) {
	start := time.Now()
	placed, err := t.orders.Submit(ctx, req)
	if t.mon != nil {
		t.mon.RecordOrderLatency(time.Since(start).Seconds())
	}
	if err != nil {
		if t.mon != nil {
			t.mon.RecordOrderRejected()
		}
		return order.PlacedOrder{}, err
	}
	t.recordPlaced(placed)
	return placed, nil
}

// CancelOrder 撤单。本地下架即视为撤销；交易所侧失败原样上抛。
func (t *Terminal) CancelOrder(ctx context.Context, id string) error {
	if err := t.orders.Cancel(ctx, id); err != nil {
		return err
	}
	if t.mon != nil {
		t.mon.RecordOrderCancelled()
	}
	if t.notifier != nil {
		_ = t.notifier.OrderCancelled(id)
	}
	return nil
}

// PlacedOrders 返回当前挂单快照。
func (t *Terminal) PlacedOrders() []order.PlacedOrder {
	return t.orders.Working()
}

// ApplyRisk 应用热更新后的风控参数；internal/config.HotReloader 调用。
func (t *Terminal) ApplyRisk(risk config.RiskConfig) {
	t.builder.SetRisk(risk.MaxOrderValueUSD, risk.SlippagePct)
	t.log.Info("risk parameters applied",
		zap.Float64("maxOrderValueUSD", risk.MaxOrderValueUSD),
		zap.Float64("slippagePct", risk.SlippagePct))
}

// Stats 返回统计信息快照。
func (t *Terminal) Stats() (drops, orders, fills, rejects int64) {
	t.stats.mu.RLock()
	defer t.stats.mu.RUnlock()
	return t.stats.TotalDrops, t.stats.TotalOrders, t.stats.TotalFills, t.stats.TotalRejects
}

// submitFromGesture 手势落点产出的请求走这里提交。
func (t *Terminal) submitFromGesture(ctx context.Context, req order.Request) {
	t.stats.mu.Lock()
	t.stats.TotalDrops++
	t.stats.mu.Unlock()
	if t.mon != nil {
		t.mon.RecordDragCompleted()
	}

	if _, err := t.place(ctx, req); err != nil {
		if t.notifier != nil {
			_ = t.notifier.OrderRejected("exchange_rejected", err)
		}
	}
}

// handleDragStart 手势越过位移阈值、确认为拖拽。
func (t *Terminal) handleDragStart(id string) {
	if t.mon != nil {
		t.mon.RecordDragStarted()
	}
	t.log.Debug("drag started", zap.String("drag", id))
}

// handleDragAbort 拖拽在投放区外释放，未产生订单。
func (t *Terminal) handleDragAbort(id string) {
	if t.mon != nil {
		t.mon.RecordDragAborted()
	}
	t.log.Debug("drag aborted", zap.String("drag", id))
}

func (t *Terminal) recordPlaced(placed order.PlacedOrder) {
	t.stats.mu.Lock()
	t.stats.TotalOrders++
	t.stats.LastOrderTime = time.Now()
	t.stats.mu.Unlock()
	if t.mon != nil {
		t.mon.RecordOrderPlaced()
	}
	t.log.Info("order placed",
		zap.String("id", placed.ID),
		zap.String("side", string(placed.Side)),
		zap.String("category", string(placed.Category)),
		zap.Float64("price", placed.Price),
		zap.Float64("qty", placed.Quantity))
}

// handleReject 本地拒单：记指标、发通知。订单从未离开本机。
func (t *Terminal) handleReject(err error) {
	t.stats.mu.Lock()
	t.stats.TotalRejects++
	t.stats.mu.Unlock()

	reason := string(intent.ReasonOf(err))
	if reason == "" {
		reason = "unknown"
	}
	if t.mon != nil {
		t.mon.RecordIntentReject(reason)
	}
	if t.notifier != nil {
		_ = t.notifier.OrderRejected(reason, err)
	}
}

func (t *Terminal) handleClick(id string) {
	t.mu.RLock()
	fn := t.onClick
	t.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

// applyStreamEvent 推流订单事件：先记指标再交给 Manager 对账。
func (t *Terminal) applyStreamEvent(ev order.StreamEvent) {
	if ev.Order.Status == order.StatusFilled {
		t.stats.mu.Lock()
		t.stats.TotalFills++
		t.stats.mu.Unlock()
		if t.mon != nil {
			t.mon.RecordOrderFilled()
		}
		if t.notifier != nil {
			_ = t.notifier.OrderFilled(ev.Order.ID, ev.Order.Symbol, ev.Order.FilledQty)
		}
	}
	t.orders.Apply(ev)
}

// reseed 推流（重）连成功后重新拉取开放订单，弥补断线期间丢失的事件。
func (t *Terminal) reseed() {
	t.mu.RLock()
	ctx := t.runCtx
	t.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if t.mon != nil {
		t.mon.RecordWSReconnect()
	}
	if err := t.orders.Seed(ctx, t.config.Symbol); err != nil {
		t.log.Warn("reseed after reconnect failed", zap.Error(err))
	}
}

func (t *Terminal) handleStreamFatal(err error) {
	t.log.Error("user stream gave up reconnecting", zap.Error(err))
	if t.notifier != nil {
		_ = t.notifier.Send(notify.Notice{
			Level:   notify.LevelError,
			Message: "user data stream down, order states may be stale",
			Fields:  map[string]interface{}{"error": err.Error()},
		})
	}
}

// syncLines 把工作集映射为图表价格线；终态订单的线由 Manager 经
// LineSync 钩子移除，这里只负责新增与刷新。
func (t *Terminal) syncLines() {
	working := t.orders.Working()
	if t.mon != nil {
		t.mon.UpdateActiveOrders(len(working))
	}
	for _, o := range working {
		price := o.Price
		if price <= 0 {
			price = o.StopPrice
		}
		if price <= 0 {
			continue
		}
		t.lines.Add(o.ID, chart.OrderLineSpec(o.Side, o.Category, price, o.Quantity))
	}
}

// presetQuantity 返回该方向预设的下单数量。
func (t *Terminal) presetQuantity(side order.Side) float64 {
	if side == order.SideSell {
		return t.config.SellQuantity
	}
	return t.config.BuyQuantity
}
