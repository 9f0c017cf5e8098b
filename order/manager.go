package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport 下单/查单的交易所抽象；真实实现见 gateway.BinanceRESTClient。
type Transport interface {
	SubmitOrder(ctx context.Context, req Request) (PlacedOrder, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]PlacedOrder, error)
	CancelOrder(ctx context.Context, symbol, id string, isMargin bool) error
}

// LineSync 订单终结时移除对应的图表价格线。渲染由 chart 包负责，
// Manager 只下指令。
type LineSync interface {
	RemoveLine(id string)
}

// BalanceInvalidator 成交后通知余额数据层刷新。余额归外部数据层所有。
type BalanceInvalidator interface {
	InvalidateBalances()
}

// Hooks 是 Manager 对外协作方的可选挂点，nil 表示不接。
type Hooks struct {
	Lines    LineSync
	Balances BalanceInvalidator
}

// Manager 维护本地权威的订单工作集，并用推流事件对账。
// 工作集里的订单来自三个渠道：本地提交、冷启动 Seed、推流中发现的未知订单。
type Manager struct {
	transport Transport
	hooks     Hooks
	sm        *StateMachine
	log       *zap.Logger

	mu       sync.RWMutex
	working  map[string]*PlacedOrder
	history  []PlacedOrder
	retired  map[string]int // ID -> history 下标；终结后迟到的回报按此吸收
	onChange []func()
}

// NewManager 创建订单生命周期管理器。logger 可为 nil。
func NewManager(transport Transport, hooks Hooks, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		transport: transport,
		hooks:     hooks,
		sm:        NewStateMachine(),
		log:       log,
		working:   make(map[string]*PlacedOrder),
		retired:   make(map[string]int),
	}
}

// OnChange 注册工作集变更回调，供展示层做响应式刷新。
func (m *Manager) OnChange(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Submit 同步提交订单。交易所确认前不登记任何本地状态，
// 失败不留半提交痕迹。推流回报可能先于 HTTP 响应到达，按 ID 合并。
func (m *Manager) Submit(ctx context.Context, req Request) (PlacedOrder, error) {
	if err := req.Validate(); err != nil {
		return PlacedOrder{}, err
	}
	placed, err := m.transport.SubmitOrder(ctx, req)
	if err != nil {
		m.log.Warn("order submit rejected", zap.String("symbol", req.Symbol), zap.Error(err))
		return PlacedOrder{}, err
	}
	if placed.Status == "" {
		placed.Status = StatusPending
	}
	if placed.CreatedAt.IsZero() {
		placed.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	merged := m.mergeLocked(placed)
	result := *merged
	m.mu.Unlock()
	m.notifyChange()

	m.log.Info("order submitted",
		zap.String("id", result.ID),
		zap.String("symbol", result.Symbol),
		zap.String("side", string(result.Side)),
		zap.String("category", string(result.Category)),
		zap.Float64("qty", result.Quantity),
		zap.Float64("price", result.Price))
	return result, nil
}

// Cancel 撤单。本地先行乐观下架（立即从工作集移除），
// 再调用交易所撤单；交易所侧失败会返回给调用方，但本地下架不回滚。
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	o, ok := m.working[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownOrder
	}
	if !m.sm.CanCancel(o.Status) {
		m.mu.Unlock()
		return ErrUnknownOrder
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	symbol, isMargin := o.Symbol, o.IsMargin
	m.retireLocked(o)
	m.mu.Unlock()
	m.notifyChange()

	if m.transport == nil {
		return nil
	}
	if err := m.transport.CancelOrder(ctx, symbol, id, isMargin); err != nil {
		m.log.Warn("exchange-side cancel failed, local view already retired",
			zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// Seed 冷启动/重连后从交易所拉取开放订单并按 ID 合并进工作集。
// 推流是 at-most-once 的，重连后必须先 Seed 再信任实时事件。
func (m *Manager) Seed(ctx context.Context, symbol string) error {
	open, err := m.transport.FetchOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, o := range open {
		if o.Status == "" {
			o.Status = StatusPending
		}
		m.mergeLocked(o)
	}
	m.mu.Unlock()
	m.notifyChange()
	m.log.Info("order working set seeded", zap.String("symbol", symbol), zap.Int("open", len(open)))
	return nil
}

// Apply 处理一条推流订单事件。未知 ID 直接收编（可能来自其他客户端，
// 或与初始 Seed 竞争）；成交事件触发余额刷新；终态移除图表价格线。
func (m *Manager) Apply(ev StreamEvent) {
	o := ev.Order
	if o.ID == "" {
		return
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	m.mu.Lock()
	before, existed := m.working[o.ID]
	var prevFilled float64
	if existed {
		prevFilled = before.FilledQty
	}
	merged := m.mergeLocked(o)
	filledDelta := merged.FilledQty > prevFilled
	isFillStatus := o.Status == StatusFilled || o.Status == StatusPartiallyFilled
	m.mu.Unlock()
	m.notifyChange()

	if (isFillStatus || filledDelta) && m.hooks.Balances != nil {
		m.hooks.Balances.InvalidateBalances()
	}
}

// Working 返回活跃订单快照，按创建时间排序。
func (m *Manager) Working() []PlacedOrder {
	m.mu.RLock()
	out := make([]PlacedOrder, 0, len(m.working))
	for _, o := range m.working {
		out = append(out, *o)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// History 返回已终结订单快照（保留，不随工作集丢弃）。
func (m *Manager) History() []PlacedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PlacedOrder, len(m.history))
	copy(out, m.history)
	return out
}

// Get 按 ID 查询活跃订单。
func (m *Manager) Get(id string) (PlacedOrder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.working[id]; ok {
		return *o, true
	}
	return PlacedOrder{}, false
}

// mergeLocked 按状态优先级合并一条订单视图；终态走下架流程。
// 返回合并后的条目。调用方持有 m.mu。
func (m *Manager) mergeLocked(incoming PlacedOrder) *PlacedOrder {
	if idx, done := m.retired[incoming.ID]; done {
		// 已终结订单的迟到视图（推流回声、HTTP 确认、Seed 残留）：
		// 吸收成交量，状态不回退，订单不得复活回工作集
		h := &m.history[idx]
		if incoming.FilledQty > h.FilledQty {
			h.FilledQty = incoming.FilledQty
		}
		return h
	}

	existing, ok := m.working[incoming.ID]
	if !ok {
		if incoming.Status.IsTerminal() {
			// 未知订单直接以终态到达：收编进历史并清理价格线
			m.history = append(m.history, incoming)
			m.retired[incoming.ID] = len(m.history) - 1
			m.removeLine(incoming.ID)
			return &m.history[len(m.history)-1]
		}
		adopted := incoming
		if adopted.UpdatedAt.IsZero() {
			adopted.UpdatedAt = adopted.CreatedAt
		}
		m.working[adopted.ID] = &adopted
		return &adopted
	}

	// 低优先级回报不能覆盖高优先级状态（迟到的 pending 回声）
	if incoming.Status.Precedence() < existing.Status.Precedence() {
		if incoming.FilledQty > existing.FilledQty {
			existing.FilledQty = incoming.FilledQty
		}
		return existing
	}
	if err := m.sm.ValidateTransition(existing.Status, incoming.Status); err != nil {
		// 交易所是权威：记录异常迁移但仍然采纳
		m.log.Warn("unexpected order state transition",
			zap.String("id", incoming.ID),
			zap.String("from", string(existing.Status)),
			zap.String("to", string(incoming.Status)))
	}
	existing.Status = incoming.Status
	if incoming.FilledQty > existing.FilledQty {
		existing.FilledQty = incoming.FilledQty
	}
	if incoming.Price > 0 {
		existing.Price = incoming.Price
	}
	if incoming.StopPrice > 0 {
		existing.StopPrice = incoming.StopPrice
	}
	if !incoming.UpdatedAt.IsZero() {
		existing.UpdatedAt = incoming.UpdatedAt
	} else {
		existing.UpdatedAt = time.Now().UTC()
	}

	if existing.Status.IsTerminal() {
		m.retireLocked(existing)
		return existing
	}
	return existing
}

// retireLocked 将订单移出工作集、记入历史并移除其价格线。调用方持有 m.mu。
func (m *Manager) retireLocked(o *PlacedOrder) {
	delete(m.working, o.ID)
	m.history = append(m.history, *o)
	m.retired[o.ID] = len(m.history) - 1
	m.removeLine(o.ID)
}

func (m *Manager) removeLine(id string) {
	if m.hooks.Lines != nil {
		m.hooks.Lines.RemoveLine(id)
	}
}

func (m *Manager) notifyChange() {
	m.mu.RLock()
	fns := make([]func(), len(m.onChange))
	copy(fns, m.onChange)
	m.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
