package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"drag-trade-go/balance"
	"drag-trade-go/order"
)

// MockGateway 模拟交易所网关（用于集成测试）。
// 实现 order.Transport 与 balance.Fetcher，并能按需产出推流回报。
type MockGateway struct {
	mu sync.Mutex

	// 配置
	submitErr error
	cancelErr error

	// 订单存储
	nextID int
	orders map[string]order.PlacedOrder

	// 余额
	balances map[balance.AccountMode]map[string]balance.Snapshot
	borrow   map[string]float64

	// 统计
	submitCount int
	cancelCount int
	fetchCount  int
	balCount    int
}

// NewMockGateway 创建模拟网关
func NewMockGateway() *MockGateway {
	return &MockGateway{
		orders: make(map[string]order.PlacedOrder),
		balances: map[balance.AccountMode]map[string]balance.Snapshot{
			balance.ModeSpot:   {},
			balance.ModeMargin: {},
		},
		borrow: make(map[string]float64),
	}
}

// SetBalance 设置某模式下的资产余额
func (m *MockGateway) SetBalance(mode balance.AccountMode, asset string, free, locked float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[mode][asset] = balance.Snapshot{Free: free, Locked: locked}
}

// SetMaxBorrowable 设置保证金最大可借额度
func (m *MockGateway) SetMaxBorrowable(asset string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrow[asset] = amount
}

// SetSubmitError 设置下单失败注入
func (m *MockGateway) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// SubmitOrder 接受订单并登记为 pending
func (m *MockGateway) SubmitOrder(_ context.Context, req order.Request) (order.PlacedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCount++
	if m.submitErr != nil {
		return order.PlacedOrder{}, m.submitErr
	}
	m.nextID++
	placed := order.PlacedOrder{
		ID:        fmt.Sprintf("%d", m.nextID),
		Symbol:    strings.ToUpper(req.Symbol),
		Side:      req.Side,
		Category:  req.Category,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Quantity:  req.Quantity,
		Status:    order.StatusPending,
		IsMargin:  req.IsMargin,
	}
	m.orders[placed.ID] = placed
	return placed, nil
}

// FetchOpenOrders 返回所有非终态订单
func (m *MockGateway) FetchOpenOrders(_ context.Context, symbol string) ([]order.PlacedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCount++
	var out []order.PlacedOrder
	for _, o := range m.orders {
		if o.Symbol == strings.ToUpper(symbol) && !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

// CancelOrder 将订单标记为已撤销
func (m *MockGateway) CancelOrder(_ context.Context, _, id string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCount++
	if m.cancelErr != nil {
		return m.cancelErr
	}
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("unknown order %s", id)
	}
	o.Status = order.StatusCancelled
	m.orders[id] = o
	return nil
}

// FetchBalances 返回模式下的余额表
func (m *MockGateway) FetchBalances(_ context.Context, mode balance.AccountMode) (map[string]balance.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balCount++
	out := make(map[string]balance.Snapshot, len(m.balances[mode]))
	for k, v := range m.balances[mode] {
		out[k] = v
	}
	return out, nil
}

// FetchMaxBorrowable 返回最大可借额度
func (m *MockGateway) FetchMaxBorrowable(_ context.Context, asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.borrow[asset], nil
}

// Fill 模拟交易所成交：生成对应订单的成交推流事件
func (m *MockGateway) Fill(id string) (order.StreamEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.StreamEvent{}, false
	}
	o.Status = order.StatusFilled
	o.FilledQty = o.Quantity
	m.orders[id] = o
	return order.StreamEvent{Order: o}, true
}

// Counts 返回调用统计：下单/撤单/查单/查余额
func (m *MockGateway) Counts() (submit, cancel, fetch, bal int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCount, m.cancelCount, m.fetchCount, m.balCount
}
