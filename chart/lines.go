package chart

import (
	"fmt"
	"strings"
	"sync"

	"drag-trade-go/order"
)

// OrderLineSpec 为挂单生成价格线样式：按方向着色，标签带类别与数量。
func OrderLineSpec(side order.Side, category order.Category, price, qty float64) LineSpec {
	color := buyLineColor
	if side == order.SideSell {
		color = sellLineColor
	}
	return LineSpec{
		Price: price,
		Color: color,
		Style: "solid",
		Label: fmt.Sprintf("%s %s %g", strings.ToUpper(string(side)), category, qty),
	}
}

// LineBook 管理订单价格线：每个活跃订单一条，按订单 ID 键控。
// order.Manager 通过它保持图表可视与工作集同步。
type LineBook struct {
	renderer Renderer

	mu    sync.Mutex
	lines map[string]LineSpec
}

// NewLineBook 创建订单价格线管理器。
func NewLineBook(renderer Renderer) *LineBook {
	return &LineBook{renderer: renderer, lines: make(map[string]LineSpec)}
}

// Add 为订单 id 新增一条价格线；已存在则更新。
func (b *LineBook) Add(id string, spec LineSpec) {
	b.mu.Lock()
	_, exists := b.lines[id]
	b.lines[id] = spec
	b.mu.Unlock()

	if exists {
		b.renderer.UpdateLine(id, spec)
		return
	}
	b.renderer.AddLine(id, spec)
}

// Update 更新已有价格线；不存在则忽略。
func (b *LineBook) Update(id string, spec LineSpec) {
	b.mu.Lock()
	_, exists := b.lines[id]
	if exists {
		b.lines[id] = spec
	}
	b.mu.Unlock()
	if exists {
		b.renderer.UpdateLine(id, spec)
	}
}

// RemoveLine 移除订单价格线；不存在时为空操作。
// 方法名与 order.LineSync 对齐，LineBook 可直接作为 Manager 的挂点。
func (b *LineBook) RemoveLine(id string) {
	b.mu.Lock()
	_, exists := b.lines[id]
	delete(b.lines, id)
	b.mu.Unlock()
	if exists {
		b.renderer.RemoveLine(id)
	}
}

// Count 返回当前管理的价格线数量。
func (b *LineBook) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
