// Package notify 负责把订单流水中的用户可见事件（拒单原因、成交、撤单、
// 断流重连）推送到通知通道。同一条消息在节流窗口内只发一次。
package notify

import (
	"fmt"
	"sync"
	"time"
)

// 通知级别
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Notice 一条用户可见通知
type Notice struct {
	Level     string
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 通知通道接口
type Channel interface {
	Send(n Notice) error
	Name() string
}

// Throttler 按 key 节流，避免同一拒单原因在连续拖拽中刷屏
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.Mutex
}

// NewThrottler 创建节流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 窗口内首次出现的 key 返回 true 并记录时间
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	last, exists := t.lastSent[key]
	if !exists || now.Sub(last) >= t.interval {
		t.lastSent[key] = now
		return true
	}
	return false
}

// Reset 清除单个 key 的节流记录
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, key)
}

// Clear 清空所有节流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// Notifier 通知分发器
type Notifier struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// NewNotifier 创建通知分发器
func NewNotifier(channels []Channel, throttleInterval time.Duration) *Notifier {
	return &Notifier{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// Send 分发一条通知到所有通道。全部通道失败才返回错误。
func (n *Notifier) Send(notice Notice) error {
	if notice.Timestamp.IsZero() {
		notice.Timestamp = time.Now()
	}

	key := fmt.Sprintf("%s:%s", notice.Level, notice.Message)
	if !n.throttle.Allow(key) {
		return nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	var lastErr error
	sent := 0
	for _, ch := range n.channels {
		if err := ch.Send(notice); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			sent++
		}
	}
	if sent == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// OrderRejected 下单被拒。reason 取 intent 包的拒绝原因常量。
func (n *Notifier) OrderRejected(reason string, err error) error {
	return n.Send(Notice{
		Level:   LevelWarning,
		Message: fmt.Sprintf("order rejected: %s", reason),
		Fields:  map[string]interface{}{"detail": err.Error()},
	})
}

// OrderFilled 订单完全成交
func (n *Notifier) OrderFilled(orderID, symbol string, qty float64) error {
	return n.Send(Notice{
		Level:   LevelInfo,
		Message: fmt.Sprintf("order %s filled", orderID),
		Fields:  map[string]interface{}{"symbol": symbol, "quantity": qty},
	})
}

// OrderCancelled 订单撤销
func (n *Notifier) OrderCancelled(orderID string) error {
	return n.Send(Notice{
		Level:   LevelInfo,
		Message: fmt.Sprintf("order %s cancelled", orderID),
	})
}

// StreamReconnected 推送流重连，挂单状态已重新对账
func (n *Notifier) StreamReconnected(attempt int) error {
	return n.Send(Notice{
		Level:   LevelWarning,
		Message: "user data stream reconnected",
		Fields:  map[string]interface{}{"attempt": attempt},
	})
}

// AddChannel 追加通知通道
func (n *Notifier) AddChannel(ch Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, ch)
}

// Channels 返回当前通道名列表
func (n *Notifier) Channels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name())
	}
	return names
}

// ResetThrottle 清空节流状态
func (n *Notifier) ResetThrottle() {
	n.throttle.Clear()
}
