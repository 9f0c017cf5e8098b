// Package chart owns the mapping between chart pixel space and the
// (price, time) domain, plus the ephemeral visual guides the drag pipeline
// drives. It instructs a rendering target through the Renderer interface and
// never renders anything itself.
package chart

import "sync"

// Viewport 像素坐标与(价格,时间)域之间的线性映射。
// "是否已完成首次缩放适配" 是会话状态的一部分，数据刷新时保留，
// 避免每次刷新都重新 fit。
type Viewport struct {
	mu sync.RWMutex

	mounted bool
	fitted  bool

	width  float64
	height float64

	priceTop    float64 // y=0 对应的价格
	priceBottom float64 // y=height 对应的价格
	timeLeft    int64   // x=0 对应的时间（unix 毫秒）
	timeRight   int64   // x=width 对应的时间
}

// NewViewport returns an unmounted viewport. PriceAtY/TimeAtX report not-ok
// until SetRange has mounted it.
func NewViewport() *Viewport {
	return &Viewport{}
}

// SetRange mounts the viewport with the plotted pixel and domain extents.
// The fitted flag survives subsequent range updates.
func (v *Viewport) SetRange(width, height, priceTop, priceBottom float64, timeLeft, timeRight int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.width = width
	v.height = height
	v.priceTop = priceTop
	v.priceBottom = priceBottom
	v.timeLeft = timeLeft
	v.timeRight = timeRight
	v.mounted = width > 0 && height > 0 && priceTop > priceBottom && timeRight > timeLeft
}

// Unmount 卸载图表（例如切换交易对时）。fitted 一并复位。
func (v *Viewport) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mounted = false
	v.fitted = false
}

// Mounted reports whether a chart/series is currently mounted.
func (v *Viewport) Mounted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mounted
}

// MarkFitted 记录首次缩放适配已完成。
func (v *Viewport) MarkFitted() {
	v.mu.Lock()
	v.fitted = true
	v.mu.Unlock()
}

// Fitted reports whether the initial zoom fit already happened this session.
func (v *Viewport) Fitted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fitted
}

// PriceAtY 将纵向像素坐标换算为价格；图表未挂载时 ok=false。
func (v *Viewport) PriceAtY(y float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.mounted {
		return 0, false
	}
	price := v.priceTop - (y/v.height)*(v.priceTop-v.priceBottom)
	return price, true
}

// YForPrice 是 PriceAtY 的逆映射。
func (v *Viewport) YForPrice(price float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.mounted {
		return 0, false
	}
	return (v.priceTop - price) / (v.priceTop - v.priceBottom) * v.height, true
}

// TimeAtX 将横向像素坐标换算为 unix 毫秒时间戳；
// 未挂载或坐标落在绘图范围之外时 ok=false。
func (v *Viewport) TimeAtX(x float64) (int64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.mounted || x < 0 || x > v.width {
		return 0, false
	}
	span := float64(v.timeRight - v.timeLeft)
	ts := v.timeLeft + int64(x/v.width*span)
	return ts, true
}

// XForTime 是 TimeAtX 的逆映射；时间戳在绘图范围之外时 ok=false。
func (v *Viewport) XForTime(ts int64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.mounted || ts < v.timeLeft || ts > v.timeRight {
		return 0, false
	}
	span := float64(v.timeRight - v.timeLeft)
	return float64(ts-v.timeLeft) / span * v.width, true
}
