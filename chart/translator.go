package chart

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// 预览元素的固定 id；同类预览同一时刻至多存在一条。
const (
	previewLineID    = "preview-line"
	previewVertID    = "preview-vline"
	referenceMarkID  = "reference-marker"
	buyLineColor     = "#26a69a"
	sellLineColor    = "#ef5350"
	referenceColor   = "#b39ddb"
	previewLineStyle = "dashed"
)

// LastPriceFunc 返回最近成交价，用于预览线的百分比标签。
type LastPriceFunc func() float64

// Translator 在 Viewport 映射之上管理瞬时预览线与参考标记。
type Translator struct {
	view      *Viewport
	renderer  Renderer
	lastPrice LastPriceFunc
	log       *zap.Logger

	mu          sync.Mutex
	previewOn   bool
	previewVOn  bool
	referenceTS int64 // 0 = 未钉住
}

// NewTranslator 创建坐标翻译器。lastPrice/log 可为 nil。
func NewTranslator(view *Viewport, renderer Renderer, lastPrice LastPriceFunc, log *zap.Logger) *Translator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Translator{view: view, renderer: renderer, lastPrice: lastPrice, log: log}
}

// PriceAtY 透传 Viewport 的价格映射。
func (t *Translator) PriceAtY(y float64) (float64, bool) { return t.view.PriceAtY(y) }

// TimeAtX 透传 Viewport 的时间映射。
func (t *Translator) TimeAtX(x float64) (int64, bool) { return t.view.TimeAtX(x) }

// ShowPreviewLine 在 price 处显示唯一的横向预览线，按方向着色，
// 标签是相对最近成交价的带符号百分比。重复调用即重新定位（幂等）。
func (t *Translator) ShowPreviewLine(price float64, side string) {
	spec := LineSpec{
		Price: price,
		Color: sellLineColor,
		Style: previewLineStyle,
		Label: t.deltaLabel(price),
	}
	if side == "buy" {
		spec.Color = buyLineColor
	}

	t.mu.Lock()
	replace := t.previewOn
	t.previewOn = true
	t.mu.Unlock()

	if replace {
		t.renderer.UpdateLine(previewLineID, spec)
		return
	}
	t.renderer.AddLine(previewLineID, spec)
}

// HidePreviewLine 移除横向预览线；不存在时为空操作。
func (t *Translator) HidePreviewLine() {
	t.mu.Lock()
	on := t.previewOn
	t.previewOn = false
	t.mu.Unlock()
	if on {
		t.renderer.RemoveLine(previewLineID)
	}
}

// ShowVerticalPreviewLine 在 ts 处显示唯一的纵向预览线（覆盖层实现）。
// 时间戳不在绘图范围内时隐藏预览线，不得留下旧位置的残影。
func (t *Translator) ShowVerticalPreviewLine(ts int64) {
	x, ok := t.view.XForTime(ts)
	if !ok {
		t.HideVerticalPreviewLine()
		return
	}
	t.mu.Lock()
	t.previewVOn = true
	t.mu.Unlock()
	t.renderer.PlaceVerticalOverlay(previewVertID, x)
}

// HideVerticalPreviewLine 移除纵向预览线；不存在时为空操作。
func (t *Translator) HideVerticalPreviewLine() {
	t.mu.Lock()
	on := t.previewVOn
	t.previewVOn = false
	t.mu.Unlock()
	if on {
		t.renderer.RemoveVerticalOverlay(previewVertID)
	}
}

// SetReferenceMarker 钉住/清除参考日期标记，独立于瞬时预览线。
// ts<=0 表示清除。
func (t *Translator) SetReferenceMarker(ts int64) {
	t.mu.Lock()
	prev := t.referenceTS
	t.referenceTS = ts
	t.mu.Unlock()

	if ts <= 0 {
		if prev > 0 {
			t.renderer.RemoveVerticalOverlay(referenceMarkID)
		}
		return
	}
	x, ok := t.view.XForTime(ts)
	if !ok {
		t.log.Warn("reference marker outside plotted range", zap.Int64("ts", ts))
		return
	}
	t.renderer.PlaceVerticalOverlay(referenceMarkID, x)
}

// ReferenceMarker 返回当前钉住的参考时间戳，0 表示未设置。
func (t *Translator) ReferenceMarker() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.referenceTS
}

// deltaLabel 计算 (price-last)/last*100 的带符号两位小数标签。
func (t *Translator) deltaLabel(price float64) string {
	if t.lastPrice == nil {
		return ""
	}
	last := t.lastPrice()
	if last <= 0 {
		return ""
	}
	return fmt.Sprintf("%+.2f%%", (price-last)/last*100)
}
