// Package gesture runs the pointer-drag state machine that turns chart
// drags into order intents or reference-date changes. Two affordances share
// one runtime, disambiguated by the drag id.
package gesture

import (
	"context"
	"math"

	"go.uber.org/zap"

	"drag-trade-go/balance"
	"drag-trade-go/intent"
	"drag-trade-go/order"
)

// 拖拽把手的固定 id。
const (
	DragBuyID          = "drag-buy"
	DragSellID         = "drag-sell"
	DragSetReferenceID = "drag-set-reference"
)

// MinTravelPx 识别为拖拽所需的最小指针位移。小于该值的手势仍是点击，
// 因此同一个按钮既可点击（开弹窗）也可拖拽（下单）。
const MinTravelPx = 8.0

// State 控制器状态。
type State int

const (
	StateIdle State = iota
	StateArmed
	StateDragging
)

// Preview 拖拽过程中的视觉反馈；chart.Translator 实现它。
type Preview interface {
	PriceAtY(y float64) (float64, bool)
	TimeAtX(x float64) (int64, bool)
	ShowPreviewLine(price float64, side string)
	HidePreviewLine()
	ShowVerticalPreviewLine(ts int64)
	HideVerticalPreviewLine()
}

// IntentBuilder 落点到订单请求的转换；intent.Builder 实现它。
type IntentBuilder interface {
	BuildFromDrop(ctx context.Context, drop intent.Drop) (order.Request, error)
}

// Callbacks 手势产生的业务动作，由装配方注入。
type Callbacks struct {
	Submit       func(ctx context.Context, req order.Request) // 订单拖拽落点有效
	SetReference func(ts int64)                               // 参考日期拖拽落点有效
	OnClick      func(id string)                              // 未达到位移阈值的点击
	OnReject     func(err error)                              // 本地拒单
	OnDragStart  func(id string)                              // 位移达到阈值，进入拖拽
	OnDragAbort  func(id string)                              // 拖拽在投放区外释放
}

// Modes 当前激活的下单/账户模式，由展示层在拖拽开始前设置。
type Modes struct {
	OrderMode   intent.OrderMode
	AccountMode balance.AccountMode
}

// Controller 指针拖拽状态机：idle → armed → dragging → idle。
type Controller struct {
	preview  Preview
	builder  IntentBuilder
	cb       Callbacks
	log      *zap.Logger
	quantity func(side order.Side) float64 // 该方向预计算的下单数量

	state    State
	activeID string
	originX  float64
	originY  float64
	modes    Modes
}

// NewController 创建手势控制器。log 可为 nil。
func NewController(preview Preview, builder IntentBuilder, quantity func(order.Side) float64, cb Callbacks, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{preview: preview, builder: builder, quantity: quantity, cb: cb, log: log}
}

// SetModes 更新当前下单/账户模式。
func (c *Controller) SetModes(m Modes) { c.modes = m }

// State 返回当前状态。
func (c *Controller) State() State { return c.state }

// ActiveDragID 返回正在拖拽的把手 id，空串表示没有。
func (c *Controller) ActiveDragID() string {
	if c.state == StateDragging {
		return c.activeID
	}
	return ""
}

// HandleDragStart 指针按下。仅武装，不进入拖拽。
func (c *Controller) HandleDragStart(id string, x, y float64) {
	if id != DragBuyID && id != DragSellID && id != DragSetReferenceID {
		return
	}
	c.state = StateArmed
	c.activeID = id
	c.originX = x
	c.originY = y
}

// HandleDragMove 指针移动。武装态下超过位移阈值才进入拖拽；
// 拖拽中每次调用只是重新定位预览线（幂等，无累积）。
func (c *Controller) HandleDragMove(x, y float64) {
	switch c.state {
	case StateArmed:
		if math.Hypot(x-c.originX, y-c.originY) < MinTravelPx {
			return
		}
		c.state = StateDragging
		if c.cb.OnDragStart != nil {
			c.cb.OnDragStart(c.activeID)
		}
		c.updatePreview(x, y)
	case StateDragging:
		c.updatePreview(x, y)
	}
}

// HandleDragEnd 指针抬起。overTarget 表示落在图表投放区内。
// 预览线的隐藏是强制副作用，任何路径都要执行。
func (c *Controller) HandleDragEnd(ctx context.Context, overTarget bool, x, y float64) {
	state := c.state
	id := c.activeID
	c.state = StateIdle
	c.activeID = ""

	switch state {
	case StateArmed:
		// 未达阈值：保持点击语义
		if c.cb.OnClick != nil {
			c.cb.OnClick(id)
		}
		return
	case StateDragging:
		c.preview.HidePreviewLine()
		c.preview.HideVerticalPreviewLine()
	default:
		return
	}

	if !overTarget {
		// 丢到投放区外：不产生任何业务副作用
		if c.cb.OnDragAbort != nil {
			c.cb.OnDragAbort(id)
		}
		return
	}

	if id == DragSetReferenceID {
		ts, ok := c.preview.TimeAtX(x)
		if !ok || ts <= 0 {
			return
		}
		if c.cb.SetReference != nil {
			c.cb.SetReference(ts)
		}
		return
	}

	side := order.SideBuy
	if id == DragSellID {
		side = order.SideSell
	}
	req, err := c.builder.BuildFromDrop(ctx, intent.Drop{
		Y:           y,
		Side:        side,
		OrderMode:   c.modes.OrderMode,
		AccountMode: c.modes.AccountMode,
		Quantity:    c.quantity(side),
	})
	if err != nil {
		c.log.Info("drop rejected", zap.String("drag", id), zap.Error(err))
		if c.cb.OnReject != nil {
			c.cb.OnReject(err)
		}
		return
	}
	if c.cb.Submit != nil {
		c.cb.Submit(ctx, req)
	}
}

// updatePreview 订单拖拽显示横向价格预览，参考拖拽显示纵向时间预览。
func (c *Controller) updatePreview(x, y float64) {
	if c.activeID == DragSetReferenceID {
		if ts, ok := c.preview.TimeAtX(x); ok {
			c.preview.ShowVerticalPreviewLine(ts)
		}
		return
	}
	price, ok := c.preview.PriceAtY(y)
	if !ok {
		return
	}
	side := "buy"
	if c.activeID == DragSellID {
		side = "sell"
	}
	c.preview.ShowPreviewLine(price, side)
}
