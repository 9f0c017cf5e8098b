package chart

// LineSpec 一条水平引导线/订单线的渲染参数。
type LineSpec struct {
	Price float64
	Color string
	Label string
	Style string // solid / dashed
}

// Renderer 渲染目标。每个可视元素归创建它的组件独占，按调用方提供的
// id 管理；实现方不解释 id 的含义。
// 纵向整高引导线没有原生图元，用覆盖层按像素位置摆放。
type Renderer interface {
	AddLine(id string, spec LineSpec)
	UpdateLine(id string, spec LineSpec)
	RemoveLine(id string)

	PlaceVerticalOverlay(id string, x float64)
	RemoveVerticalOverlay(id string)
}
