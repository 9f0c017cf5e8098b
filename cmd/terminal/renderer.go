package main

import (
	"go.uber.org/zap"

	"drag-trade-go/chart"
)

// logRenderer 无头渲染目标：把图表指令写进结构化日志。
// 接真实前端时由其 WebSocket/IPC 渲染器替换。
type logRenderer struct {
	log *zap.Logger
}

func newLogRenderer(log *zap.Logger) *logRenderer {
	return &logRenderer{log: log.Named("renderer")}
}

func (r *logRenderer) AddLine(id string, spec chart.LineSpec) {
	r.log.Info("add line", zap.String("id", id),
		zap.Float64("price", spec.Price), zap.String("label", spec.Label))
}

func (r *logRenderer) UpdateLine(id string, spec chart.LineSpec) {
	r.log.Debug("update line", zap.String("id", id),
		zap.Float64("price", spec.Price), zap.String("label", spec.Label))
}

func (r *logRenderer) RemoveLine(id string) {
	r.log.Info("remove line", zap.String("id", id))
}

func (r *logRenderer) PlaceVerticalOverlay(id string, x float64) {
	r.log.Debug("place vertical overlay", zap.String("id", id), zap.Float64("x", x))
}

func (r *logRenderer) RemoveVerticalOverlay(id string) {
	r.log.Debug("remove vertical overlay", zap.String("id", id))
}
