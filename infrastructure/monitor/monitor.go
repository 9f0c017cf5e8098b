package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersPlaced    prometheus.Counter
	ordersFilled    prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersRejected  prometheus.Counter
	activeOrders    prometheus.Gauge
	orderLatency    prometheus.Histogram

	// 手势指标
	dragsStarted   prometheus.Counter
	dragsCompleted prometheus.Counter
	dragsAborted   prometheus.Counter

	// 意图构建指标
	intentRejects *prometheus.CounterVec

	// 系统指标
	wsReconnects prometheus.Counter
	restErrors   *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "dt",
		Subsystem: "terminal",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		// 订单指标
		ordersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_placed_total",
			Help:      "订单下单总数",
		}),
		ordersFilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_filled_total",
			Help:      "订单成交总数",
		}),
		ordersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_cancelled_total",
			Help:      "订单撤单总数",
		}),
		ordersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "订单拒绝总数",
		}),
		activeOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_orders",
			Help:      "当前挂单数量",
		}),
		orderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "order_latency_seconds",
			Help:      "下单到交易所确认的延迟分布（秒）",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),

		// 手势指标
		dragsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "drags_started_total",
			Help:      "拖拽手势激活总数",
		}),
		dragsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "drags_completed_total",
			Help:      "拖拽手势成功落点总数",
		}),
		dragsAborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "drags_aborted_total",
			Help:      "拖拽手势取消总数（图表外释放等）",
		}),

		// 意图构建指标
		intentRejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "intent_rejects_total",
				Help:      "意图构建拒绝总数",
			},
			[]string{"reason"},
		),

		// 系统指标
		wsReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_reconnects_total",
			Help:      "用户数据流重连次数",
		}),
		restErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_errors_total",
				Help:      "REST错误总数",
			},
			[]string{"action"},
		),
	}

	return m
}

// 订单相关方法
func (m *Monitor) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

func (m *Monitor) RecordOrderFilled() {
	m.ordersFilled.Inc()
}

func (m *Monitor) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

func (m *Monitor) RecordOrderRejected() {
	m.ordersRejected.Inc()
}

func (m *Monitor) UpdateActiveOrders(count int) {
	m.activeOrders.Set(float64(count))
}

func (m *Monitor) RecordOrderLatency(seconds float64) {
	m.orderLatency.Observe(seconds)
}

// 手势相关方法
func (m *Monitor) RecordDragStarted() {
	m.dragsStarted.Inc()
}

func (m *Monitor) RecordDragCompleted() {
	m.dragsCompleted.Inc()
}

func (m *Monitor) RecordDragAborted() {
	m.dragsAborted.Inc()
}

// RecordIntentReject reason 取 intent 包定义的拒绝原因
func (m *Monitor) RecordIntentReject(reason string) {
	m.intentRejects.WithLabelValues(reason).Inc()
}

// 系统相关方法
func (m *Monitor) RecordWSReconnect() {
	m.wsReconnects.Inc()
}

func (m *Monitor) RecordRESTError(action string) {
	m.restErrors.WithLabelValues(action).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
