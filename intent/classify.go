package intent

import "drag-trade-go/order"

// StopKind 止损/止盈族分类结果。
type StopKind string

const (
	KindStopLoss   StopKind = "stop_loss"
	KindTakeProfit StopKind = "take_profit"
)

// ClassifyStop 按方向与触发价相对现价的位置给止损单分族：
// 买单触发价在现价之上、或卖单触发价在现价之下，是在防御不利方向的
// 延续，归 stop_loss 族；反向归 take_profit 族。
// 比较是严格的：触发价等于现价时归 take_profit 族。
func ClassifyStop(side order.Side, stopPrice, currentPrice float64) StopKind {
	if side == order.SideBuy && stopPrice > currentPrice {
		return KindStopLoss
	}
	if side == order.SideSell && stopPrice < currentPrice {
		return KindStopLoss
	}
	return KindTakeProfit
}
