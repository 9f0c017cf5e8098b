package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"drag-trade-go/order"
)

// userStreamEvent 用户数据流消息的公共头。
type userStreamEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// executionReport Binance 现货 executionReport 的核心字段。
type executionReport struct {
	Symbol        string `json:"s"`
	Side          string `json:"S"`
	OrderType     string `json:"o"`
	Quantity      string `json:"q"`
	Price         string `json:"p"`
	StopPrice     string `json:"P"`
	OrderStatus   string `json:"X"`
	OrderID       int64  `json:"i"`
	CumFilledQty  string `json:"z"`
	OrderCreation int64  `json:"O"`
	EventTime     int64  `json:"E"`
}

// StreamMessage 一条已解析的用户流消息。恰好一个字段非零。
type StreamMessage struct {
	OrderEvent     *order.StreamEvent
	BalanceChanged bool
}

// ParseUserStreamMessage 解析用户数据流原始消息。
// executionReport 映射为订单事件；outboundAccountPosition /
// balanceUpdate 标记余额已变化；其余消息类型忽略。
func ParseUserStreamMessage(raw []byte) (StreamMessage, error) {
	var head userStreamEvent
	if err := json.Unmarshal(raw, &head); err != nil {
		return StreamMessage{}, fmt.Errorf("parse stream head: %w", err)
	}
	switch head.EventType {
	case "executionReport":
		var rep executionReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			return StreamMessage{}, fmt.Errorf("parse executionReport: %w", err)
		}
		ev := reportToEvent(rep)
		return StreamMessage{OrderEvent: &ev}, nil
	case "outboundAccountPosition", "balanceUpdate":
		return StreamMessage{BalanceChanged: true}, nil
	default:
		return StreamMessage{}, nil
	}
}

func reportToEvent(rep executionReport) order.StreamEvent {
	return order.StreamEvent{Order: order.PlacedOrder{
		ID:        strconv.FormatInt(rep.OrderID, 10),
		Symbol:    rep.Symbol,
		Side:      order.Side(strings.ToLower(rep.Side)),
		Category:  binanceToCategory(rep.OrderType),
		Price:     parseFloat(rep.Price),
		StopPrice: parseFloat(rep.StopPrice),
		Quantity:  parseFloat(rep.Quantity),
		FilledQty: parseFloat(rep.CumFilledQty),
		Status:    binanceToStatus(rep.OrderStatus),
		CreatedAt: time.UnixMilli(rep.OrderCreation).UTC(),
		UpdatedAt: time.UnixMilli(rep.EventTime).UTC(),
	}}
}
