package order

import "time"

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Category is the exchange order type.
type Category string

const (
	CategoryLimit           Category = "limit"
	CategoryMarket          Category = "market"
	CategoryStopLoss        Category = "stop_loss"
	CategoryStopLossLimit   Category = "stop_loss_limit"
	CategoryTakeProfit      Category = "take_profit"
	CategoryTakeProfitLimit Category = "take_profit_limit"
)

// RequiresPrice reports whether the category carries a limit price.
func (c Category) RequiresPrice() bool {
	switch c {
	case CategoryLimit, CategoryStopLossLimit, CategoryTakeProfitLimit:
		return true
	default:
		return false
	}
}

// RequiresStopPrice reports whether the category carries a trigger price.
func (c Category) RequiresStopPrice() bool {
	switch c {
	case CategoryStopLoss, CategoryStopLossLimit, CategoryTakeProfit, CategoryTakeProfitLimit:
		return true
	default:
		return false
	}
}

// Status represents order lifecycle.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// Precedence orders statuses for merge conflicts: terminal beats partial
// beats pending. A late "pending" echo must never revert a fill.
func (s Status) Precedence() int {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return 3
	case StatusPartiallyFilled:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

// IsTerminal reports whether the status retires the order from the working set.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// Request 由 intent 构造的下单请求，提交后不可变。
type Request struct {
	Symbol    string
	Side      Side
	Category  Category
	Quantity  float64
	Price     float64 // limit 族必填
	StopPrice float64 // stop 族必填
	IsMargin  bool
}

// Validate enforces the category/price invariants before anything reaches
// the gateway.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return ErrMissingSymbol
	}
	if r.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	if r.Category.RequiresPrice() && r.Price <= 0 {
		return ErrMissingPrice
	}
	if r.Category.RequiresStopPrice() && r.StopPrice <= 0 {
		return ErrMissingStopPrice
	}
	return nil
}

// PlacedOrder 交易所已确认的订单视图，仅由 Manager 持有和修改。
type PlacedOrder struct {
	ID        string
	Symbol    string
	Side      Side
	Category  Category
	Price     float64
	StopPrice float64
	Quantity  float64
	FilledQty float64
	Status    Status
	IsMargin  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StreamEvent is one push-stream order update.
type StreamEvent struct {
	Order PlacedOrder
}
