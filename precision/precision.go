// Package precision provides the pure rounding and validation rules that
// order intents are checked against before they reach the gateway.
package precision

import "math"

// SymbolRule 保存交易对的最小价格/数量步长（来自 exchangeInfo）。
// 零值表示规则尚未加载，此时按价格量级启发式取精度。
type SymbolRule struct {
	Symbol   string
	TickSize float64
	StepSize float64
}

// PricePrecision returns the decimal count used for prices at the given
// magnitude. Used as the synchronous fallback while the exchange rule for a
// symbol is still being fetched.
func PricePrecision(price float64) int {
	switch {
	case price >= 1:
		return 2
	case price >= 0.01:
		return 4
	default:
		return 6
	}
}

// QuantityPrecision returns the decimal count used for quantities traded at
// the given price magnitude.
func QuantityPrecision(price float64) int {
	switch {
	case price >= 10000:
		return 5
	case price >= 100:
		return 2
	default:
		return 1
	}
}

// PricePrecisionFor 优先使用 tickSize 推导精度，规则缺失时退回量级启发式。
func PricePrecisionFor(rule SymbolRule, price float64) int {
	if rule.TickSize > 0 {
		return DecimalsOf(rule.TickSize)
	}
	return PricePrecision(price)
}

// QuantityPrecisionFor 优先使用 stepSize 推导精度，规则缺失时退回量级启发式。
func QuantityPrecisionFor(rule SymbolRule, price float64) int {
	if rule.StepSize > 0 {
		return DecimalsOf(rule.StepSize)
	}
	return QuantityPrecision(price)
}

// DecimalsOf derives the decimal count implied by an exchange step, e.g.
// 0.001 -> 3, 1 -> 0. Steps are powers of ten on Binance spot.
func DecimalsOf(step float64) int {
	if step <= 0 || step >= 1 {
		return 0
	}
	d := 0
	for step < 1 && d < 8 {
		step *= 10
		d++
	}
	return d
}

// RoundToPrecision rounds half-up at the given decimal count. Used for
// prices, where rounding in either direction is acceptable.
func RoundToPrecision(value float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(value*pow) / pow
}

// RoundToStepSize 对数量向下取整到给定小数位。数量来自余额换算，
// 向上取整会超出可用资金，必须 floor。
func RoundToStepSize(qty float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Floor(qty*pow+1e-9) / pow
}
