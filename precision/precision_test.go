package precision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricePrecisionBands(t *testing.T) {
	cases := []struct {
		price float64
		want  int
	}{
		{50000, 2},
		{1, 2},
		{0.99, 4},
		{0.01, 4},
		{0.0099, 6},
		{0.000012, 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PricePrecision(c.price), "price %v", c.price)
	}
}

func TestQuantityPrecisionBands(t *testing.T) {
	cases := []struct {
		price float64
		want  int
	}{
		{65000, 5},
		{10000, 5},
		{9999.99, 2},
		{100, 2},
		{99.9, 1},
		{0.5, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, QuantityPrecision(c.price), "price %v", c.price)
	}
}

func TestPrecisionForPrefersExchangeRule(t *testing.T) {
	rule := SymbolRule{Symbol: "BTCUSDC", TickSize: 0.01, StepSize: 0.00001}
	assert.Equal(t, 2, PricePrecisionFor(rule, 0.005))
	assert.Equal(t, 5, QuantityPrecisionFor(rule, 0.005))

	// zero rule falls back to the magnitude heuristic
	assert.Equal(t, 6, PricePrecisionFor(SymbolRule{}, 0.005))
	assert.Equal(t, 1, QuantityPrecisionFor(SymbolRule{}, 0.005))
}

func TestDecimalsOf(t *testing.T) {
	assert.Equal(t, 0, DecimalsOf(1))
	assert.Equal(t, 2, DecimalsOf(0.01))
	assert.Equal(t, 3, DecimalsOf(0.001))
	assert.Equal(t, 0, DecimalsOf(0))
}

func TestRoundToPrecision(t *testing.T) {
	assert.InDelta(t, 123.46, RoundToPrecision(123.456789, 2), 1e-9)
	assert.InDelta(t, 100.0, RoundToPrecision(99.995, 2), 1e-9)
	assert.InDelta(t, 50000.13, RoundToPrecision(50000.126, 2), 1e-9)
}

func TestRoundToStepSizeFloors(t *testing.T) {
	// quantities derived from a balance must never round up
	assert.InDelta(t, 0.123, RoundToStepSize(0.12399, 3), 1e-9)
	assert.InDelta(t, 1.9, RoundToStepSize(1.99, 1), 1e-9)
	// but exact representations survive the epsilon
	assert.InDelta(t, 0.124, RoundToStepSize(0.124, 3), 1e-9)
}

func TestValidateOrderValue(t *testing.T) {
	err := ValidateOrderValue(10, 100, 500)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "1000.00")
		assert.Contains(t, err.Error(), "500")
	}

	err = ValidateOrderValue(0, 100, 500)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "greater than 0")
	}

	assert.NoError(t, ValidateOrderValue(0.004, 100000, 500))
}

func TestValidateBalance(t *testing.T) {
	err := ValidateBalance(200, 100, "USDC", 0)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Need: 200")
		assert.Contains(t, err.Error(), "Available: 100")
		assert.NotContains(t, err.Error(), "locked")
	}

	err = ValidateBalance(200, 100, "USDC", 50)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "locked in open orders")
	}

	assert.NoError(t, ValidateBalance(100, 100, "USDC", 0))
}
