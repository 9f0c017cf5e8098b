package order

import "errors"

var (
	ErrUnknownOrder        = errors.New("unknown order")
	ErrMissingSymbol       = errors.New("symbol is required")
	ErrNonPositiveQuantity = errors.New("quantity must be > 0")
	ErrMissingPrice        = errors.New("limit order requires a price")
	ErrMissingStopPrice    = errors.New("stop order requires a stop price")
)
