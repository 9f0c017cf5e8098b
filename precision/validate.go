package precision

import "fmt"

// ValidateOrderValue checks the notional of an intent against the configured
// per-order cap. The cap is a local risk guard, not an exchange rule.
func ValidateOrderValue(quantity, price, maxValue float64) error {
	if quantity <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	if value := quantity * price; value > maxValue {
		return fmt.Errorf("order value %.2f exceeds limit of $%g", value, maxValue)
	}
	return nil
}

// ValidateBalance checks that amount does not exceed the available balance.
// locked > 0 adds a hint that the shortfall may sit in other open orders.
func ValidateBalance(amount, available float64, assetLabel string, locked float64) error {
	if amount <= available {
		return nil
	}
	if locked > 0 {
		return fmt.Errorf("insufficient %s balance. Need: %g, Available: %g (%g locked in open orders)",
			assetLabel, amount, available, locked)
	}
	return fmt.Errorf("insufficient %s balance. Need: %g, Available: %g", assetLabel, amount, available)
}
