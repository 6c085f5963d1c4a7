package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal string without going through float64.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, Invalidf("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, WrapError(ErrCodeInvalid, "malformed amount", err)
	}
	return amount, nil
}

// ParsePositiveAmount parses an amount that must be strictly greater than zero.
func ParsePositiveAmount(raw string) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return amount, nil
}
