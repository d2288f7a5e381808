// Package money converts between display amounts ("12.50") and stored minor units (1250).
// All ledger arithmetic is done on int64 minor units; decimals only appear at the boundary.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of decimal places of the ledger currency.
const MinorUnitDigits = 2

// ErrInvalidAmount is returned for input that is not a finite, non-negative number.
var ErrInvalidAmount = errors.New("invalid amount")

// Inputs outside these bounds are rejected before any arithmetic, since
// rescaling a decimal with a large exponent allocates a big.Int of that size.
const (
	maxInputLen = 64
	minExponent = -18
	maxExponent = 18
)

var (
	scale    = decimal.New(1, MinorUnitDigits)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// ToMinorUnits parses a display amount and returns round(value * 100).
func ToMinorUnits(display string) (int64, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if len(s) > maxInputLen {
		return 0, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, maxInputLen)
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, display)
	}
	if exp := value.Exponent(); exp < minExponent || exp > maxExponent {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, display)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, display)
	}

	minor := value.Mul(scale).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, display)
	}
	return minor.IntPart(), nil
}

// ToDisplayUnits formats minor units with exactly two decimals.
func ToDisplayUnits(minor int64) string {
	return decimal.New(minor, -MinorUnitDigits).StringFixed(MinorUnitDigits)
}

// ParsePositive is ToMinorUnits that also rejects zero.
func ParsePositive(display string) (int64, error) {
	minor, err := ToMinorUnits(display)
	if err != nil {
		return 0, err
	}
	if minor == 0 {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return minor, nil
}
