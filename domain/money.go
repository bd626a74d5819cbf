package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (pence for GBP).
type Money int64

// MaxMoney bounds every amount a basket may carry, per line and in total:
// ten billion in major units. Sums of bounded amounts cannot overflow int64.
const MaxMoney Money = 1_000_000_000_000

// minorUnitExponent is the number of decimal places between major and minor units.
const minorUnitExponent = 2

// Decimal returns the amount in major units, e.g. 1250 -> 12.50.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExponent)
}

// String formats the amount in major units with two decimal places.
func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExponent)
}

// Format renders the amount with its currency code, e.g. "12.50 GBP".
func (m Money) Format(currency string) string {
	return fmt.Sprintf("%s %s", m.String(), currency)
}

// MoneyFromDecimal converts a major unit amount to Money. Fractions of a minor
// unit are rejected rather than rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(minorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorUnitExponent)
	}
	if !minor.Equal(decimal.NewFromInt(minor.IntPart())) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Money(minor.IntPart()), nil
}

// ParseMoney parses a major unit string such as "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

func clampZero(m Money) Money {
	if m < 0 {
		return 0
	}
	return m
}
