// Package money holds the single rounding rule used for every monetary
// computation in the ledger: half-up to two decimal places, applied once.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const Places = 2

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// Round2 rounds half away from zero, which is half-up for the non-negative
// amounts the ledger handles.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ToCents rounds d once and returns it in minor units.
func ToCents(d decimal.Decimal) int64 {
	return Round2(d).Shift(Places).IntPart()
}

// FitsCents reports whether d, once rounded, can be held in minor units.
// ToCents wraps silently for anything that does not fit.
func FitsCents(d decimal.Decimal) bool {
	return Round2(d).Shift(Places).Abs().LessThanOrEqual(maxCents)
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Percent returns floor(cents × percent / 100) in minor units.
func Percent(cents int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(percent).Div(hundred).Floor().IntPart()
}

// Format renders minor units as a dollar string, e.g. 1000 -> "$10.00".
func Format(cents int64) string {
	return fmt.Sprintf("$%s", FromCents(cents).StringFixed(Places))
}
