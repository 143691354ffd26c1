package payment

import "github.com/shopspring/decimal"

var (
	minorUnitsPerMajor = decimal.NewFromInt(100)

	// MaxAmountMajor is the exclusive upper bound of the NUMERIC(12,2)
	// amount column.
	MaxAmountMajor = decimal.New(1, 10)
)

// ToMinor converts a conventional amount to the smallest currency unit,
// rounding half away from zero on the exact decimal value. Callers keep
// major below MaxAmountMajor; larger values do not fit in an int64.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// ToMajor converts a smallest-unit amount back to the conventional unit.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorUnitsPerMajor)
}
