package utils

import "github.com/shopspring/decimal"

// QtyEpsilon is the tolerance used when comparing received or stocked quantities.
const QtyEpsilon = 0.01

// Round4 rounds to 4 decimal places, the precision every persisted quantity and weight uses.
func Round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

// Add4 adds two quantities without accumulating binary float drift.
func Add4(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(4).InexactFloat64()
}

// AtLeast reports whether have >= want within QtyEpsilon.
func AtLeast(have, want float64) bool {
	eps := decimal.NewFromFloat(QtyEpsilon)
	return decimal.NewFromFloat(have).GreaterThanOrEqual(decimal.NewFromFloat(want).Sub(eps))
}

// Positive reports whether v exceeds QtyEpsilon.
func Positive(v float64) bool {
	return decimal.NewFromFloat(v).GreaterThan(decimal.NewFromFloat(QtyEpsilon))
}

// Zero reports whether v rounds to zero at 4 decimals.
func Zero(v float64) bool {
	return decimal.NewFromFloat(v).Round(4).IsZero()
}
