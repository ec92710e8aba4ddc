// Package pricing converts order amounts and adjustments into the provider's
// fixed-point cart representation.
package pricing

import "github.com/shopspring/decimal"

var (
	minorUnitFactor = decimal.NewFromInt(100)
	basisRateFactor = decimal.NewFromInt(10000)
)

// ToMinorUnits multiplies a currency amount by 100 and truncates toward zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).IntPart()
}

// ToBasisRate encodes a percentage ("24") as the provider tax rate (240000).
func ToBasisRate(percent decimal.Decimal) int64 {
	return percent.Mul(basisRateFactor).IntPart()
}
