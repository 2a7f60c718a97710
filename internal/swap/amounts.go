// internal/swap/amounts.go
package swap

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToBaseUnits converts a human amount to integer base units: round(amount * 10^decimals).
// The float is read by its shortest decimal representation, so 0.1 SOL is exactly 100000000.
func ToBaseUnits(amount float64, decimals uint8) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("amount must be a positive number, got %v", amount)
	}
	units := decimal.NewFromFloat(amount).Shift(int32(decimals)).Round(0)
	if units.Sign() <= 0 {
		return 0, fmt.Errorf("amount %v is below the smallest unit for %d decimals", amount, decimals)
	}
	if units.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %v overflows base units", amount)
	}
	return units.BigInt().Uint64(), nil
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(units uint64, decimals uint8) float64 {
	f, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals)).Float64()
	return f
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).String()
}
