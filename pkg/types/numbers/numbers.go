package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MulDivFloor returns floor(a * b / d) for non-negative operands.
// A zero divisor yields zero rather than panicking.
func MulDivFloor(a, b, d *big.Int) *big.Int {
	if d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, d)
}

// ParseBig parses a base-10 integer string.
func ParseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse '%s' as a base-10 integer", s)
	}
	return n, nil
}

// FormatUnits renders a base-unit amount with the given number of decimals, e.g. 1500000000 with 9
// decimals renders as "1.5".
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseUnits converts a human readable amount into base units. Amounts with more precision than
// the token supports are rejected rather than truncated.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount '%s' has more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// ToFloat64 is lossy and only meant for metrics.
func ToFloat64(n *big.Int) float64 {
	if n == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}

func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
