// Package fixedpoint implements signed 128-bit fixed point arithmetic with explicit rounding.
//
// Amounts, fee rates and reward indices use 7 decimals. Exchange rates use 12 decimals.
// Intermediate products are computed without bound; only results must fit in 128 bits.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

const (
	Decimals7  = 7
	Decimals12 = 12

	// SecondsPerYear is the year length used to annualize rates.
	SecondsPerYear = 31_536_000
)

var (
	Scalar7  = sdkmath.NewInt(10_000_000)
	Scalar12 = sdkmath.NewInt(1_000_000_000_000)
)

var (
	ErrDivideByZero = errors.New("fixedpoint: divide by zero")
	ErrOverflow     = errors.New("fixedpoint: result out of i128 range")
	ErrPrecision    = errors.New("fixedpoint: too many decimal places")
)

var (
	bigOne  = big.NewInt(1)
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 127), bigOne)
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(bigOne, 127))
	maxU64  = new(big.Int).SetUint64(^uint64(0))
)

// MaxU64 is the largest value representable by an unsigned 64-bit integer.
var MaxU64 = sdkmath.NewIntFromBigInt(maxU64)

// MulFloor returns floor(x * y / denominator).
func MulFloor(x, y, denominator sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(x, y, denominator, false)
}

// MulCeil returns ceil(x * y / denominator).
func MulCeil(x, y, denominator sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(x, y, denominator, true)
}

// DivFloor returns floor(x * denominator / y).
func DivFloor(x, y, denominator sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(x, denominator, y, false)
}

// DivCeil returns ceil(x * denominator / y).
func DivCeil(x, y, denominator sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(x, denominator, y, true)
}

// mulDiv computes x*y/z rounded toward -inf (floor) or +inf (ceil).
func mulDiv(x, y, z sdkmath.Int, ceil bool) (sdkmath.Int, error) {
	if z.IsNil() || z.IsZero() {
		return sdkmath.Int{}, ErrDivideByZero
	}
	n := new(big.Int).Mul(x.BigInt(), y.BigInt())
	d := z.BigInt()
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		// QuoRem truncates toward zero and r carries the sign of n.
		negative := (r.Sign() < 0) != (d.Sign() < 0)
		switch {
		case ceil && !negative:
			q.Add(q, bigOne)
		case !ceil && negative:
			q.Sub(q, bigOne)
		}
	}
	return checked(q)
}

// Add returns a + b, failing when the sum leaves the i128 range.
func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	return checked(new(big.Int).Add(a.BigInt(), b.BigInt()))
}

// Sub returns a - b, failing when the difference leaves the i128 range.
func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	return checked(new(big.Int).Sub(a.BigInt(), b.BigInt()))
}

// Mul returns a * b, failing when the product leaves the i128 range.
func Mul(a, b sdkmath.Int) (sdkmath.Int, error) {
	return checked(new(big.Int).Mul(a.BigInt(), b.BigInt()))
}

// InRange reports whether v fits in a signed 128-bit integer.
func InRange(v sdkmath.Int) bool {
	if v.IsNil() {
		return false
	}
	b := v.BigInt()
	return b.Cmp(maxI128) <= 0 && b.Cmp(minI128) >= 0
}

func checked(v *big.Int) (sdkmath.Int, error) {
	if v.Cmp(maxI128) > 0 || v.Cmp(minI128) < 0 {
		return sdkmath.Int{}, ErrOverflow
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

// Parse reads a base-10 integer string in the i128 range.
func Parse(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("fixedpoint: invalid integer %q", s)
	}
	if !InRange(v) {
		return sdkmath.Int{}, ErrOverflow
	}
	return v, nil
}

// ToDecimal renders a raw fixed point value with the given number of decimals.
func ToDecimal(v sdkmath.Int, decimals int32) decimal.Decimal {
	if v.IsNil() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.BigInt(), -decimals)
}

// ParseDecimal converts a human readable amount ("12.5") into its raw fixed point value.
func ParseDecimal(s string, decimals int32) (sdkmath.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("fixedpoint: invalid decimal %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return sdkmath.Int{}, fmt.Errorf("%w: %q has more than %d decimals", ErrPrecision, s, decimals)
	}
	return checked(scaled.BigInt())
}
