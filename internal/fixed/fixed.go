// Package fixed implements deterministic fixed-point arithmetic on 10^18-scaled
// integers. A value x represents the real number x / U.
//
// Every operation works on math/big integers and bounds results to the signed
// 256-bit range, so results are identical on every platform and an overflow is
// reported instead of silently wrapping. There is no floating point anywhere
// in this package.
package fixed

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-engine/internal/model"
)

// Decimals is the number of decimal places carried by a scaled value.
const Decimals = 18

// MaxPower bounds the exponent accepted by PowScaled.
const MaxPower = 100

var (
	// ErrOverflow is returned when a result leaves the signed 256-bit range.
	ErrOverflow = fmt.Errorf("%w: fixed-point overflow", model.ErrArithmetic)

	// ErrDivisionByZero is returned by DivScaled for a zero divisor.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", model.ErrArithmetic)

	// ErrDomain is returned when an argument lies outside a function's domain.
	ErrDomain = fmt.Errorf("%w: argument outside domain", model.ErrArithmetic)

	// ErrExponent is returned for a power outside [1, MaxPower].
	ErrExponent = fmt.Errorf("%w: exponent out of range", model.ErrArithmetic)
)

var (
	// U is the scale factor, 10^18.
	U = big.NewInt(1_000_000_000_000_000_000)

	// HalfU is 0.5.
	HalfU = big.NewInt(500_000_000_000_000_000)

	// Pi is π truncated to 18 decimals.
	Pi = big.NewInt(3_141_592_653_589_793_238)

	// TwoPi is 2·Pi.
	TwoPi = new(big.Int).Lsh(Pi, 1)

	// Ln2 is ln(2) truncated to 18 decimals.
	Ln2 = big.NewInt(693_147_180_559_945_309)

	twoU = new(big.Int).Lsh(U, 1)
	uu   = new(big.Int).Mul(U, U)

	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// New returns n as a scaled value (n·U).
func New(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), U)
}

// Ratio returns num/den as a scaled value, truncated toward zero.
// It panics on a zero denominator and is meant for constants.
func Ratio(num, den int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(num), U)
	return v.Quo(v, big.NewInt(den))
}

// MustParse converts a decimal literal such as "3.25" into a scaled value.
// Digits beyond the 18th decimal are truncated. It panics on malformed input.
func MustParse(s string) *big.Int {
	return FromDecimal(decimal.RequireFromString(s))
}

// Parse converts a decimal string into a scaled value.
func Parse(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// FromDecimal converts d into a scaled value, truncating past 18 decimals.
func FromDecimal(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).Truncate(0).BigInt()
}

// ToDecimal renders a scaled value as an exact decimal. nil maps to zero.
func ToDecimal(x *big.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x, -Decimals)
}

// String formats a scaled value for logs.
func String(x *big.Int) string {
	return ToDecimal(x).String()
}

// checked rejects values outside the signed 256-bit range.
func checked(x *big.Int) (*big.Int, error) {
	if x.Cmp(maxInt256) > 0 || x.Cmp(minInt256) < 0 {
		return nil, ErrOverflow
	}
	return x, nil
}

// MulScaled computes a·b/U, truncating toward zero.
func MulScaled(a, b *big.Int) (*big.Int, error) {
	p, err := checked(new(big.Int).Mul(a, b))
	if err != nil {
		return nil, err
	}
	return p.Quo(p, U), nil
}

// DivScaled computes a·U/b, truncating toward zero.
func DivScaled(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	n, err := checked(new(big.Int).Mul(a, U))
	if err != nil {
		return nil, err
	}
	return n.Quo(n, b), nil
}

// Add returns a+b, bounded to the 256-bit range.
func Add(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Add(a, b))
}

// Sub returns a-b, bounded to the 256-bit range.
func Sub(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Sub(a, b))
}

// PowScaled computes x^n / U^(n-1) by repeated z = z·x/U.
// The exponent must lie in [1, MaxPower].
func PowScaled(x *big.Int, n uint32) (*big.Int, error) {
	if n < 1 || n > MaxPower {
		return nil, ErrExponent
	}
	z := new(big.Int).Set(x)
	for i := uint32(1); i < n; i++ {
		var err error
		if z, err = MulScaled(z, x); err != nil {
			return nil, err
		}
	}
	return z, nil
}

// Abs returns |x| as a new value.
func Abs(x *big.Int) *big.Int {
	return new(big.Int).Abs(x)
}

// Clamp bounds x to [lo, hi] and returns a new value.
func Clamp(x, lo, hi *big.Int) *big.Int {
	switch {
	case x.Cmp(lo) < 0:
		return new(big.Int).Set(lo)
	case x.Cmp(hi) > 0:
		return new(big.Int).Set(hi)
	default:
		return new(big.Int).Set(x)
	}
}

// Min returns the smaller of a and b as a new value.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
