package fixed

import (
	"errors"
	"math/big"
)

// maxExpArg keeps e^x·U inside the 256-bit range.
var maxExpArg = New(130)

// sinPairs is the number of correction terms after x itself; the series runs
// through x^13.
const sinPairs = 6

// NormalizeAngle reduces a modulo 2π into (-π, π].
func NormalizeAngle(a *big.Int) *big.Int {
	r := new(big.Int).Mod(a, TwoPi) // Euclidean: r in [0, 2π)
	if r.Cmp(Pi) > 0 {
		r.Sub(r, TwoPi)
	}
	return r
}

// SinScaled approximates sin(x) with the alternating Taylor series
//
//	x - x^3/3! + x^5/5! - ... + x^13/13!
//
// Each term is rescaled by U after every multiplication. The argument must
// already be normalized into [-π, π]; accuracy is best near zero and degrades
// to roughly 1e-5 at ±π.
func SinScaled(x *big.Int) (*big.Int, error) {
	if Abs(x).Cmp(Pi) > 0 {
		return nil, ErrDomain
	}
	x2, err := MulScaled(x, x)
	if err != nil {
		return nil, err
	}
	term := new(big.Int).Set(x)
	sum := new(big.Int).Set(x)
	for k := 1; k <= sinPairs; k++ {
		if term, err = MulScaled(term, x2); err != nil {
			return nil, err
		}
		term.Quo(term, big.NewInt(int64((2*k)*(2*k+1))))
		term.Neg(term)
		sum.Add(sum, term)
	}
	return sum, nil
}

// Exp computes e^x for a signed scaled x.
//
// The argument is split as x = k·ln2 + r with 0 <= r < ln2, e^r is summed as a
// Taylor series until the terms vanish, and the result is shifted left by k.
// Negative arguments use e^x = U^2 / e^-x and underflow to zero.
func Exp(x *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		pos, err := Exp(new(big.Int).Neg(x))
		if err != nil {
			if errors.Is(err, ErrOverflow) {
				return new(big.Int), nil
			}
			return nil, err
		}
		return new(big.Int).Quo(uu, pos), nil
	}
	if x.Cmp(maxExpArg) > 0 {
		return nil, ErrOverflow
	}

	k := new(big.Int).Quo(x, Ln2)
	r := new(big.Int).Sub(x, new(big.Int).Mul(k, Ln2))

	sum := new(big.Int).Set(U)
	term := new(big.Int).Set(U)
	for i := int64(1); term.Sign() != 0; i++ {
		term.Mul(term, r)
		term.Quo(term, U)
		term.Quo(term, big.NewInt(i))
		sum.Add(sum, term)
	}
	return checked(sum.Lsh(sum, uint(k.Uint64())))
}

// Log2 computes log2(x) for x > 0 using the iterative squaring method: the
// integer part comes from the bit length, each fractional bit from whether the
// squared mantissa crosses 2.
func Log2(x *big.Int) (*big.Int, error) {
	if x.Sign() <= 0 {
		return nil, ErrDomain
	}
	if x.Cmp(U) < 0 {
		inv := new(big.Int).Quo(uu, x)
		r, err := Log2(inv)
		if err != nil {
			return nil, err
		}
		return r.Neg(r), nil
	}

	n := new(big.Int).Quo(x, U).BitLen() - 1
	result := New(int64(n))
	y := new(big.Int).Rsh(x, uint(n))
	if y.Cmp(U) == 0 {
		return result, nil
	}
	for delta := new(big.Int).Set(HalfU); delta.Sign() > 0; delta.Rsh(delta, 1) {
		y.Mul(y, y)
		y.Quo(y, U)
		if y.Cmp(twoU) >= 0 {
			result.Add(result, delta)
			y.Rsh(y, 1)
		}
	}
	return result, nil
}

// Ln computes the natural logarithm of x > 0.
func Ln(x *big.Int) (*big.Int, error) {
	l2, err := Log2(x)
	if err != nil {
		return nil, err
	}
	return MulScaled(l2, Ln2)
}

// SigmoidScaled computes the logistic function U / (1 + e^-z).
// Arguments far below zero saturate to 0, far above zero to U.
func SigmoidScaled(z *big.Int) (*big.Int, error) {
	e, err := Exp(new(big.Int).Neg(z))
	if err != nil {
		if errors.Is(err, ErrOverflow) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return DivScaled(U, new(big.Int).Add(U, e))
}
