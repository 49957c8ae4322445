package payoff

import (
	"math/big"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

var (
	polyDomain = fixed.New(10)
	negU       = new(big.Int).Neg(fixed.U)
)

// sinusoidalGenie divides the notional by
//
//	ratio = clamp((1 + amplitude·sin(2π(S-K)/period + phase)) / 2, 0, 1)
//
// The curve itself encodes direction; the sign of S-K is not consulted.
type sinusoidalGenie struct {
	amplitude *big.Int
	period    *big.Int
	phase     *big.Int
}

func (sinusoidalGenie) Family() model.Family  { return model.FamilyGenie }
func (sinusoidalGenie) Kind() model.CurveKind { return model.CurveSinusoidal }

func (c sinusoidalGenie) Evaluate(in Inputs) (Result, error) {
	diff := new(big.Int).Sub(in.Spot, in.Strike)
	cycles, err := fixed.MulScaled(fixed.TwoPi, diff)
	if err != nil {
		return Result{}, err
	}
	theta, err := fixed.DivScaled(cycles, c.period)
	if err != nil {
		return Result{}, err
	}
	theta.Add(theta, c.phase)

	sin, err := fixed.SinScaled(fixed.NormalizeAngle(theta))
	if err != nil {
		return Result{}, err
	}
	swing, err := fixed.MulScaled(sin, c.amplitude)
	if err != nil {
		return Result{}, err
	}
	ratio := swing.Add(swing, fixed.U)
	ratio.Quo(ratio, big.NewInt(2))
	return split(fixed.Clamp(ratio, new(big.Int), fixed.U), in)
}

// polynomialGenie divides the notional by the quintic
//
//	x = clamp((S-K)/K, ±10), y = x^5 - 5x^3 + 4x
//	ratio = (clamp(y/fullPayLine, ±1) + 1) / 2
//
// whose roots at -2, -1, 0, 1, 2 give an even split at S=K.
type polynomialGenie struct {
	fullPayLine *big.Int
}

func (polynomialGenie) Family() model.Family  { return model.FamilyGenie }
func (polynomialGenie) Kind() model.CurveKind { return model.CurvePolynomial }

func (c polynomialGenie) Evaluate(in Inputs) (Result, error) {
	diff := new(big.Int).Sub(in.Spot, in.Strike)
	rel, err := fixed.DivScaled(diff, in.Strike)
	if err != nil {
		return Result{}, err
	}
	x := fixed.Clamp(rel, new(big.Int).Neg(polyDomain), polyDomain)

	x2, err := fixed.MulScaled(x, x)
	if err != nil {
		return Result{}, err
	}
	x3, err := fixed.MulScaled(x2, x)
	if err != nil {
		return Result{}, err
	}
	x5, err := fixed.MulScaled(x3, x2)
	if err != nil {
		return Result{}, err
	}
	y := new(big.Int).Sub(x5, new(big.Int).Mul(x3, big.NewInt(5)))
	y.Add(y, new(big.Int).Mul(x, big.NewInt(4)))

	r, err := fixed.DivScaled(y, c.fullPayLine)
	if err != nil {
		return Result{}, err
	}
	ratio := fixed.Clamp(r, negU, fixed.U)
	ratio.Add(ratio, fixed.U)
	ratio.Quo(ratio, big.NewInt(2))
	return split(ratio, in)
}

// split hands ratio·notional to the long and the remainder to the short. The
// settled magnitude is the long's deviation from half the notional.
func split(ratio *big.Int, in Inputs) (Result, error) {
	notional, err := Notional(in.Strike, in.Size)
	if err != nil {
		return Result{}, err
	}
	long, err := fixed.MulScaled(ratio, notional)
	if err != nil {
		return Result{}, err
	}
	short := new(big.Int).Sub(notional, long)

	net := new(big.Int).Sub(long, short)
	mag := new(big.Int).Quo(new(big.Int).Abs(net), big.NewInt(2))
	return Result{
		Magnitude:  mag,
		LongWins:   net.Sign() > 0,
		LongShare:  long,
		ShortShare: short,
	}, nil
}
