// Package payoff maps an agreement's terms and the expiry price to the amount
// of strike asset that changes hands at settlement.
//
// Every curve is a pure function of (strike K, expiry price S, size) and its
// own parameters. Curves never touch balances; the book moves funds based on
// the Result.
package payoff

import (
	"fmt"
	"math/big"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

var (
	// ErrInvalidParameter is returned for a curve parameter outside its domain,
	// e.g. power=0 or period=0.
	ErrInvalidParameter = fmt.Errorf("%w: invalid curve parameter", model.ErrArithmetic)

	// ErrUnsupportedCurve is returned when a family does not offer the curve.
	ErrUnsupportedCurve = fmt.Errorf("%w: curve not offered for family", model.ErrArithmetic)
)

// Inputs are the values a curve is evaluated on.
type Inputs struct {
	Strike *big.Int // K
	Spot   *big.Int // S, the price at expiry
	Size   *big.Int // quantity of underlying

	// Collateral caps option payouts when the curve is configured to. Nil falls
	// back to the notional K·size.
	Collateral *big.Int
}

// Result is the outcome of one evaluation.
type Result struct {
	// Magnitude is the strike-asset amount the losing side pays the winner.
	Magnitude *big.Int
	LongWins  bool

	// LongShare and ShortShare are set by split curves (genies): the notional
	// is divided between the parties and Magnitude is the deviation from an
	// even split.
	LongShare  *big.Int
	ShortShare *big.Int
}

// Zero reports whether nothing changes hands.
func (r Result) Zero() bool {
	return r.Magnitude == nil || r.Magnitude.Sign() == 0
}

// Curve is implemented by every payoff variant.
type Curve interface {
	Family() model.Family
	Kind() model.CurveKind
	Evaluate(in Inputs) (Result, error)
}

// Spec selects and parameterises a curve.
type Spec struct {
	Family   model.Family
	Kind     model.CurveKind
	Option   model.OptionType
	Params   model.CurveParams
	TieBreak model.TieBreak

	// CapToCollateral limits quadratic and logarithmic option payouts to the
	// agreement's collateral.
	CapToCollateral bool
}

// New validates spec and returns the matching curve.
func New(spec Spec) (Curve, error) {
	p := spec.Params
	switch spec.Family {
	case model.FamilyFuture:
		switch spec.Kind {
		case model.CurveLinear:
			return linearFuture{tie: spec.TieBreak}, nil
		case model.CurvePower:
			if p.Power < 1 || p.Power > fixed.MaxPower {
				return nil, fmt.Errorf("%w: power %d outside [1, %d]", ErrInvalidParameter, p.Power, fixed.MaxPower)
			}
			return powerFuture{n: p.Power, tie: spec.TieBreak}, nil
		case model.CurveSigmoid:
			if !positive(p.Intensity) {
				return nil, fmt.Errorf("%w: sigmoid intensity must be positive", ErrInvalidParameter)
			}
			return sigmoidFuture{intensity: model.CloneInt(p.Intensity)}, nil
		}

	case model.FamilyOption:
		if spec.Option != model.OptionCall && spec.Option != model.OptionPut {
			return nil, fmt.Errorf("%w: option type must be call or put", ErrInvalidParameter)
		}
		base := option{kind: spec.Option, cap: spec.CapToCollateral}
		switch spec.Kind {
		case model.CurveLinear:
			return linearOption{base}, nil
		case model.CurveQuadratic:
			return quadraticOption{base}, nil
		case model.CurveLogarithmic:
			if !positive(p.Intensity) {
				return nil, fmt.Errorf("%w: logarithmic intensity must be positive", ErrInvalidParameter)
			}
			return logOption{option: base, intensity: model.CloneInt(p.Intensity)}, nil
		}

	case model.FamilyGenie:
		switch spec.Kind {
		case model.CurveSinusoidal:
			if !positive(p.Period) {
				return nil, fmt.Errorf("%w: period must be positive", ErrInvalidParameter)
			}
			if p.Amplitude == nil || p.Amplitude.Sign() < 0 {
				return nil, fmt.Errorf("%w: amplitude must be non-negative", ErrInvalidParameter)
			}
			phase := new(big.Int)
			if p.Phase != nil {
				phase.Set(p.Phase)
			}
			return sinusoidalGenie{
				amplitude: model.CloneInt(p.Amplitude),
				period:    model.CloneInt(p.Period),
				phase:     phase,
			}, nil
		case model.CurvePolynomial:
			if !positive(p.FullPayLine) {
				return nil, fmt.Errorf("%w: full pay line must be positive", ErrInvalidParameter)
			}
			return polynomialGenie{fullPayLine: model.CloneInt(p.FullPayLine)}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedCurve, spec.Family, spec.Kind)
}

// Notional returns K·size.
func Notional(strike, size *big.Int) (*big.Int, error) {
	return fixed.MulScaled(strike, size)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func zero() Result {
	return Result{Magnitude: new(big.Int)}
}

// longWinsAt applies the tie-break policy to the expiry price.
func longWinsAt(spot, strike *big.Int, tie model.TieBreak) bool {
	c := spot.Cmp(strike)
	if tie == model.TieShort {
		return c > 0
	}
	return c >= 0
}
