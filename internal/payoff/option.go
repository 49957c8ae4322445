package payoff

import (
	"math/big"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// option holds what every premium-bearing curve shares.
type option struct {
	kind model.OptionType
	cap  bool
}

func (option) Family() model.Family { return model.FamilyOption }

// moneyness returns S-K for calls and K-S for puts.
func (o option) moneyness(in Inputs) *big.Int {
	if o.kind == model.OptionPut {
		return new(big.Int).Sub(in.Strike, in.Spot)
	}
	return new(big.Int).Sub(in.Spot, in.Strike)
}

// limit applies the collateral cap when configured.
func (o option) limit(mag *big.Int, in Inputs) (*big.Int, error) {
	if !o.cap {
		return mag, nil
	}
	ceiling := in.Collateral
	if ceiling == nil {
		var err error
		if ceiling, err = Notional(in.Strike, in.Size); err != nil {
			return nil, err
		}
	}
	return fixed.Min(mag, ceiling), nil
}

// itm evaluates the shared preconditions: S=K pays nothing, the wrong side
// of the strike fails.
func (o option) itm(in Inputs) (*big.Int, bool, error) {
	diff := o.moneyness(in)
	switch diff.Sign() {
	case 0:
		return diff, false, nil
	case -1:
		return nil, false, model.ErrOutOfTheMoney
	}
	return diff, true, nil
}

// linearOption pays the full notional once in the money.
type linearOption struct{ option }

func (linearOption) Kind() model.CurveKind { return model.CurveLinear }

func (c linearOption) Evaluate(in Inputs) (Result, error) {
	_, ok, err := c.itm(in)
	if err != nil || !ok {
		return zero(), err
	}
	mag, err := Notional(in.Strike, in.Size)
	if err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: true}, nil
}

// quadraticOption pays (S-K)^2·size, capped at collateral when configured.
type quadraticOption struct{ option }

func (quadraticOption) Kind() model.CurveKind { return model.CurveQuadratic }

func (c quadraticOption) Evaluate(in Inputs) (Result, error) {
	diff, ok, err := c.itm(in)
	if err != nil || !ok {
		return zero(), err
	}
	sq, err := fixed.PowScaled(diff, 2)
	if err != nil {
		return Result{}, err
	}
	mag, err := fixed.MulScaled(sq, in.Size)
	if err != nil {
		return Result{}, err
	}
	if mag, err = c.limit(mag, in); err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: true}, nil
}

// logOption pays ln(intensity·(S-K))·size. The price must clear the strike
// by at least 1/intensity, where the log turns non-negative.
type logOption struct {
	option
	intensity *big.Int
}

func (logOption) Kind() model.CurveKind { return model.CurveLogarithmic }

func (c logOption) Evaluate(in Inputs) (Result, error) {
	diff, ok, err := c.itm(in)
	if err != nil || !ok {
		return zero(), err
	}
	arg, err := fixed.MulScaled(c.intensity, diff)
	if err != nil {
		return Result{}, err
	}
	if arg.Cmp(fixed.U) < 0 {
		return Result{}, model.ErrOutOfTheMoney
	}
	ln, err := fixed.Ln(arg)
	if err != nil {
		return Result{}, err
	}
	mag, err := fixed.MulScaled(ln, in.Size)
	if err != nil {
		return Result{}, err
	}
	if mag, err = c.limit(mag, in); err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: mag.Sign() > 0}, nil
}
