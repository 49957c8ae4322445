package payoff

import (
	"math/big"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// linearFuture pays |S-K|·size.
type linearFuture struct {
	tie model.TieBreak
}

func (linearFuture) Family() model.Family  { return model.FamilyFuture }
func (linearFuture) Kind() model.CurveKind { return model.CurveLinear }

func (c linearFuture) Evaluate(in Inputs) (Result, error) {
	diff := new(big.Int).Sub(in.Spot, in.Strike)
	mag, err := fixed.MulScaled(diff.Abs(diff), in.Size)
	if err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: longWinsAt(in.Spot, in.Strike, c.tie)}, nil
}

// powerFuture pays |S-K|^n·size. With n=1 it matches linearFuture exactly.
type powerFuture struct {
	n   uint32
	tie model.TieBreak
}

func (powerFuture) Family() model.Family  { return model.FamilyFuture }
func (powerFuture) Kind() model.CurveKind { return model.CurvePower }

func (c powerFuture) Evaluate(in Inputs) (Result, error) {
	diff := new(big.Int).Sub(in.Spot, in.Strike)
	scaled, err := fixed.PowScaled(diff.Abs(diff), c.n)
	if err != nil {
		return Result{}, err
	}
	mag, err := fixed.MulScaled(scaled, in.Size)
	if err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: longWinsAt(in.Spot, in.Strike, c.tie)}, nil
}

// sigmoidFuture pays 2·|sigmoid(intensity·(S-K)) - 1/2|·notional. The curve
// saturates at the full notional for large moves in either direction.
type sigmoidFuture struct {
	intensity *big.Int
}

func (sigmoidFuture) Family() model.Family  { return model.FamilyFuture }
func (sigmoidFuture) Kind() model.CurveKind { return model.CurveSigmoid }

func (c sigmoidFuture) Evaluate(in Inputs) (Result, error) {
	diff := new(big.Int).Sub(in.Spot, in.Strike)
	z, err := fixed.MulScaled(c.intensity, diff)
	if err != nil {
		return Result{}, err
	}
	s, err := fixed.SigmoidScaled(z)
	if err != nil {
		return Result{}, err
	}
	dev := s.Sub(s, fixed.HalfU)
	dev.Abs(dev).Lsh(dev, 1)

	notional, err := Notional(in.Strike, in.Size)
	if err != nil {
		return Result{}, err
	}
	mag, err := fixed.MulScaled(dev, notional)
	if err != nil {
		return Result{}, err
	}
	return Result{Magnitude: mag, LongWins: in.Spot.Cmp(in.Strike) > 0}, nil
}
