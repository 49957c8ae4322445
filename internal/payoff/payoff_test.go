package payoff

import (
	"errors"
	"math/big"
	"testing"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// d is a test helper for scaled values from decimal literals.
func d(s string) *big.Int {
	return fixed.MustParse(s)
}

func mustCurve(t *testing.T, spec Spec) Curve {
	t.Helper()
	c, err := New(spec)
	if err != nil {
		t.Fatalf("New(%s %s): unexpected error: %v", spec.Family, spec.Kind, err)
	}
	return c
}

func eval(t *testing.T, c Curve, k, s, size string) Result {
	t.Helper()
	r, err := c.Evaluate(Inputs{Strike: d(k), Spot: d(s), Size: d(size)})
	if err != nil {
		t.Fatalf("%s(K=%s, S=%s, size=%s): unexpected error: %v", c.Kind(), k, s, size, err)
	}
	return r
}

func expectMagnitude(t *testing.T, r Result, want string) {
	t.Helper()
	if r.Magnitude.Cmp(d(want)) != 0 {
		t.Errorf("magnitude = %s, want %s", fixed.String(r.Magnitude), want)
	}
}

// --- Futures ---

func TestLinearFuture_ZeroSumSymmetry(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurveLinear})
	r := eval(t, c, "3", "5", "100")
	expectMagnitude(t, r, "200")
	if !r.LongWins {
		t.Error("long should win when S > K")
	}

	r = eval(t, c, "5", "3", "100")
	expectMagnitude(t, r, "200")
	if r.LongWins {
		t.Error("short should win when S < K")
	}
}

func TestFutures_TieYieldsZero(t *testing.T) {
	specs := []Spec{
		{Family: model.FamilyFuture, Kind: model.CurveLinear},
		{Family: model.FamilyFuture, Kind: model.CurvePower, Params: model.CurveParams{Power: 4}},
		{Family: model.FamilyFuture, Kind: model.CurveSigmoid, Params: model.CurveParams{Intensity: d("2")}},
		{Family: model.FamilyGenie, Kind: model.CurveSinusoidal, Params: model.CurveParams{Amplitude: d("1"), Period: d("4")}},
		{Family: model.FamilyGenie, Kind: model.CurvePolynomial, Params: model.CurveParams{FullPayLine: d("2")}},
		{Family: model.FamilyOption, Kind: model.CurveLinear, Option: model.OptionCall},
		{Family: model.FamilyOption, Kind: model.CurveQuadratic, Option: model.OptionPut, CapToCollateral: true},
		{Family: model.FamilyOption, Kind: model.CurveLogarithmic, Option: model.OptionCall, Params: model.CurveParams{Intensity: d("2")}},
	}
	for _, spec := range specs {
		c := mustCurve(t, spec)
		r := eval(t, c, "3", "3", "100")
		if !r.Zero() {
			t.Errorf("%s %s: S == K should pay nothing, got %s", spec.Family, spec.Kind, fixed.String(r.Magnitude))
		}
	}
}

func TestLinearFuture_TieBreakPolicy(t *testing.T) {
	long := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurveLinear, TieBreak: model.TieLong})
	short := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurveLinear, TieBreak: model.TieShort})
	if !eval(t, long, "3", "3", "1").LongWins {
		t.Error("TieLong: long should take the tie")
	}
	if eval(t, short, "3", "3", "1").LongWins {
		t.Error("TieShort: long should not take the tie")
	}
}

func TestPowerFuture_PowerOneMatchesLinear(t *testing.T) {
	linear := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurveLinear})
	power := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurvePower, Params: model.CurveParams{Power: 1}})

	cases := [][3]string{
		{"3", "5", "100"},
		{"1234.56789", "1000.000000000000000001", "0.333"},
		{"0.000000000000000007", "7", "12345678.9"},
	}
	for _, tc := range cases {
		a := eval(t, linear, tc[0], tc[1], tc[2])
		b := eval(t, power, tc[0], tc[1], tc[2])
		if a.Magnitude.Cmp(b.Magnitude) != 0 || a.LongWins != b.LongWins {
			t.Errorf("K=%s S=%s size=%s: linear %s/%v != power %s/%v", tc[0], tc[1], tc[2],
				fixed.String(a.Magnitude), a.LongWins, fixed.String(b.Magnitude), b.LongWins)
		}
	}
}

func TestPowerFuture_Cubic(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurvePower, Params: model.CurveParams{Power: 3}})
	r := eval(t, c, "3", "1", "100")
	expectMagnitude(t, r, "800")
	if r.LongWins {
		t.Error("short should win when S < K")
	}
}

func TestPowerFuture_InvalidPower(t *testing.T) {
	for _, n := range []uint32{0, 101} {
		_, err := New(Spec{Family: model.FamilyFuture, Kind: model.CurvePower, Params: model.CurveParams{Power: n}})
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("power=%d: expected ErrInvalidParameter, got %v", n, err)
		}
		if !errors.Is(err, model.ErrArithmetic) {
			t.Errorf("power=%d: invalid parameter should be an arithmetic error", n)
		}
	}
}

func TestSigmoidFuture(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyFuture, Kind: model.CurveSigmoid, Params: model.CurveParams{Intensity: d("1")}})

	up := eval(t, c, "100", "101", "1")
	down := eval(t, c, "100", "99", "1")
	if !up.LongWins || down.LongWins {
		t.Errorf("direction wrong: up=%v down=%v", up.LongWins, down.LongWins)
	}
	// 2·(sigmoid(1) - 0.5)·100 ≈ 46.2117
	want := d("46.211715726000974")
	tol := d("0.000001")
	diff := new(big.Int).Sub(up.Magnitude, want)
	if diff.Abs(diff).Cmp(tol) > 0 {
		t.Errorf("magnitude = %s, want ≈ 46.2117", fixed.String(up.Magnitude))
	}
	diff = new(big.Int).Sub(up.Magnitude, down.Magnitude)
	if diff.Abs(diff).Cmp(tol) > 0 {
		t.Errorf("sigmoid should be symmetric: %s vs %s", fixed.String(up.Magnitude), fixed.String(down.Magnitude))
	}

	far := eval(t, c, "100", "1000", "1")
	if far.Magnitude.Cmp(d("100")) != 0 {
		t.Errorf("large move should saturate at the notional, got %s", fixed.String(far.Magnitude))
	}
}

// --- Genies ---

func TestSinusoidalGenie_QuarterPeriod(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurveSinusoidal,
		Params: model.CurveParams{Amplitude: d("1"), Period: d("4")}})
	r := eval(t, c, "2", "3", "10") // angle = π/2, notional = 20

	if !r.LongWins {
		t.Fatal("long should win at the crest")
	}
	tol := d("0.000001")
	diff := new(big.Int).Sub(r.Magnitude, d("10"))
	if diff.Abs(diff).Cmp(tol) > 0 {
		t.Errorf("magnitude = %s, want ≈ 10", fixed.String(r.Magnitude))
	}
	sum := new(big.Int).Add(r.LongShare, r.ShortShare)
	if sum.Cmp(d("20")) != 0 {
		t.Errorf("shares should add up to the notional, got %s", fixed.String(sum))
	}
}

func TestSinusoidalGenie_ClampsRatio(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurveSinusoidal,
		Params: model.CurveParams{Amplitude: d("3"), Period: d("4")}})
	r := eval(t, c, "2", "3", "10")
	if r.LongShare.Cmp(d("20")) != 0 || r.ShortShare.Sign() != 0 {
		t.Errorf("ratio should clamp to 1: long=%s short=%s", fixed.String(r.LongShare), fixed.String(r.ShortShare))
	}
	expectMagnitude(t, r, "10")

	r = eval(t, c, "3", "2", "10") // trough
	if r.LongShare.Sign() != 0 || r.LongWins {
		t.Errorf("ratio should clamp to 0 at the trough: long=%s", fixed.String(r.LongShare))
	}
}

func TestSinusoidalGenie_Phase(t *testing.T) {
	halfPi := new(big.Int).Rsh(fixed.Pi, 1)
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurveSinusoidal,
		Params: model.CurveParams{Amplitude: d("1"), Period: d("4"), Phase: halfPi}})
	r := eval(t, c, "2", "2", "10")
	if !r.LongWins || r.Zero() {
		t.Error("a quarter-turn phase should favour the long at S == K")
	}
}

func TestSinusoidalGenie_InvalidPeriod(t *testing.T) {
	_, err := New(Spec{Family: model.FamilyGenie, Kind: model.CurveSinusoidal,
		Params: model.CurveParams{Amplitude: d("1"), Period: new(big.Int)}})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("period=0: expected ErrInvalidParameter, got %v", err)
	}
}

func TestPolynomialGenie(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurvePolynomial,
		Params: model.CurveParams{FullPayLine: d("2")}})

	// x = 0.5, y = 1.40625, ratio = (0.703125 + 1) / 2
	r := eval(t, c, "1", "1.5", "10")
	if r.LongShare.Cmp(d("8.515625")) != 0 {
		t.Errorf("long share = %s, want 8.515625", fixed.String(r.LongShare))
	}
	if r.ShortShare.Cmp(d("1.484375")) != 0 {
		t.Errorf("short share = %s, want 1.484375", fixed.String(r.ShortShare))
	}
	expectMagnitude(t, r, "3.515625")
	if !r.LongWins {
		t.Error("long should win")
	}
}

func TestPolynomialGenie_ClampsDomain(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurvePolynomial,
		Params: model.CurveParams{FullPayLine: d("2")}})
	r := eval(t, c, "1", "20", "10")
	if r.LongShare.Cmp(d("10")) != 0 {
		t.Errorf("long should take the whole notional, got %s", fixed.String(r.LongShare))
	}
}

func TestPolynomialGenie_Root(t *testing.T) {
	c := mustCurve(t, Spec{Family: model.FamilyGenie, Kind: model.CurvePolynomial,
		Params: model.CurveParams{FullPayLine: d("2")}})
	// x = 1 is a root of x^5 - 5x^3 + 4x.
	r := eval(t, c, "1", "2", "10")
	if !r.Zero() {
		t.Errorf("root should split evenly, got %s", fixed.String(r.Magnitude))
	}
}

// --- Options ---

func TestLinearOption(t *testing.T) {
	call := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveLinear, Option: model.OptionCall})
	put := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveLinear, Option: model.OptionPut})

	r := eval(t, call, "2", "3", "10")
	expectMagnitude(t, r, "20")
	if !r.LongWins {
		t.Error("in-the-money call should pay the long")
	}
	r = eval(t, put, "2", "1", "10")
	expectMagnitude(t, r, "20")

	if _, err := call.Evaluate(Inputs{Strike: d("2"), Spot: d("1"), Size: d("10")}); !errors.Is(err, model.ErrOutOfTheMoney) {
		t.Errorf("out-of-the-money call: expected ErrOutOfTheMoney, got %v", err)
	}
}

func TestQuadraticOption_CollateralCap(t *testing.T) {
	capped := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveQuadratic, Option: model.OptionCall, CapToCollateral: true})
	open := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveQuadratic, Option: model.OptionCall})

	expectMagnitude(t, eval(t, capped, "2", "10", "1"), "2")
	expectMagnitude(t, eval(t, open, "2", "10", "1"), "64")
	expectMagnitude(t, eval(t, capped, "2", "3", "1"), "1")

	r, err := capped.Evaluate(Inputs{Strike: d("2"), Spot: d("10"), Size: d("1"), Collateral: d("5")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectMagnitude(t, r, "5")
}

func TestLogOption_Boundary(t *testing.T) {
	call := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveLogarithmic, Option: model.OptionCall,
		Params: model.CurveParams{Intensity: d("2")}})

	// K + 1/intensity is the last point that does not fail.
	r := eval(t, call, "3", "3.5", "10")
	if !r.Zero() {
		t.Errorf("threshold should pay ln(1) = 0, got %s", fixed.String(r.Magnitude))
	}

	oneCloser := new(big.Int).Sub(d("3.5"), big.NewInt(1))
	_, err := call.Evaluate(Inputs{Strike: d("3"), Spot: oneCloser, Size: d("10")})
	if !errors.Is(err, model.ErrOutOfTheMoney) {
		t.Errorf("one unit inside the threshold: expected ErrOutOfTheMoney, got %v", err)
	}
}

func TestLogOption_PutBoundary(t *testing.T) {
	put := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveLogarithmic, Option: model.OptionPut,
		Params: model.CurveParams{Intensity: d("4")}})

	if r := eval(t, put, "3", "2.75", "10"); !r.Zero() {
		t.Errorf("threshold should pay 0, got %s", fixed.String(r.Magnitude))
	}
	oneCloser := new(big.Int).Add(d("2.75"), big.NewInt(1))
	if _, err := put.Evaluate(Inputs{Strike: d("3"), Spot: oneCloser, Size: d("10")}); !errors.Is(err, model.ErrOutOfTheMoney) {
		t.Errorf("expected ErrOutOfTheMoney, got %v", err)
	}
}

func TestLogOption_Payout(t *testing.T) {
	call := mustCurve(t, Spec{Family: model.FamilyOption, Kind: model.CurveLogarithmic, Option: model.OptionCall,
		Params: model.CurveParams{Intensity: d("1")}})
	// ln(1 · (5 - 3)) · 10 = 10·ln 2
	r := eval(t, call, "3", "5", "10")
	want := new(big.Int).Mul(fixed.Ln2, big.NewInt(10))
	diff := new(big.Int).Sub(r.Magnitude, want)
	if diff.Abs(diff).Cmp(big.NewInt(1_000_000_000)) > 0 {
		t.Errorf("magnitude = %s, want ≈ %s", fixed.String(r.Magnitude), fixed.String(want))
	}
	if !r.LongWins {
		t.Error("long should win")
	}
}

func TestNew_RejectsUnsupported(t *testing.T) {
	bad := []Spec{
		{Family: model.FamilyFuture, Kind: model.CurveSinusoidal},
		{Family: model.FamilyGenie, Kind: model.CurveLinear},
		{Family: model.FamilyOption, Kind: model.CurveLinear},                                  // no call/put
		{Family: model.FamilyOption, Kind: model.CurveLogarithmic, Option: model.OptionCall}, // no intensity
		{Family: model.FamilyUnknown, Kind: model.CurveLinear},
	}
	for _, spec := range bad {
		if _, err := New(spec); !errors.Is(err, model.ErrArithmetic) {
			t.Errorf("%s %s/%s: expected arithmetic error, got %v", spec.Family, spec.Kind, spec.Option, err)
		}
	}
}
