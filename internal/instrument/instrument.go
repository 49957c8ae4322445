// Package instrument handles book ticker parsing and validation. A ticker
// names the asset pair, the agreement family and the payoff curve a book
// offers.
package instrument

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/atmx/settlement-engine/internal/model"
)

// Supported agreement kinds.
const (
	KindFuture = "FUTURE"
	KindCall   = "CALL"
	KindPut    = "PUT"
	KindGenie  = "GENIE"
)

// Curve codes as they appear in tickers.
const (
	CodeLinear     = "LINEAR"
	CodeQuadratic  = "QUAD"
	CodeLog        = "LOG"
	CodePower      = "POWER"
	CodeSigmoid    = "SIGMOID"
	CodeSinusoidal = "SIN"
	CodePolynomial = "POLY"
)

var curveCodes = map[string]model.CurveKind{
	CodeLinear:     model.CurveLinear,
	CodeQuadratic:  model.CurveQuadratic,
	CodeLog:        model.CurveLogarithmic,
	CodePower:      model.CurvePower,
	CodeSigmoid:    model.CurveSigmoid,
	CodeSinusoidal: model.CurveSinusoidal,
	CodePolynomial: model.CurvePolynomial,
}

// offered lists the curves each kind supports.
var offered = map[string][]model.CurveKind{
	KindFuture: {model.CurveLinear, model.CurvePower, model.CurveSigmoid},
	KindCall:   {model.CurveLinear, model.CurveQuadratic, model.CurveLogarithmic},
	KindPut:    {model.CurveLinear, model.CurveQuadratic, model.CurveLogarithmic},
	KindGenie:  {model.CurveSinusoidal, model.CurvePolynomial},
}

// tickerRegex matches: {UNDERLYING}-{STRIKE}-{KIND}-{CURVE}
// Example: WETH-USDC-FUTURE-POWER
var tickerRegex = regexp.MustCompile(`^([A-Z0-9]{2,10})-([A-Z0-9]{2,10})-([A-Z]+)-([A-Z]+)$`)

var (
	ErrInvalidTicker = errors.New("instrument: invalid ticker format")
	ErrInvalidKind   = errors.New("instrument: unsupported agreement kind")
	ErrInvalidCurve  = errors.New("instrument: unsupported curve")
)

// Instrument is a parsed book ticker.
type Instrument struct {
	Ticker     string           `json:"ticker"`
	Underlying string           `json:"underlying"`
	Strike     string           `json:"strike"`
	Family     model.Family     `json:"family"`
	Option     model.OptionType `json:"option_type"`
	Curve      model.CurveKind  `json:"curve"`
}

// ParseTicker parses and validates a book ticker.
// Format: {UNDERLYING}-{STRIKE}-{KIND}-{CURVE}
func ParseTicker(ticker string) (*Instrument, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {UNDERLYING}-{STRIKE}-{KIND}-{CURVE})",
			ErrInvalidTicker, ticker)
	}
	underlying, strike, kind, code := matches[1], matches[2], matches[3], matches[4]

	if underlying == strike {
		return nil, fmt.Errorf("%w: %s settles in itself", ErrInvalidTicker, ticker)
	}
	curves, ok := offered[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	curve, ok := curveCodes[code]
	if !ok || !contains(curves, curve) {
		return nil, fmt.Errorf("%w: %s for %s", ErrInvalidCurve, code, kind)
	}

	inst := &Instrument{
		Ticker:     ticker,
		Underlying: underlying,
		Strike:     strike,
		Curve:      curve,
	}
	switch kind {
	case KindFuture:
		inst.Family = model.FamilyFuture
	case KindGenie:
		inst.Family = model.FamilyGenie
	case KindCall:
		inst.Family, inst.Option = model.FamilyOption, model.OptionCall
	case KindPut:
		inst.Family, inst.Option = model.FamilyOption, model.OptionPut
	}
	return inst, nil
}

func contains(kinds []model.CurveKind, k model.CurveKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
