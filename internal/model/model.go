// Package model defines the core domain types shared across the settlement
// engine. All monetary values are 10^18-scaled integers held in *big.Int;
// never float64 for money.
package model

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies a party, an asset, a book or an agreement instance.
type Address = common.Address

// Side is the position a party holds in an agreement.
type Side uint8

const (
	SideNone Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "none"
	}
}

// Opposite returns the counterparty's side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideNone
	}
}

// ParseSide accepts "long"/"short" in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return SideLong, true
	case "short":
		return SideShort, true
	}
	return SideNone, false
}

// Family groups curves by economic shape.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyFuture
	FamilyOption
	FamilyGenie
)

func (f Family) String() string {
	switch f {
	case FamilyFuture:
		return "future"
	case FamilyOption:
		return "option"
	case FamilyGenie:
		return "genie"
	default:
		return "unknown"
	}
}

// TwoSided reports whether either party can end up owing the other.
// Options only ever pay the long.
func (f Family) TwoSided() bool {
	return f == FamilyFuture || f == FamilyGenie
}

// CurveKind selects the payoff function.
type CurveKind uint8

const (
	CurveUnknown CurveKind = iota
	CurveLinear
	CurveQuadratic
	CurveLogarithmic
	CurvePower
	CurveSigmoid
	CurveSinusoidal
	CurvePolynomial
)

var curveNames = map[CurveKind]string{
	CurveLinear:      "linear",
	CurveQuadratic:   "quadratic",
	CurveLogarithmic: "logarithmic",
	CurvePower:       "power",
	CurveSigmoid:     "sigmoid",
	CurveSinusoidal:  "sinusoidal",
	CurvePolynomial:  "polynomial",
}

func (c CurveKind) String() string {
	if name, ok := curveNames[c]; ok {
		return name
	}
	return "unknown"
}

// OptionType distinguishes calls from puts. Non-option agreements carry OptionNone.
type OptionType uint8

const (
	OptionNone OptionType = iota
	OptionCall
	OptionPut
)

func (o OptionType) String() string {
	switch o {
	case OptionCall:
		return "call"
	case OptionPut:
		return "put"
	default:
		return ""
	}
}

// TieBreak decides who wins a future when the expiry price equals the strike.
type TieBreak uint8

const (
	// TieLong: long wins when S >= K.
	TieLong TieBreak = iota
	// TieShort: long wins only when S > K.
	TieShort
)

func (t TieBreak) String() string {
	if t == TieShort {
		return "short"
	}
	return "long"
}

// Asset is a token identity plus the symbol the oracle knows it by.
type Asset struct {
	Address Address `json:"address"`
	Symbol  string  `json:"symbol"`
}

// CurveParams carries the per-instance curve parameters. Only the fields the
// curve kind reads are meaningful; the rest stay nil/zero.
type CurveParams struct {
	Power       uint32   `json:"power,omitempty"`
	Intensity   *big.Int `json:"intensity,omitempty"`
	Amplitude   *big.Int `json:"amplitude,omitempty"`
	Period      *big.Int `json:"period,omitempty"`
	Phase       *big.Int `json:"phase,omitempty"`
	FullPayLine *big.Int `json:"full_pay_line,omitempty"`
}

// Clone deep-copies the parameter set.
func (p CurveParams) Clone() CurveParams {
	return CurveParams{
		Power:       p.Power,
		Intensity:   CloneInt(p.Intensity),
		Amplitude:   CloneInt(p.Amplitude),
		Period:      CloneInt(p.Period),
		Phase:       CloneInt(p.Phase),
		FullPayLine: CloneInt(p.FullPayLine),
	}
}

// Snapshot is the consumer-facing view of one agreement instance.
type Snapshot struct {
	ID              Address       `json:"id"`
	Book            Address       `json:"book"`
	Maker           Address       `json:"maker"`
	MakerSide       Side          `json:"maker_side"`
	Long            Address       `json:"long"`
	Short           Address       `json:"short"`
	Underlying      Asset         `json:"underlying"`
	StrikeAsset     Asset         `json:"strike_asset"`
	Family          Family        `json:"family"`
	Curve           CurveKind     `json:"curve"`
	OptionType      OptionType    `json:"option_type"`
	Params          CurveParams   `json:"params"`
	StrikePrice     *big.Int      `json:"strike_price"`
	Size            *big.Int      `json:"size"`
	Premium         *big.Int      `json:"premium"`
	Collateral      *big.Int      `json:"collateral"`
	Duration        time.Duration `json:"duration"`
	Expiry          time.Time     `json:"expiry"`
	PriceAtExpiry   *big.Int      `json:"price_at_expiry"`
	Funded          bool          `json:"funded"`
	Active          bool          `json:"active"`
	Resolved        bool          `json:"resolved"`
	Exercised       bool          `json:"exercised"`
	Reclaimed       bool          `json:"reclaimed"`
	FundingRefunded bool          `json:"funding_refunded"`
}

// Metadata is the book's cached mirror of an instance. The instance is the
// source of truth; metadata is refreshed after every successful transition.
type Metadata struct {
	Snapshot
	Ticker    string    `json:"ticker"`
	Settled   bool      `json:"settled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Params = s.Params.Clone()
	c.StrikePrice = CloneInt(s.StrikePrice)
	c.Size = CloneInt(s.Size)
	c.Premium = CloneInt(s.Premium)
	c.Collateral = CloneInt(s.Collateral)
	c.PriceAtExpiry = CloneInt(s.PriceAtExpiry)
	return c
}

// Clone deep-copies the metadata entry.
func (m Metadata) Clone() Metadata {
	c := m
	c.Snapshot = m.Snapshot.Clone()
	return c
}

// Open reports whether the agreement can still be exercised or reclaimed.
func (s Snapshot) Open() bool {
	return !s.Exercised && !s.Reclaimed
}

// Status summarises the lifecycle position of an agreement.
func (s Snapshot) Status() string {
	switch {
	case s.Exercised:
		return "exercised"
	case s.Reclaimed:
		return "reclaimed"
	case s.Resolved:
		return "resolved"
	case s.Active:
		return "active"
	case s.Funded:
		return "funded"
	default:
		return "created"
	}
}

// EventType names a lifecycle transition.
type EventType string

const (
	EventCreated   EventType = "agreement_created"
	EventEntered   EventType = "agreement_entered"
	EventResolved  EventType = "agreement_resolved"
	EventExercised EventType = "agreement_exercised"
	EventReclaimed EventType = "agreement_reclaimed"
)

// Event is an immutable record of a successful transition.
// Once created, these are never modified or deleted.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Book      Address   `json:"book"`
	Agreement Address   `json:"agreement"`
	Actor     Address   `json:"actor"`
	Amount    *big.Int  `json:"amount,omitempty"`
	At        time.Time `json:"at"`
}

// Clone copies the event.
func (e Event) Clone() Event {
	c := e
	c.Amount = CloneInt(e.Amount)
	return c
}

// CloneInt copies v, returning nil for nil.
func CloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
