package api

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-engine/internal/book"
	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// Amounts cross the wire as decimal strings ("300", "0.5") and are scaled to
// 18 decimals on the way in.

// Params is the wire form of model.CurveParams.
type Params struct {
	Power       uint32           `json:"power,omitempty"`
	Intensity   *decimal.Decimal `json:"intensity,omitempty"`
	Amplitude   *decimal.Decimal `json:"amplitude,omitempty"`
	Period      *decimal.Decimal `json:"period,omitempty"`
	Phase       *decimal.Decimal `json:"phase,omitempty"`
	FullPayLine *decimal.Decimal `json:"full_pay_line,omitempty"`
}

func (p Params) model() model.CurveParams {
	return model.CurveParams{
		Power:       p.Power,
		Intensity:   scaled(p.Intensity),
		Amplitude:   scaled(p.Amplitude),
		Period:      scaled(p.Period),
		Phase:       scaled(p.Phase),
		FullPayLine: scaled(p.FullPayLine),
	}
}

func paramsView(p model.CurveParams) Params {
	return Params{
		Power:       p.Power,
		Intensity:   decimalPtr(p.Intensity),
		Amplitude:   decimalPtr(p.Amplitude),
		Period:      decimalPtr(p.Period),
		Phase:       decimalPtr(p.Phase),
		FullPayLine: decimalPtr(p.FullPayLine),
	}
}

// CreateAgreementRequest is the JSON body for POST /books/{ticker}/agreements.
type CreateAgreementRequest struct {
	Side       model.Side      `json:"side"`
	Size       decimal.Decimal `json:"size"`
	Collateral decimal.Decimal `json:"collateral"` // strike-asset units; strike = collateral / size
	Premium    decimal.Decimal `json:"premium"`    // options only
	Duration   string          `json:"duration"`   // Go duration, e.g. "24h"
	Params     Params          `json:"params"`
}

// ApproveRequest is the JSON body for POST /accounts/{address}/approve.
type ApproveRequest struct {
	Asset   string          `json:"asset"`   // symbol
	Spender string          `json:"spender"` // book ticker or address
	Amount  decimal.Decimal `json:"amount"`
}

// MintRequest is the JSON body for POST /accounts/{address}/mint.
type MintRequest struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// AgreementView is the wire form of a book's metadata entry.
type AgreementView struct {
	ID              model.Address    `json:"id"`
	Book            model.Address    `json:"book"`
	Ticker          string           `json:"ticker"`
	Status          string           `json:"status"`
	Maker           model.Address    `json:"maker"`
	MakerSide       model.Side       `json:"maker_side"`
	Long            model.Address    `json:"long"`
	Short           model.Address    `json:"short"`
	Underlying      model.Asset      `json:"underlying"`
	StrikeAsset     model.Asset      `json:"strike_asset"`
	Family          model.Family     `json:"family"`
	Curve           model.CurveKind  `json:"curve"`
	OptionType      model.OptionType `json:"option_type"`
	Params          Params           `json:"params"`
	StrikePrice     decimal.Decimal  `json:"strike_price"`
	Size            decimal.Decimal  `json:"size"`
	Premium         decimal.Decimal  `json:"premium"`
	Collateral      decimal.Decimal  `json:"collateral"`
	Expiry          *time.Time       `json:"expiry,omitempty"`
	PriceAtExpiry   *decimal.Decimal `json:"price_at_expiry,omitempty"`
	Funded          bool             `json:"funded"`
	Active          bool             `json:"active"`
	Resolved        bool             `json:"resolved"`
	Exercised       bool             `json:"exercised"`
	Reclaimed       bool             `json:"reclaimed"`
	FundingRefunded bool             `json:"funding_refunded"`
	Settled         bool             `json:"settled"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func agreementView(md model.Metadata) AgreementView {
	v := AgreementView{
		ID:              md.ID,
		Book:            md.Book,
		Ticker:          md.Ticker,
		Status:          md.Status(),
		Maker:           md.Maker,
		MakerSide:       md.MakerSide,
		Long:            md.Long,
		Short:           md.Short,
		Underlying:      md.Underlying,
		StrikeAsset:     md.StrikeAsset,
		Family:          md.Family,
		Curve:           md.Curve,
		OptionType:      md.OptionType,
		Params:          paramsView(md.Params),
		StrikePrice:     fixed.ToDecimal(md.StrikePrice),
		Size:            fixed.ToDecimal(md.Size),
		Premium:         fixed.ToDecimal(md.Premium),
		Collateral:      fixed.ToDecimal(md.Collateral),
		PriceAtExpiry:   decimalPtr(md.PriceAtExpiry),
		Funded:          md.Funded,
		Active:          md.Active,
		Resolved:        md.Resolved,
		Exercised:       md.Exercised,
		Reclaimed:       md.Reclaimed,
		FundingRefunded: md.FundingRefunded,
		Settled:         md.Settled,
		CreatedAt:       md.CreatedAt,
		UpdatedAt:       md.UpdatedAt,
	}
	if !md.Expiry.IsZero() {
		expiry := md.Expiry
		v.Expiry = &expiry
	}
	return v
}

// SettlementResponse is returned by exercise.
type SettlementResponse struct {
	Agreement AgreementView   `json:"agreement"`
	Payout    decimal.Decimal `json:"payout"`
}

// BookView summarises one book. Agreements are included on the detail route.
type BookView struct {
	Address     model.Address    `json:"address"`
	Ticker      string           `json:"ticker"`
	Underlying  model.Asset      `json:"underlying"`
	StrikeAsset model.Asset      `json:"strike_asset"`
	Family      model.Family     `json:"family"`
	Curve       model.CurveKind  `json:"curve"`
	OptionType  model.OptionType `json:"option_type"`
	TieBreak    string           `json:"tie_break"`
	Open        int              `json:"open"`
	Total       int              `json:"total"`
	Agreements  []AgreementView  `json:"agreements,omitempty"`
}

func bookView(info book.Info, withAgreements bool) BookView {
	v := BookView{
		Address:     info.Address,
		Ticker:      info.Ticker,
		Underlying:  info.Underlying,
		StrikeAsset: info.Strike,
		Family:      info.Family,
		Curve:       info.Curve,
		OptionType:  info.Option,
		TieBreak:    info.TieBreak,
		Total:       len(info.Agreements),
	}
	for _, md := range info.Agreements {
		if md.Open() {
			v.Open++
		}
	}
	if withAgreements {
		v.Agreements = make([]AgreementView, 0, len(info.Agreements))
		for _, md := range info.Agreements {
			v.Agreements = append(v.Agreements, agreementView(md))
		}
	}
	return v
}

// EventView is the wire form of a model.Event.
type EventView struct {
	ID        string           `json:"id"`
	Type      model.EventType  `json:"type"`
	Book      model.Address    `json:"book"`
	Agreement model.Address    `json:"agreement"`
	Actor     model.Address    `json:"actor"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	At        time.Time        `json:"at"`
}

func eventView(ev model.Event) EventView {
	return EventView{
		ID:        ev.ID,
		Type:      ev.Type,
		Book:      ev.Book,
		Agreement: ev.Agreement,
		Actor:     ev.Actor,
		Amount:    decimalPtr(ev.Amount),
		At:        ev.At,
	}
}

// AccountView lists an address's balances by asset symbol.
type AccountView struct {
	Address  model.Address              `json:"address"`
	Balances map[string]decimal.Decimal `json:"balances"`
}

func scaled(d *decimal.Decimal) *big.Int {
	if d == nil {
		return nil
	}
	return fixed.FromDecimal(*d)
}

func decimalPtr(x *big.Int) *decimal.Decimal {
	if x == nil {
		return nil
	}
	d := fixed.ToDecimal(x)
	return &d
}
