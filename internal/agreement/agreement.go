// Package agreement implements the lifecycle of a single derivative agreement:
// initialize, fund, activate, resolve, then exactly one of exercise or
// reclaim.
//
// An Agreement never moves settlement funds itself. On exercise it evaluates
// its payoff curve and hands the Result to a Settler (the book), then returns
// the maker's collateral from its own custody balance. Every transition checks
// its state flags first, so replays fail instead of paying twice.
package agreement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/ledger"
	"github.com/atmx/settlement-engine/internal/model"
	"github.com/atmx/settlement-engine/internal/oracle"
	"github.com/atmx/settlement-engine/internal/payoff"
)

// Settler moves the payout between the parties once an agreement is
// exercised. The book implements it.
type Settler interface {
	NotifySettled(ctx context.Context, l ledger.Ledger, id model.Address, res payoff.Result) error
}

// Resolver answers the expiry price question for an agreement.
type Resolver = oracle.Oracle

// Template fixes what every agreement of a book shares.
type Template struct {
	Underlying      model.Asset
	StrikeAsset     model.Asset
	Family          model.Family
	Curve           model.CurveKind
	Option          model.OptionType
	TieBreak        model.TieBreak
	CapToCollateral bool
}

// Terms are the maker's choices for one agreement.
type Terms struct {
	Maker     model.Address
	MakerSide model.Side
	Params    model.CurveParams
	Size      *big.Int
	Premium   *big.Int
}

// Agreement is one instance's state. It is not safe for concurrent use; the
// owning book serialises access.
type Agreement struct {
	tmpl  Template
	curve payoff.Curve

	id    model.Address
	book  model.Address
	terms Terms

	long, short model.Address

	strike        *big.Int
	collateral    *big.Int
	duration      time.Duration
	expiry        time.Time
	priceAtExpiry *big.Int

	initialized     bool
	funded          bool
	active          bool
	resolved        bool
	exercised       bool
	reclaimed       bool
	fundingRefunded bool
}

// New returns an uninitialized agreement stamped from tmpl.
func New(tmpl Template) *Agreement {
	return &Agreement{tmpl: tmpl}
}

// ID returns the instance identity assigned at Initialize.
func (a *Agreement) ID() model.Address { return a.id }

// Initialize binds the instance to its identity, book and terms. It may run
// only once.
func (a *Agreement) Initialize(id, book model.Address, terms Terms) error {
	if a.initialized {
		return model.ErrAlreadyInitialized
	}
	if terms.MakerSide != model.SideLong && terms.MakerSide != model.SideShort {
		return fmt.Errorf("%w: maker side must be long or short", model.ErrInvalidTerms)
	}
	if (terms.Maker == model.Address{}) {
		return fmt.Errorf("%w: maker is the zero address", model.ErrInvalidTerms)
	}
	if terms.Size == nil || terms.Size.Sign() <= 0 {
		return fmt.Errorf("%w: size must be positive", model.ErrInvalidTerms)
	}
	premium := new(big.Int)
	if terms.Premium != nil {
		if terms.Premium.Sign() < 0 {
			return fmt.Errorf("%w: negative premium", model.ErrInvalidTerms)
		}
		premium.Set(terms.Premium)
	}
	if premium.Sign() != 0 && a.tmpl.Family != model.FamilyOption {
		return fmt.Errorf("%w: %s agreements carry no premium", model.ErrInvalidTerms, a.tmpl.Family)
	}

	curve, err := payoff.New(payoff.Spec{
		Family:          a.tmpl.Family,
		Kind:            a.tmpl.Curve,
		Option:          a.tmpl.Option,
		Params:          terms.Params,
		TieBreak:        a.tmpl.TieBreak,
		CapToCollateral: a.tmpl.CapToCollateral,
	})
	if err != nil {
		return err
	}

	a.curve = curve
	a.id = id
	a.book = book
	a.terms = Terms{
		Maker:     terms.Maker,
		MakerSide: terms.MakerSide,
		Params:    terms.Params.Clone(),
		Size:      new(big.Int).Set(terms.Size),
		Premium:   premium,
	}
	switch terms.MakerSide {
	case model.SideLong:
		a.long = terms.Maker
	case model.SideShort:
		a.short = terms.Maker
	}
	a.initialized = true
	return nil
}

// FundingAsset is the token the maker deposits: the strike asset when long,
// the underlying when short.
func (a *Agreement) FundingAsset() model.Asset {
	if a.terms.MakerSide == model.SideShort {
		return a.tmpl.Underlying
	}
	return a.tmpl.StrikeAsset
}

// FundingAmount is the deposit Fund expects in custody for a given
// strike-asset collateral.
func (a *Agreement) FundingAmount(collateral *big.Int) *big.Int {
	if a.terms.MakerSide == model.SideShort {
		return new(big.Int).Set(a.terms.Size)
	}
	return new(big.Int).Set(collateral)
}

// Fund fixes the strike at collateral/size and records the duration. The
// maker's deposit must already sit in the instance's custody balance.
func (a *Agreement) Fund(l ledger.Ledger, collateral *big.Int, duration time.Duration) error {
	if !a.initialized {
		return model.ErrNotInitialized
	}
	if a.funded {
		return model.ErrAlreadyFunded
	}
	if collateral == nil || collateral.Sign() <= 0 {
		return fmt.Errorf("%w: collateral must be positive", model.ErrInvalidTerms)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", model.ErrInvalidTerms)
	}

	asset := a.FundingAsset()
	need := a.FundingAmount(collateral)
	if have := l.BalanceOf(asset.Address, a.id); have.Cmp(need) < 0 {
		return fmt.Errorf("%w: holds %s %s, needs %s",
			model.ErrUnderfunded, fixed.String(have), asset.Symbol, fixed.String(need))
	}

	strike, err := fixed.DivScaled(collateral, a.terms.Size)
	if err != nil {
		return err
	}
	if strike.Sign() == 0 {
		return fmt.Errorf("%w: collateral too small for size", model.ErrInvalidTerms)
	}

	a.strike = strike
	a.collateral = new(big.Int).Set(collateral)
	a.duration = duration
	a.funded = true
	return nil
}

// Activate seats counterparty in the vacant role and starts the clock.
func (a *Agreement) Activate(counterparty model.Address, now time.Time) error {
	if !a.funded {
		return model.ErrNotFunded
	}
	if a.roleFilled() {
		return model.ErrAlreadyEntered
	}
	if a.active {
		return model.ErrAlreadyActive
	}
	if (counterparty == model.Address{}) {
		return fmt.Errorf("%w: counterparty is the zero address", model.ErrInvalidTerms)
	}
	if counterparty == a.terms.Maker {
		return model.ErrSelfDealing
	}

	if a.terms.MakerSide == model.SideLong {
		a.short = counterparty
	} else {
		a.long = counterparty
	}
	a.expiry = now.Add(a.duration)
	a.active = true
	return nil
}

func (a *Agreement) roleFilled() bool {
	return a.long != (model.Address{}) && a.short != (model.Address{})
}

// Resolve reads and caches the expiry price. Anyone may call it, once, at or
// after expiry.
func (a *Agreement) Resolve(ctx context.Context, r Resolver, now time.Time) error {
	if !a.active {
		return model.ErrNotActive
	}
	if a.resolved {
		return model.ErrAlreadyResolved
	}
	if now.Before(a.expiry) {
		return fmt.Errorf("%w: expires %s", model.ErrTooEarly, a.expiry.UTC().Format(time.RFC3339))
	}
	price, err := r.GetPrice(ctx, a.tmpl.Underlying.Symbol, a.tmpl.StrikeAsset.Symbol)
	if err != nil {
		if !errors.Is(err, model.ErrOracle) {
			err = fmt.Errorf("%w: %v", model.ErrOracle, err)
		}
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("%w: %s/%s", oracle.ErrNoPrice, a.tmpl.Underlying.Symbol, a.tmpl.StrikeAsset.Symbol)
	}
	a.priceAtExpiry = new(big.Int).Set(price)
	a.resolved = true
	return nil
}

// Payoff evaluates the curve at the cached expiry price.
func (a *Agreement) Payoff() (payoff.Result, error) {
	if !a.resolved {
		return payoff.Result{}, model.ErrNotResolved
	}
	return a.curve.Evaluate(payoff.Inputs{
		Strike:     a.strike,
		Spot:       a.priceAtExpiry,
		Size:       a.terms.Size,
		Collateral: a.collateral,
	})
}

// Exercise settles a resolved agreement. Options are exercised by the long;
// futures and genies by either party. Admitting the short on two-sided
// agreements is deliberate: a long who owes the payout would never settle.
// The settler moves the payout, then the maker's deposit is returned.
func (a *Agreement) Exercise(ctx context.Context, l ledger.Ledger, s Settler, caller model.Address) (payoff.Result, error) {
	if err := a.checkOpen(); err != nil {
		return payoff.Result{}, err
	}
	if !a.active {
		return payoff.Result{}, model.ErrNotActive
	}
	if a.tmpl.Family.TwoSided() {
		if caller != a.long && caller != a.short {
			return payoff.Result{}, model.ErrNotParty
		}
	} else if caller != a.long {
		return payoff.Result{}, model.ErrNotLong
	}
	if !a.resolved {
		return payoff.Result{}, model.ErrNotResolved
	}

	res, err := a.Payoff()
	if err != nil {
		return payoff.Result{}, err
	}
	if err := s.NotifySettled(ctx, l, a.id, res); err != nil {
		return payoff.Result{}, err
	}
	a.exercised = true
	if err := a.refund(l); err != nil {
		return payoff.Result{}, err
	}
	return res, nil
}

// Reclaim lets the short close an agreement at or after expiry without paying
// the long. For futures and genies the price must be resolved and the payoff
// must not favour the long. A payoff that overflows counts as nothing owed.
func (a *Agreement) Reclaim(l ledger.Ledger, caller model.Address, now time.Time) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if !a.active {
		return model.ErrNotActive
	}
	if caller != a.short {
		return model.ErrNotShort
	}
	if now.Before(a.expiry) {
		return model.ErrTooEarly
	}
	if a.tmpl.Family.TwoSided() {
		res, err := a.Payoff()
		switch {
		case errors.Is(err, model.ErrArithmetic):
			// No payout can ever be computed, so exercise is closed for
			// good; the deposit must still go back.
		case err != nil:
			return err
		case res.LongWins && !res.Zero():
			return model.ErrLongOwed
		}
	}
	a.reclaimed = true
	return a.refund(l)
}

func (a *Agreement) checkOpen() error {
	switch {
	case a.exercised:
		return model.ErrAlreadyExercised
	case a.reclaimed:
		return model.ErrAlreadyReclaimed
	}
	return nil
}

// refund returns the instance's whole balance of the funding asset to the
// maker. It runs at most once per instance.
func (a *Agreement) refund(l ledger.Ledger) error {
	if a.fundingRefunded {
		return nil
	}
	asset := a.FundingAsset().Address
	if bal := l.BalanceOf(asset, a.id); bal.Sign() > 0 {
		if err := l.Transfer(asset, a.id, a.terms.Maker, bal); err != nil {
			return err
		}
	}
	a.fundingRefunded = true
	return nil
}

// Clone returns a deep copy. Books mutate clones and swap them in only when a
// transition succeeds.
func (a *Agreement) Clone() *Agreement {
	c := *a
	c.terms.Params = a.terms.Params.Clone()
	c.terms.Size = model.CloneInt(a.terms.Size)
	c.terms.Premium = model.CloneInt(a.terms.Premium)
	c.strike = model.CloneInt(a.strike)
	c.collateral = model.CloneInt(a.collateral)
	c.priceAtExpiry = model.CloneInt(a.priceAtExpiry)
	return &c
}

// Snapshot returns the read view of the instance.
func (a *Agreement) Snapshot() model.Snapshot {
	return model.Snapshot{
		ID:              a.id,
		Book:            a.book,
		Maker:           a.terms.Maker,
		MakerSide:       a.terms.MakerSide,
		Long:            a.long,
		Short:           a.short,
		Underlying:      a.tmpl.Underlying,
		StrikeAsset:     a.tmpl.StrikeAsset,
		Family:          a.tmpl.Family,
		Curve:           a.tmpl.Curve,
		OptionType:      a.tmpl.Option,
		Params:          a.terms.Params.Clone(),
		StrikePrice:     model.CloneInt(a.strike),
		Size:            model.CloneInt(a.terms.Size),
		Premium:         model.CloneInt(a.terms.Premium),
		Collateral:      model.CloneInt(a.collateral),
		Duration:        a.duration,
		Expiry:          a.expiry,
		PriceAtExpiry:   model.CloneInt(a.priceAtExpiry),
		Funded:          a.funded,
		Active:          a.active,
		Resolved:        a.resolved,
		Exercised:       a.exercised,
		Reclaimed:       a.reclaimed,
		FundingRefunded: a.fundingRefunded,
	}
}
