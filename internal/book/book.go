// Package book is the factory and registry for agreements of one instrument.
//
// A Book stamps new agreements from its template, keeps them in an
// append-only arena, mirrors their key fields in a metadata cache, and is the
// only component that moves settlement funds between parties. Every
// transition runs against a clone of the agreement inside a ledger
// transaction; the clone replaces the original only when the whole
// transition, token movements included, succeeds.
package book

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/atmx/settlement-engine/internal/agreement"
	"github.com/atmx/settlement-engine/internal/instrument"
	"github.com/atmx/settlement-engine/internal/ledger"
	"github.com/atmx/settlement-engine/internal/metrics"
	"github.com/atmx/settlement-engine/internal/model"
	"github.com/atmx/settlement-engine/internal/oracle"
	"github.com/atmx/settlement-engine/internal/payoff"
	"github.com/atmx/settlement-engine/internal/store"
)

// Publisher receives every committed event. The WebSocket hub implements it.
type Publisher interface {
	Publish(ev model.Event)
}

// Config describes the instrument a book offers.
type Config struct {
	Instrument      *instrument.Instrument
	Underlying      model.Asset
	StrikeAsset     model.Asset
	TieBreak        model.TieBreak
	CapToCollateral bool
}

// CreateRequest carries the maker's terms for a new agreement.
type CreateRequest struct {
	Side       model.Side
	Params     model.CurveParams
	Size       *big.Int
	Premium    *big.Int
	Collateral *big.Int
	Duration   time.Duration
}

// Book owns every agreement of one instrument. It is safe for concurrent use;
// transitions are serialised by a single mutex.
type Book struct {
	addr     model.Address
	cfg      Config
	template agreement.Template

	ledger ledger.Transactor
	oracle oracle.Oracle
	store  store.Store // optional mirror
	pub    Publisher   // optional
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	nonce     uint64
	order     []model.Address
	instances map[model.Address]*agreement.Agreement
	meta      map[model.Address]*model.Metadata
}

// AddressFor derives a book's identity from its ticker.
func AddressFor(ticker string) model.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("book:" + ticker))[12:])
}

// New creates a book. Pass nil for st or pub to run without a store mirror or
// event broadcasting.
func New(cfg Config, l ledger.Transactor, o oracle.Oracle, st store.Store, pub Publisher, logger *slog.Logger) (*Book, error) {
	if cfg.Instrument == nil {
		return nil, fmt.Errorf("book: instrument required")
	}
	if cfg.Underlying.Symbol != cfg.Instrument.Underlying || cfg.StrikeAsset.Symbol != cfg.Instrument.Strike {
		return nil, fmt.Errorf("book: assets %s/%s do not match ticker %s",
			cfg.Underlying.Symbol, cfg.StrikeAsset.Symbol, cfg.Instrument.Ticker)
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Book{
		addr: AddressFor(cfg.Instrument.Ticker),
		cfg:  cfg,
		template: agreement.Template{
			Underlying:      cfg.Underlying,
			StrikeAsset:     cfg.StrikeAsset,
			Family:          cfg.Instrument.Family,
			Curve:           cfg.Instrument.Curve,
			Option:          cfg.Instrument.Option,
			TieBreak:        cfg.TieBreak,
			CapToCollateral: cfg.CapToCollateral,
		},
		ledger:    l,
		oracle:    o,
		store:     st,
		pub:       pub,
		logger:    logger.With("component", "book", "ticker", cfg.Instrument.Ticker),
		now:       func() time.Time { return time.Now().UTC() },
		instances: make(map[model.Address]*agreement.Agreement),
		meta:      make(map[model.Address]*model.Metadata),
	}
	return b, nil
}

// SetClock overrides the time source. Intended for tests.
func (b *Book) SetClock(now func() time.Time) { b.now = now }

// Address returns the book's identity. Makers approve it as spender.
func (b *Book) Address() model.Address { return b.addr }

// Ticker returns the instrument ticker.
func (b *Book) Ticker() string { return b.cfg.Instrument.Ticker }

// Instrument returns the parsed ticker.
func (b *Book) Instrument() instrument.Instrument { return *b.cfg.Instrument }

// Assets returns the underlying and strike asset.
func (b *Book) Assets() (underlying, strike model.Asset) {
	return b.cfg.Underlying, b.cfg.StrikeAsset
}

// Create clones the template into a new instance, pulls the maker's deposit
// into the instance's custody and funds it.
func (b *Book) Create(ctx context.Context, caller model.Address, req CreateRequest) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	id := crypto.CreateAddress(b.addr, b.nonce)
	inst := agreement.New(b.template)

	err := inst.Initialize(id, b.addr, agreement.Terms{
		Maker:     caller,
		MakerSide: req.Side,
		Params:    req.Params,
		Size:      req.Size,
		Premium:   req.Premium,
	})
	if err == nil {
		err = b.ledger.Atomic(func(tx ledger.Ledger) error {
			if req.Collateral == nil || req.Collateral.Sign() <= 0 {
				return fmt.Errorf("%w: collateral must be positive", model.ErrInvalidTerms)
			}
			asset := inst.FundingAsset()
			if err := tx.TransferFrom(asset.Address, b.addr, caller, id, inst.FundingAmount(req.Collateral)); err != nil {
				return err
			}
			return inst.Fund(tx, req.Collateral, req.Duration)
		})
	}
	if err != nil {
		b.fail("create", id, caller, err)
		return model.Metadata{}, err
	}

	now := b.now()
	b.nonce++
	b.order = append(b.order, id)
	b.instances[id] = inst
	md := &model.Metadata{
		Snapshot:  inst.Snapshot(),
		Ticker:    b.Ticker(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.meta[id] = md

	metrics.AgreementsCreated.WithLabelValues(b.Ticker()).Inc()
	metrics.OpenAgreements.WithLabelValues(b.Ticker()).Inc()
	metrics.TransitionLatency.WithLabelValues("create").Observe(time.Since(start).Seconds())
	b.logger.Info("agreement created",
		"id", id.Hex(),
		"maker", caller.Hex(),
		"side", req.Side.String(),
		"strike", fixedString(md.StrikePrice),
		"size", fixedString(md.Size),
		"expires_in", req.Duration.String(),
	)
	b.commit(ctx, md, model.EventCreated, caller, md.Collateral)
	return md.Clone(), nil
}

// Enter seats caller in the vacant role. For options the long pays the
// premium to the short in the same step.
func (b *Book) Enter(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	md, _, err := b.transition(ctx, "enter", id, caller, true, func(inst *agreement.Agreement, tx ledger.Ledger) (*big.Int, error) {
		if err := inst.Activate(caller, b.now()); err != nil {
			return nil, err
		}
		snap := inst.Snapshot()
		if snap.Premium == nil || snap.Premium.Sign() == 0 {
			return nil, nil
		}
		strike := b.cfg.StrikeAsset.Address
		if err := tx.TransferFrom(strike, b.addr, snap.Long, snap.Short, snap.Premium); err != nil {
			return nil, err
		}
		return snap.Premium, nil
	})
	return md, err
}

// Resolve caches the oracle price on the agreement. Anyone may call it once
// the agreement has expired.
func (b *Book) Resolve(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveLocked(ctx, caller, id)
}

func (b *Book) resolveLocked(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	md, _, err := b.transition(ctx, "resolve", id, caller, false, func(inst *agreement.Agreement, _ ledger.Ledger) (*big.Int, error) {
		if err := inst.Resolve(ctx, b.oracle, b.now()); err != nil {
			return nil, err
		}
		return inst.Snapshot().PriceAtExpiry, nil
	})
	return md, err
}

// Exercise settles a resolved agreement and refunds the maker's deposit.
// It returns the metadata and the payout that changed hands.
func (b *Book) Exercise(ctx context.Context, caller, id model.Address) (model.Metadata, *big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exerciseLocked(ctx, caller, id)
}

func (b *Book) exerciseLocked(ctx context.Context, caller, id model.Address) (model.Metadata, *big.Int, error) {
	return b.transition(ctx, "exercise", id, caller, true, func(inst *agreement.Agreement, tx ledger.Ledger) (*big.Int, error) {
		res, err := inst.Exercise(ctx, tx, b, caller)
		if err != nil {
			return nil, err
		}
		return res.Magnitude, nil
	})
}

// Reclaim lets the short close the agreement without a payout and returns
// the maker's deposit.
func (b *Book) Reclaim(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reclaimLocked(ctx, caller, id)
}

func (b *Book) reclaimLocked(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	md, _, err := b.transition(ctx, "reclaim", id, caller, true, func(inst *agreement.Agreement, tx ledger.Ledger) (*big.Int, error) {
		return nil, inst.Reclaim(tx, caller, b.now())
	})
	return md, err
}

// ResolveAndExercise resolves the agreement if needed, then exercises it.
// The caller is checked against the cached roles before anything runs.
func (b *Book) ResolveAndExercise(ctx context.Context, caller, id model.Address) (model.Metadata, *big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	md, ok := b.meta[id]
	if !ok {
		return model.Metadata{}, nil, fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
	}
	switch {
	case md.Family.TwoSided() && caller != md.Long && caller != md.Short:
		return model.Metadata{}, nil, model.ErrNotParty
	case !md.Family.TwoSided() && caller != md.Long:
		return model.Metadata{}, nil, model.ErrNotLong
	}
	if !md.Resolved {
		if _, err := b.resolveLocked(ctx, caller, id); err != nil {
			return model.Metadata{}, nil, err
		}
	}
	return b.exerciseLocked(ctx, caller, id)
}

// ResolveAndReclaim reclaims the agreement for the short. Futures and genies
// are resolved first when needed; options never consult the oracle here.
func (b *Book) ResolveAndReclaim(ctx context.Context, caller, id model.Address) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	md, ok := b.meta[id]
	if !ok {
		return model.Metadata{}, fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
	}
	if caller != md.Short {
		return model.Metadata{}, model.ErrNotShort
	}
	if md.Family.TwoSided() && !md.Resolved {
		if _, err := b.resolveLocked(ctx, caller, id); err != nil {
			return model.Metadata{}, err
		}
	}
	return b.reclaimLocked(ctx, caller, id)
}

// NotifySettled moves the payout of a settled agreement. The winner of a
// future is picked by comparing the cached expiry price to the strike under
// the book's tie policy; other families use the curve's verdict. The payout
// is pulled from the loser into the book and forwarded to the winner.
//
// Agreements call it from Exercise while the book's lock is held, with the
// transaction's ledger view.
func (b *Book) NotifySettled(_ context.Context, tx ledger.Ledger, id model.Address, res payoff.Result) error {
	md, ok := b.meta[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
	}
	if md.Settled {
		return model.ErrAlreadySettled
	}
	if md.PriceAtExpiry == nil || md.StrikePrice == nil {
		return model.ErrNotResolved
	}

	longWins := res.LongWins
	if md.Family == model.FamilyFuture {
		c := md.PriceAtExpiry.Cmp(md.StrikePrice)
		longWins = c > 0 || (c == 0 && b.cfg.TieBreak == model.TieLong)
	}

	if payout := res.Magnitude; payout != nil && payout.Sign() > 0 {
		winner, loser := md.Long, md.Short
		if !longWins {
			winner, loser = md.Short, md.Long
		}
		strike := b.cfg.StrikeAsset.Address
		if err := tx.TransferFrom(strike, b.addr, loser, b.addr, payout); err != nil {
			return fmt.Errorf("collect payout from %s: %w", loser.Hex(), err)
		}
		if err := tx.Transfer(strike, b.addr, winner, payout); err != nil {
			return fmt.Errorf("forward payout to %s: %w", winner.Hex(), err)
		}
	}
	md.Settled = true
	return nil
}
