package book

import (
	"fmt"

	"github.com/atmx/settlement-engine/internal/model"
)

// Info is the per-book read view: identities plus cached metadata.
type Info struct {
	Address    model.Address    `json:"address"`
	Ticker     string           `json:"ticker"`
	Underlying model.Asset      `json:"underlying"`
	Strike     model.Asset      `json:"strike_asset"`
	Family     model.Family     `json:"family"`
	Curve      model.CurveKind  `json:"curve"`
	Option     model.OptionType `json:"option_type,omitempty"`
	TieBreak   string           `json:"tie_break"`
	Agreements []model.Metadata `json:"agreements"`
}

// Has reports whether id was created by this book.
func (b *Book) Has(id model.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.instances[id]
	return ok
}

// Snapshot reads the instance itself rather than the metadata cache.
func (b *Book) Snapshot(id model.Address) (model.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inst, ok := b.instances[id]
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
	}
	return inst.Snapshot(), nil
}

// Metadata returns the cached entry for id.
func (b *Book) Metadata(id model.Address) (model.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	md, ok := b.meta[id]
	if !ok {
		return model.Metadata{}, fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
	}
	return md.Clone(), nil
}

// Agreements returns the cached metadata in creation order.
func (b *Book) Agreements() []model.Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Metadata, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.meta[id].Clone())
	}
	return out
}

// Info returns the book's identities and every cached entry.
func (b *Book) Info() Info {
	return Info{
		Address:    b.addr,
		Ticker:     b.Ticker(),
		Underlying: b.cfg.Underlying,
		Strike:     b.cfg.StrikeAsset,
		Family:     b.cfg.Instrument.Family,
		Curve:      b.cfg.Instrument.Curve,
		Option:     b.cfg.Instrument.Option,
		TieBreak:   b.cfg.TieBreak.String(),
		Agreements: b.Agreements(),
	}
}
