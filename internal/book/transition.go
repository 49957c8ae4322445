package book

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/settlement-engine/internal/agreement"
	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/ledger"
	"github.com/atmx/settlement-engine/internal/metrics"
	"github.com/atmx/settlement-engine/internal/model"
)

var transitionEvents = map[string]model.EventType{
	"enter":    model.EventEntered,
	"resolve":  model.EventResolved,
	"exercise": model.EventExercised,
	"reclaim":  model.EventReclaimed,
}

type step func(inst *agreement.Agreement, tx ledger.Ledger) (*big.Int, error)

// transition runs fn against a clone of the agreement. With useLedger the
// step runs inside a ledger transaction. On success the clone replaces the
// instance and the metadata is refreshed; on failure nothing changes. The
// caller must hold b.mu.
func (b *Book) transition(ctx context.Context, name string, id, caller model.Address, useLedger bool, fn step) (model.Metadata, *big.Int, error) {
	inst, ok := b.instances[id]
	if !ok {
		err := fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
		b.fail(name, id, caller, err)
		return model.Metadata{}, nil, err
	}

	start := time.Now()
	work := inst.Clone()
	prev := b.meta[id].Clone()

	var amount *big.Int
	run := func(tx ledger.Ledger) error {
		var err error
		amount, err = fn(work, tx)
		return err
	}
	var err error
	if useLedger {
		err = b.ledger.Atomic(run)
	} else {
		err = run(b.ledger)
	}
	if err != nil {
		b.meta[id] = &prev
		b.fail(name, id, caller, err)
		return model.Metadata{}, nil, err
	}

	b.instances[id] = work
	md := b.meta[id]
	md.Snapshot = work.Snapshot()
	md.UpdatedAt = b.now()

	ticker := b.Ticker()
	metrics.Transitions.WithLabelValues(ticker, name).Inc()
	metrics.TransitionLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if !md.Open() && prev.Open() {
		metrics.OpenAgreements.WithLabelValues(ticker).Dec()
	}
	if name == "exercise" && amount != nil {
		metrics.SettledVolume.WithLabelValues(ticker).Add(fixed.ToDecimal(amount).InexactFloat64())
	}

	b.logger.Info("transition committed",
		"transition", name,
		"id", id.Hex(),
		"caller", caller.Hex(),
		"status", md.Status(),
		"amount", fixedString(amount),
	)
	b.commit(ctx, md, transitionEvents[name], caller, amount)
	return md.Clone(), model.CloneInt(amount), nil
}

// commit mirrors md to the store and publishes the event. Mirror failures are
// logged and counted; the in-memory state stays authoritative.
func (b *Book) commit(ctx context.Context, md *model.Metadata, typ model.EventType, actor model.Address, amount *big.Int) {
	ev := model.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Book:      b.addr,
		Agreement: md.ID,
		Actor:     actor,
		Amount:    model.CloneInt(amount),
		At:        md.UpdatedAt,
	}

	if b.store != nil {
		ctx = context.WithoutCancel(ctx)
		snapshot := md.Clone()
		if err := b.store.SaveAgreement(ctx, &snapshot); err != nil {
			metrics.StoreErrors.WithLabelValues("save_agreement").Inc()
			b.logger.Error("store save failed", "id", md.ID.Hex(), "err", err)
		}
		if err := b.store.AppendEvent(ctx, &ev); err != nil {
			metrics.StoreErrors.WithLabelValues("append_event").Inc()
			b.logger.Error("store append failed", "id", md.ID.Hex(), "event", string(typ), "err", err)
		}
	}
	if b.pub != nil {
		b.pub.Publish(ev)
	}
}

func (b *Book) fail(name string, id, caller model.Address, err error) {
	kind := model.KindOf(err)
	metrics.TransitionFailures.WithLabelValues(b.Ticker(), name, kind).Inc()
	b.logger.Warn("transition rejected",
		"transition", name,
		"id", id.Hex(),
		"caller", caller.Hex(),
		"kind", kind,
		"err", err,
	)
}

func fixedString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return fixed.String(v)
}
