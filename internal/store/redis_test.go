package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/settlement-engine/internal/model"
)

// countingStore counts primary reads so tests can tell cache hits apart.
type countingStore struct {
	*MemoryStore
	gets, lists int
}

func (c *countingStore) GetAgreement(ctx context.Context, id model.Address) (*model.Metadata, error) {
	c.gets++
	return c.MemoryStore.GetAgreement(ctx, id)
}

func (c *countingStore) ListEvents(ctx context.Context, agreement model.Address) ([]model.Event, error) {
	c.lists++
	return c.MemoryStore.ListEvents(ctx, agreement)
}

func newCachedStore(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	return NewCachedStore(primary, rdb, time.Minute), primary, mr
}

func TestCachedStore_AgreementReadThrough(t *testing.T) {
	s, primary, mr := newCachedStore(t)
	ctx := context.Background()
	m := md("0x01", bookA, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	if err := s.SaveAgreement(ctx, m); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists(agreementKey(m.ID)) {
		t.Fatal("save should populate the cache")
	}

	got, err := s.GetAgreement(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetAgreement: %v", err)
	}
	if primary.gets != 0 {
		t.Errorf("cached read hit the primary %d times", primary.gets)
	}
	if got.ID != m.ID || got.Size.Int64() != 100 || !got.Funded {
		t.Errorf("cached agreement = %+v", got)
	}

	// Expired entries fall back to the primary and are cached again.
	mr.FastForward(2 * time.Minute)
	if mr.Exists(agreementKey(m.ID)) {
		t.Fatal("entry should have expired")
	}
	if _, err := s.GetAgreement(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if primary.gets != 1 || !mr.Exists(agreementKey(m.ID)) {
		t.Errorf("miss should read the primary once and refill: gets=%d", primary.gets)
	}
}

func TestCachedStore_CorruptEntryFallsBack(t *testing.T) {
	s, primary, mr := newCachedStore(t)
	ctx := context.Background()
	m := md("0x02", bookA, time.Now())
	_ = s.SaveAgreement(ctx, m)

	if err := mr.Set(agreementKey(m.ID), "{not json"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAgreement(ctx, m.ID)
	if err != nil || got.ID != m.ID {
		t.Fatalf("GetAgreement = %v, %v", got, err)
	}
	if primary.gets != 1 {
		t.Errorf("primary gets = %d, want 1", primary.gets)
	}
}

func TestCachedStore_NotFoundPassesThrough(t *testing.T) {
	s, _, mr := newCachedStore(t)
	id := common.HexToAddress("0xdead")
	if _, err := s.GetAgreement(context.Background(), id); err == nil {
		t.Fatal("expected an error for a missing agreement")
	}
	if mr.Exists(agreementKey(id)) {
		t.Error("misses must not be cached")
	}
}

func TestCachedStore_AppendInvalidatesEvents(t *testing.T) {
	s, primary, mr := newCachedStore(t)
	ctx := context.Background()
	id := common.HexToAddress("0x03")
	ev := func(typ model.EventType) *model.Event {
		return &model.Event{ID: string(typ), Type: typ, Book: bookA, Agreement: id, At: time.Now().UTC()}
	}

	if err := s.AppendEvent(ctx, ev(model.EventCreated)); err != nil {
		t.Fatal(err)
	}
	first, err := s.ListEvents(ctx, id)
	if err != nil || len(first) != 1 {
		t.Fatalf("ListEvents = %v, %v", first, err)
	}
	if _, err := s.ListEvents(ctx, id); err != nil {
		t.Fatal(err)
	}
	if primary.lists != 1 || !mr.Exists(eventsKey(id)) {
		t.Fatalf("second read should come from the cache: lists=%d", primary.lists)
	}

	if err := s.AppendEvent(ctx, ev(model.EventReclaimed)); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(eventsKey(id)) {
		t.Fatal("append should drop the cached event list")
	}
	after, err := s.ListEvents(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 || after[1].Type != model.EventReclaimed {
		t.Errorf("events after append = %+v", after)
	}
	if primary.lists != 2 {
		t.Errorf("primary lists = %d, want 2", primary.lists)
	}
}
