package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the cache;
// reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) SaveAgreement(ctx context.Context, md *model.Metadata) error {
	if err := s.primary.SaveAgreement(ctx, md); err != nil {
		return err
	}
	s.cacheAgreement(ctx, md)
	return nil
}

func (s *CachedStore) AppendEvent(ctx context.Context, ev *model.Event) error {
	if err := s.primary.AppendEvent(ctx, ev); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, eventsKey(ev.Agreement))
	return nil
}

// --- Read-through ---

func (s *CachedStore) GetAgreement(ctx context.Context, id model.Address) (*model.Metadata, error) {
	data, err := s.rdb.Get(ctx, agreementKey(id)).Bytes()
	if err == nil {
		var md model.Metadata
		if json.Unmarshal(data, &md) == nil {
			return &md, nil
		}
	}

	md, err := s.primary.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheAgreement(ctx, md)
	return md, nil
}

func (s *CachedStore) ListEvents(ctx context.Context, agreement model.Address) ([]model.Event, error) {
	data, err := s.rdb.Get(ctx, eventsKey(agreement)).Bytes()
	if err == nil {
		var events []model.Event
		if json.Unmarshal(data, &events) == nil {
			return events, nil
		}
	}

	events, err := s.primary.ListEvents(ctx, agreement)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, eventsKey(agreement), data, s.ttl)
	}
	return events, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAgreements(ctx context.Context, book model.Address) ([]model.Metadata, error) {
	return s.primary.ListAgreements(ctx, book)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAgreement(ctx context.Context, md *model.Metadata) {
	if data, err := json.Marshal(md); err == nil {
		s.rdb.Set(ctx, agreementKey(md.ID), data, s.ttl)
	}
}

func agreementKey(id model.Address) string { return fmt.Sprintf("agreement:%s", id.Hex()) }
func eventsKey(id model.Address) string    { return fmt.Sprintf("events:%s", id.Hex()) }
