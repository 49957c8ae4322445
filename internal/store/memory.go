package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	agreements map[model.Address]*model.Metadata
	events     []model.Event
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agreements: make(map[model.Address]*model.Metadata),
	}
}

func (s *MemoryStore) SaveAgreement(_ context.Context, md *model.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	c := md.Clone()
	s.agreements[md.ID] = &c
	return nil
}

func (s *MemoryStore) GetAgreement(_ context.Context, id model.Address) (*model.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.agreements[id]
	if !ok {
		return nil, fmt.Errorf("agreement %s: %w", id.Hex(), ErrNotFound)
	}
	c := md.Clone()
	return &c, nil
}

func (s *MemoryStore) ListAgreements(_ context.Context, book model.Address) ([]model.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Metadata, 0)
	for _, md := range s.agreements {
		if md.Book == book {
			out = append(out, md.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev.Clone())
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, agreement model.Address) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Event
	for _, e := range s.events {
		if e.Agreement == agreement {
			result = append(result, e.Clone())
		}
	}
	return result, nil
}
