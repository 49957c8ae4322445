package book

import (
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/settlement-engine/internal/model"
)

// Registry indexes books by ticker.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*Book)}
}

// Add registers b. Tickers are unique.
func (r *Registry) Add(b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.books[b.Ticker()]; dup {
		return fmt.Errorf("book: %s already registered", b.Ticker())
	}
	r.books[b.Ticker()] = b
	return nil
}

// Get returns the book for ticker.
func (r *Registry) Get(ticker string) (*Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[ticker]
	return b, ok
}

// List returns every book sorted by ticker.
func (r *Registry) List() []*Book {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker() < out[j].Ticker() })
	return out
}

// Owner finds the book that created agreement id.
func (r *Registry) Owner(id model.Address) (*Book, error) {
	for _, b := range r.List() {
		if b.Has(id) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnknownAgreement, id.Hex())
}
