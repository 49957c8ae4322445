// Package oracle supplies expiry prices. A price is the value of one unit of
// the base asset expressed in the quote asset, scaled by 10^18.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/atmx/settlement-engine/internal/model"
)

var (
	// ErrUnknownPair is returned when no price was ever published for a pair.
	ErrUnknownPair = fmt.Errorf("%w: unknown symbol pair", model.ErrOracle)

	// ErrNoPrice is returned when the published price is zero or negative.
	ErrNoPrice = fmt.Errorf("%w: price unset", model.ErrOracle)
)

// Oracle reads the current price of base relative to quote.
type Oracle interface {
	GetPrice(ctx context.Context, base, quote string) (*big.Int, error)
}

type pair struct {
	base, quote string
}

func newPair(base, quote string) pair {
	return pair{strings.ToUpper(base), strings.ToUpper(quote)}
}

func (p pair) String() string {
	return p.base + "/" + p.quote
}

// Static is an in-memory oracle whose prices are pushed with Set.
type Static struct {
	mu     sync.RWMutex
	prices map[pair]*big.Int
}

// NewStatic returns an oracle seeded with prices keyed "BASE/QUOTE".
func NewStatic(seed map[string]*big.Int) (*Static, error) {
	s := &Static{prices: make(map[pair]*big.Int)}
	for k, v := range seed {
		base, quote, ok := strings.Cut(k, "/")
		if !ok || base == "" || quote == "" {
			return nil, fmt.Errorf("oracle: malformed pair %q, want BASE/QUOTE", k)
		}
		s.Set(base, quote, v)
	}
	return s, nil
}

// Set publishes price for base/quote. A nil price removes the pair.
func (s *Static) Set(base, quote string, price *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newPair(base, quote)
	if price == nil {
		delete(s.prices, p)
		return
	}
	s.prices[p] = new(big.Int).Set(price)
}

func (s *Static) GetPrice(_ context.Context, base, quote string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := newPair(base, quote)
	v, ok := s.prices[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, p)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, p)
	}
	return new(big.Int).Set(v), nil
}
