package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

func TestStatic_GetPrice(t *testing.T) {
	s, err := NewStatic(map[string]*big.Int{"WETH/USDC": fixed.New(3000)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPrice(context.Background(), "weth", "usdc")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if got.Cmp(fixed.New(3000)) != 0 {
		t.Errorf("price = %s, want 3000", fixed.String(got))
	}

	// Returned values are copies.
	got.SetInt64(1)
	again, _ := s.GetPrice(context.Background(), "WETH", "USDC")
	if again.Cmp(fixed.New(3000)) != 0 {
		t.Error("caller mutated the stored price")
	}
}

func TestStatic_Errors(t *testing.T) {
	s, _ := NewStatic(nil)
	ctx := context.Background()

	_, err := s.GetPrice(ctx, "WETH", "USDC")
	if !errors.Is(err, ErrUnknownPair) || !errors.Is(err, model.ErrOracle) {
		t.Errorf("unknown pair: got %v", err)
	}

	s.Set("WETH", "USDC", new(big.Int))
	if _, err := s.GetPrice(ctx, "WETH", "USDC"); !errors.Is(err, ErrNoPrice) {
		t.Errorf("zero price: expected ErrNoPrice, got %v", err)
	}

	s.Set("WETH", "USDC", nil)
	if _, err := s.GetPrice(ctx, "WETH", "USDC"); !errors.Is(err, ErrUnknownPair) {
		t.Errorf("removed pair: expected ErrUnknownPair, got %v", err)
	}
}

func TestNewStatic_MalformedPair(t *testing.T) {
	for _, key := range []string{"WETHUSDC", "/USDC", "WETH/"} {
		if _, err := NewStatic(map[string]*big.Int{key: fixed.New(1)}); err == nil {
			t.Errorf("%q: expected error", key)
		}
	}
}

func TestPriceKey(t *testing.T) {
	if got := priceKey(newPair("weth", "usdc")); got != "price:WETH:USDC" {
		t.Errorf("priceKey = %q", got)
	}
}
