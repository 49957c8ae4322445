package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// Redis reads prices that an external feeder writes to hashes named
// price:{BASE}:{QUOTE} with a decimal "value" field and a unix "updated_at"
// field.
type Redis struct {
	rdb *redis.Client
}

// NewRedis returns an oracle backed by rdb.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func priceKey(p pair) string {
	return fmt.Sprintf("price:%s:%s", p.base, p.quote)
}

func (r *Redis) GetPrice(ctx context.Context, base, quote string) (*big.Int, error) {
	p := newPair(base, quote)
	raw, err := r.rdb.HGet(ctx, priceKey(p), "value").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrOracle, p, err)
	}
	v, err := fixed.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrOracle, p, err)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, p)
	}
	return v, nil
}

// Publish writes price for base/quote. Used by feeders and tooling.
func (r *Redis) Publish(ctx context.Context, base, quote string, price *big.Int, at time.Time) error {
	p := newPair(base, quote)
	return r.rdb.HSet(ctx, priceKey(p),
		"value", fixed.String(price),
		"updated_at", at.Unix(),
	).Err()
}
