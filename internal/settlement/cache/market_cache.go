package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/stream-bets-settlement/internal/settlement/dto"
)

// MarketCache guarda a visão JSON dos mercados no Redis.
// Toda instrução que altera um mercado invalida a chave dele.
type MarketCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewMarketCache cria o cache com TTL configurável
func NewMarketCache(c *redis.Client, ttl time.Duration) *MarketCache {
	return &MarketCache{Client: c, TTL: ttl}
}

func key(market string) string { return "settlement:market:" + market }

// Get retorna (false, nil) em cache miss.
func (c *MarketCache) Get(ctx context.Context, market string) (dto.MarketResponse, bool, error) {
	var m dto.MarketResponse
	b, err := c.Client.Get(ctx, key(market)).Bytes()
	if err == redis.Nil {
		return m, false, nil
	}
	if err != nil {
		return m, false, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, false, err
	}
	return m, true, nil
}

func (c *MarketCache) Set(ctx context.Context, m dto.MarketResponse) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(m.Address), b, c.TTL).Err()
}

func (c *MarketCache) Invalidate(ctx context.Context, market string) error {
	return c.Client.Del(ctx, key(market)).Err()
}
