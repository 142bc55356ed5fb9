package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// SnapshotCache guarda o último envelope de cada tipo por mercado, para que
// um cliente recém inscrito receba o estado atual sem esperar o próximo evento.
type SnapshotCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSnapshotCache(c *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{Client: c, TTL: ttl}
}

func key(market string) string { return "feed:market:" + market }

// Put sobrescreve o envelope do tipo e renova o TTL do mercado.
func (c *SnapshotCache) Put(ctx context.Context, env events.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	pipe := c.Client.TxPipeline()
	pipe.HSet(ctx, key(env.Market), env.Type, b)
	if c.TTL > 0 {
		pipe.Expire(ctx, key(env.Market), c.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Latest retorna os envelopes guardados, ordenados por tipo.
func (c *SnapshotCache) Latest(ctx context.Context, market string) ([]events.Envelope, error) {
	raw, err := c.Client.HGetAll(ctx, key(market)).Result()
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(raw))
	for t := range raw {
		types = append(types, t)
	}
	sort.Strings(types)

	out := make([]events.Envelope, 0, len(raw))
	for _, t := range types {
		var env events.Envelope
		if err := json.Unmarshal([]byte(raw[t]), &env); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
