package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore marca nonces de requisições assinadas no Redis com SETNX.
// A chave expira junto com a janela de validade do timestamp.
type NonceStore struct {
	Client *redis.Client
}

func NewNonceStore(c *redis.Client) *NonceStore {
	return &NonceStore{Client: c}
}

func nonceKey(signer, nonce string) string { return "settlement:nonce:" + signer + ":" + nonce }

// Claim devolve true só para o primeiro uso de (signer, nonce).
func (s *NonceStore) Claim(ctx context.Context, signer, nonce string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, nonceKey(signer, nonce), 1, ttl).Result()
}
