package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal Redis Pub/Sub e repassa cada Envelope ao Hub.
// Retorna depois que a inscrição foi confirmada pelo Redis.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub) error {
	sub := r.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env events.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					hub.Log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(env)
			}
		}
	}()
	return nil
}
