package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/feed/cache"
	"github.com/radieske/stream-bets-settlement/internal/feed/pubsub"
	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo relay.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Relay consome um tópico da liquidação, empacota cada evento num Envelope
// e repassa ao Redis Pub/Sub lido pelo hub de websocket.
// Um Relay por tópico; Type identifica o tipo de evento do tópico.
type Relay struct {
	Log         *zap.Logger
	Reader      MessageReader
	Type        string
	Channel     string
	Broadcaster *pubsub.RedisBroadcaster
	Snapshots   *cache.SnapshotCache // opcional

	OnConsumed func()       // métricas
	OnError    func(string) // métricas por fase
}

func (p *Relay) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (p *Relay) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.String("type", p.Type), zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m)
	}
}

func (p *Relay) handle(ctx context.Context, m kafka.Message) {
	var head struct {
		Market string `json:"market"`
	}
	if err := json.Unmarshal(m.Value, &head); err != nil || head.Market == "" {
		p.Log.Warn("invalid message", zap.String("type", p.Type), zap.Error(err))
		p.fail("decode")
		return
	}
	env := events.Envelope{Market: head.Market, Type: p.Type, Payload: m.Value}

	if p.Snapshots != nil {
		if err := p.Snapshots.Put(ctx, env); err != nil {
			p.Log.Warn("snapshot put failed", zap.String("market", env.Market), zap.Error(err))
			p.fail("cache")
			// segue com o broadcast mesmo sem snapshot
		}
	}

	b, err := json.Marshal(env)
	if err != nil {
		p.fail("encode")
		return
	}
	if err := p.Broadcaster.Publish(ctx, p.Channel, b); err != nil {
		p.Log.Warn("redis publish failed", zap.String("market", env.Market), zap.Error(err))
		p.fail("publish")
	}
}
