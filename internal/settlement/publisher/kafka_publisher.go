package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica os eventos do engine, um tópico por tipo.
// A chave da mensagem é o endereço do mercado, preservando a ordem por mercado.
type KafkaPublisher struct {
	Resolved MessageWriter
	Pools    MessageWriter
}

func NewKafkaPublisher(resolved, pools MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Resolved: resolved, Pools: pools}
}

func (p *KafkaPublisher) PublishMarketResolved(ctx context.Context, e events.MarketResolved) error {
	return write(ctx, p.Resolved, e.Market, e)
}

func (p *KafkaPublisher) PublishPoolsUpdated(ctx context.Context, e events.PoolsUpdated) error {
	return write(ctx, p.Pools, e.Market, e)
}

func write(ctx context.Context, w MessageWriter, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}
