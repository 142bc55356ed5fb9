package events

import "time"

// Evento publicado no tópico "market_resolved" quando o operador resolve um mercado.
type MarketResolved struct {
	EventID     string    `json:"event_id"`
	Market      string    `json:"market"`
	Authority   string    `json:"authority"`
	WinningSide uint8     `json:"winning_side"` // 0 = yes, 1 = no
	PoolYes     uint64    `json:"pool_yes"`
	PoolNo      uint64    `json:"pool_no"`
	NoWinner    bool      `json:"no_winner"` // pool vencedor vazio: pool perdedor virou taxa
	FeesAccrued uint64    `json:"fees_accrued"`
	Ts          time.Time `json:"ts"`
}
