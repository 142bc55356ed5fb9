package events

import "time"

// Evento publicado no tópico "market_pools_updated" após cada aposta.
type PoolsUpdated struct {
	EventID string    `json:"event_id"`
	Market  string    `json:"market"`
	Side    uint8     `json:"side"`
	Amount  uint64    `json:"amount"`
	PoolYes uint64    `json:"pool_yes"`
	PoolNo  uint64    `json:"pool_no"`
	Ts      time.Time `json:"ts"`
}
