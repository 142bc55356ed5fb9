package events

import "encoding/json"

// Tipos de mensagem repassados ao feed de websocket.
const (
	TypeMarketResolved = "market_resolved"
	TypePoolsUpdated   = "pools_updated"
)

// Envelope é o frame enviado aos clientes do feed, agrupado por mercado.
type Envelope struct {
	Market  string          `json:"market"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
