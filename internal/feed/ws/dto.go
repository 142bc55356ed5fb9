package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Market: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type   string `json:"type"`
	Market string `json:"market"`
}
