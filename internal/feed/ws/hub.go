package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// SnapshotFunc devolve o estado atual de um mercado para novos inscritos.
type SnapshotFunc func(ctx context.Context, market string) ([]events.Envelope, error)

// client serializa as escritas de uma conexão; gorilla não aceita escritores concorrentes.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por mercado
type Hub struct {
	Log      *zap.Logger
	Snapshot SnapshotFunc // opcional

	OnConnect    func() // métricas
	OnDisconnect func()

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// market -> set of clients
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		Log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.HandleWS(w, r) }

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Cada cliente pode se inscrever em vários mercados.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if h.OnConnect != nil {
		h.OnConnect()
	}
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Market == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "error": "market required"})
				continue
			}
			h.subscribe(msg.Market, c)
			h.sendSnapshot(r.Context(), msg.Market, c)
		case "unsubscribe":
			h.unsubscribe(msg.Market, c)
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	// remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for market, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, market)
		}
	}
	h.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) subscribe(market string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[market]; !ok {
		h.subs[market] = make(map[*client]struct{})
	}
	h.subs[market][c] = struct{}{}
}

func (h *Hub) unsubscribe(market string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[market]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, market)
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, market string, c *client) {
	if h.Snapshot == nil {
		return
	}
	envs, err := h.Snapshot(ctx, market)
	if err != nil {
		h.Log.Warn("snapshot failed", zap.String("market", market), zap.Error(err))
		return
	}
	for _, env := range envs {
		_ = c.writeJSON(env)
	}
}

// Subscribers conta as conexões inscritas em um mercado.
func (h *Hub) Subscribers(market string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[market])
}

// Broadcast envia o envelope a todos os inscritos no mercado
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[env.Market]))
	for c := range h.subs[env.Market] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	for _, c := range targets {
		_ = c.write(b)
	}
}
