package opsstream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/marketsim/tradefloor/internal/metrics"
)

// TickEvent reports one instrument's price after a market simulator tick.
type TickEvent struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// RoundEvent reports a round lifecycle transition.
type RoundEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Manager fans out events to every connected observer. Unlike the trading
// engine's Store and round state, the Manager holds no domain state of its
// own — it is purely a broadcast fabric.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	bufferSize int
	log        *slog.Logger
}

// NewManager constructs a Manager. bufferSize bounds each client's
// outstanding-message queue before messages start dropping.
func NewManager(bufferSize int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		clients:    make(map[uint64]*Client),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Register wraps a newly upgraded connection in a Client sized by the
// Manager's configured buffer and adds it to the broadcast fabric.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)

	m.mu.Lock()
	m.clients[c.ID] = c
	count := len(m.clients)
	m.mu.Unlock()

	metrics.SetObserversConnected(count)
	m.log.Info("observer connected", "client_id", c.ID)
	return c
}

// Unregister removes and closes a client.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	count := len(m.clients)
	m.mu.Unlock()
	c.Close()
	metrics.SetObserversConnected(count)
	m.log.Info("observer disconnected", "client_id", c.ID)
}

// ClientCount reports the number of connected observers.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// BroadcastTick notifies every observer of an instrument's new price.
func (m *Manager) BroadcastTick(symbol string, price float64) {
	m.broadcast(TickEvent{Type: "tick", Symbol: symbol, Price: price})
}

// BroadcastRound notifies every observer of a round status change.
func (m *Manager) BroadcastRound(status string) {
	m.broadcast(RoundEvent{Type: "round", Status: status})
}

func (m *Manager) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Error("opsstream: marshal event failed", "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		c.Send(data)
	}
}
