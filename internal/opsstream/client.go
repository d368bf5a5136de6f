// Package opsstream broadcasts tick and round-transition events to
// observers over a WebSocket, for organizer dashboards and monitoring —
// distinct from any client auto-refresh concern, which stays out of scope.
package opsstream

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Client is one connected observer.
type Client struct {
	ID   uint64
	Conn *websocket.Conn

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	Dropped uint64
}

var clientIDCounter uint64

// NewClient wraps a websocket connection with a buffered, non-blocking
// send channel.
func NewClient(conn *websocket.Conn, bufferSize int) *Client {
	return &Client{
		ID:     atomic.AddUint64(&clientIDCounter, 1),
		Conn:   conn,
		sendCh: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

// Send enqueues data for delivery. Returns false and drops the message if
// the client's buffer is full — a slow observer never blocks a broadcast.
func (c *Client) Send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		atomic.AddUint64(&c.Dropped, 1)
		return false
	}
}

// SendCh returns the send channel for the write pump.
func (c *Client) SendCh() <-chan []byte { return c.sendCh }

// Done is closed once the client is disconnected.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close terminates the connection, idempotently.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}
