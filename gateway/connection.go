package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-core/domain"
	"chat-core/domain/event"
	cherr "chat-core/errors"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection is the per-socket delivery sink. Domain events addressed to the
// user are serialized into typed frames and queued on the send channel, which
// a single write goroutine drains. Senders race with Close, so shutdown is
// signalled through the close channel; the send channel itself is never
// closed (a late enqueue lands in a buffer nobody reads, which is fine).
type Connection struct {
	ID   domain.ConnectionID
	User domain.UserID

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewConnection(user domain.UserID, ws *websocket.Conn, bufferSize int) *Connection {
	return &Connection{
		ID:    domain.ConnectionID(uuid.NewString()),
		User:  user,
		ws:    ws,
		send:  make(chan []byte, bufferSize),
		close: make(chan struct{}),
	}
}

// Start spawns the write goroutine.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Consume turns the event into an outbound frame and queues it.
func (c *Connection) Consume(_ context.Context, e event.DomainEvent) error {
	payload, err := json.Marshal(outboundFrame{Type: e.Name(), Data: e})
	if err != nil {
		return fmt.Errorf("marshalling %s frame: %w", e.Name(), err)
	}
	return c.Send(payload)
}

// Send queues payload for delivery. Sending to a closed connection reports
// ErrConnectionClosed instead of delivering; a slow client whose buffer
// fills up is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return cherr.ErrConnectionClosed
	default:
	}
	select {
	case <-c.close:
		return cherr.ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return fmt.Errorf("send buffer exceeded: %w", cherr.ErrConnectionClosed)
	}
}

// Close signals shutdown, sends the websocket close frame and releases the
// socket. Safe to call from any goroutine, any number of times.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
