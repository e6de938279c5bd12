package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a websocket connection with a single writer goroutine,
// so concurrent broadcasts and direct replies never interleave on the wire.
// Identity (id, role, room) is fixed at construction and never changes for
// the life of the connection.
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan []byte
	id           string
	role         string
	roomID       string
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection creates a connection wrapper and starts its writer.
// bufferSize is the number of pending outbound messages tolerated before
// sends start failing; roomID may be empty for an admin watching all rooms.
func NewConnection(conn *websocket.Conn, id, role, roomID string, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		id:           id,
		role:         role,
		roomID:       roomID,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a message for delivery. Delivery is fire-and-forget:
// when the buffer is full (a stalled or dead peer) the message is dropped
// with an error rather than blocking the sender.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteBufferFull
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ID returns the server-assigned connection id.
func (c *Connection) ID() string {
	return c.id
}

// Role returns "viewer" or "admin".
func (c *Connection) Role() string {
	return c.role
}

// RoomID returns the room subscribed at connect time; empty for an admin
// that connected without one.
func (c *Connection) RoomID() string {
	return c.roomID
}
