// Package handlers client.go
package handlers

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/protocol"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	backlogLimit   = 1024
	inputBurst     = 8
)

var ErrClientClosed = errors.New("client closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: false,
}

type EventType int

const (
	EventTypeLogin EventType = iota
	EventTypeLogout
	EventTypeError
	EventTypeDropped
)

type Event struct {
	Type   EventType
	Client *Client
	Err    error
}

// Client is one websocket connection. It implements room.Conn: Send only
// queues, the write pump does the I/O.
type Client struct {
	ID    string
	Conn  *websocket.Conn
	Codec protocol.Codec

	messageQueue *MessageQueue
	wake         chan struct{}
	limiter      *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps conn. inputRate caps accepted inputs per second; <= 0
// disables the cap.
func NewClient(conn *websocket.Conn, id string, codec protocol.Codec, inputRate float64) *Client {
	limit := rate.Inf
	if inputRate > 0 {
		limit = rate.Limit(inputRate)
	}
	return &Client{
		ID:           id,
		Conn:         conn,
		Codec:        codec,
		messageQueue: NewMessageQueue(backlogLimit),
		wake:         make(chan struct{}, 1),
		limiter:      rate.NewLimiter(limit, inputBurst),
		done:         make(chan struct{}),
	}
}

// Send queues a message for the write pump. A client whose backlog
// overflows is too slow to follow the stream and gets disconnected.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	if err := c.messageQueue.Enqueue(message); err != nil {
		c.emitEvent(Event{Type: EventTypeError, Client: c, Err: err})
		go c.Close()
		return err
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the pumps and closes the connection. Safe to call more than
// once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.Conn.Close()
		c.messageQueue.ClearQueue()
	})
	return err
}

// AllowInput reports whether another input fits in the rate limit.
func (c *Client) AllowInput() bool {
	if c.limiter.Allow() {
		return true
	}
	c.emitEvent(Event{Type: EventTypeDropped, Client: c})
	return false
}

// ReadPump hands every inbound message to handle until the connection
// fails or is closed.
func (c *Client) ReadPump(handle func([]byte)) {
	defer func() {
		c.emitEvent(Event{Type: EventTypeLogout, Client: c})
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.emitEvent(Event{Type: EventTypeError, Client: c, Err: err})
			}
			return
		}
		handle(message)
	}
}

// WritePump writes queued messages in order and keeps the connection alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	kind := websocket.TextMessage
	if c.Codec.Binary() {
		kind = websocket.BinaryMessage
	}

	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
			for _, message := range c.messageQueue.DequeueAll() {
				_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.Conn.WriteMessage(kind, message); err != nil {
					c.emitEvent(Event{Type: EventTypeError, Client: c, Err: err})
					c.Close()
					return
				}
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.emitEvent(Event{Type: EventTypeError, Client: c, Err: err})
				c.Close()
				return
			}
		}
	}
}

func (c *Client) emitEvent(event Event) {
	switch event.Type {
	case EventTypeLogin:
		log.Printf("Client %s connected (%s)", c.ID, c.Codec.Name())
	case EventTypeLogout:
		log.Printf("Client %s disconnected", c.ID)
	case EventTypeError:
		log.Printf("Error from %s: %v", c.ID, event.Err)
	case EventTypeDropped:
		log.Printf("Input rate exceeded for client %s, dropping input", c.ID)
	}
}
