package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-relay/internal/types"
	"github.com/teris-io/shortid"
	"go.uber.org/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

type Client struct {
	id       string
	conn     *websocket.Conn
	cs       *ChatServer
	log      *log.Logger
	user     types.User
	send     chan *ServerMessage
	limiter  ratelimit.Limiter
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	id, err := shortid.Generate()
	if err != nil {
		l.Println("generate connection id:", err)
	}

	c := &Client{
		id:   id,
		conn: conn,
		cs:   cs,
		log:  l,
		send: make(chan *ServerMessage, sendBufferSize),
		stop: make(chan struct{}),
	}

	if cs != nil && cs.eventsPerSecond > 0 {
		c.limiter = ratelimit.New(cs.eventsPerSecond)
	}

	return c
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) authenticated() bool {
	return c.user.Id != 0
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("connection %q: write exiting", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			// A nil message asks the writer to close once the queue ahead of it
			// has been flushed.
			if msg == nil {
				c.sendMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reasonSessionReplaced))
				return
			}

			bytes, err := c.serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("connection %q: read exiting", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		if c.limiter != nil {
			c.limiter.Take()
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			c.log.Printf("connection %q: error parsing message: %v", c.id, err)
			c.queueMessage(ErrInvalidMessage())
			continue
		}

		c.cs.dispatch(c, &msg)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("connection %q: failed to send message to client, channel is full", c.id)
		return false
	}

	return true
}

// evict tells the client its session moved to another connection and closes it
// after the notice is written.
func (c *Client) evict() {
	c.queueMessage(newServerMessage(EventSessionReplaced, ReasonData{Reason: reasonSessionReplaced}))
	if !c.queueMessage(nil) {
		c.stopClient()
	}
}

func (c *Client) serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.cs.disconnect(c)
	c.stopClient()
}
