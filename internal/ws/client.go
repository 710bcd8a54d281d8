package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mayankSinghx/QuickShow/internal/element"
	"github.com/mayankSinghx/QuickShow/internal/protocol"
	"github.com/mayankSinghx/QuickShow/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBuffer     = 512
)

// Client is one live connection. It implements room.Session: after a
// join-room message it belongs to exactly one room until disconnect.
type Client struct {
	gateway     *Gateway
	conn        *websocket.Conn
	send        chan []byte
	sessionID   string
	rateLimiter *ratelimit.Limiter
	log         zerolog.Logger

	mu     sync.Mutex
	user   element.User
	roomID string
	joined bool
}

func newClient(g *Gateway, conn *websocket.Conn) *Client {
	sessionID := uuid.NewString()
	return &Client{
		gateway:     g,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		sessionID:   sessionID,
		rateLimiter: g.limiters.Get(sessionID),
		log:         g.log.With().Str("session", sessionID).Logger(),
	}
}

func (c *Client) ID() string { return c.sessionID }

func (c *Client) User() element.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Send queues an outbound message without blocking the authority. A
// session whose buffer is full loses the message; the next commit
// cycle corrects its view.
func (c *Client) Send(msg protocol.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode outbound message")
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Str("event", string(msg.Event)).Msg("send buffer full, dropping message")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				c.log.Warn().Int("warnings", rateLimitWarnings).Msg("rate limit exceeded")
			}
			if rateLimitWarnings > 1000 {
				c.log.Warn().Msg("disconnecting session for excessive rate limit violations")
				return
			}
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			// Malformed payloads are dropped, never fatal
			c.log.Warn().Err(err).Msg("dropping malformed message")
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *protocol.ClientMessage) {
	ctx := context.Background()

	switch msg.Event {
	case protocol.EventJoinRoom:
		c.mu.Lock()
		if c.joined {
			c.mu.Unlock()
			c.log.Warn().Str("room", msg.RoomID).Msg("dropping join: session already in a room")
			return
		}
		c.user = *msg.User
		c.roomID = msg.RoomID
		c.joined = true
		c.mu.Unlock()

		c.gateway.registry.Join(ctx, msg.RoomID, c)

	case protocol.EventUpdate:
		if roomID, ok := c.memberOf(msg.RoomID); ok {
			c.gateway.registry.ApplyUpdate(roomID, c, *msg.Element)
		}

	case protocol.EventCommit:
		if roomID, ok := c.memberOf(msg.RoomID); ok {
			c.gateway.registry.Commit(ctx, roomID, c, *msg.Element)
		}

	case protocol.EventCursorMove:
		if roomID, ok := c.memberOf(msg.RoomID); ok {
			c.gateway.registry.CursorMove(roomID, c, *msg.Cursor)
		}
	}
}

// memberOf checks that the session joined the room it is addressing.
func (c *Client) memberOf(roomID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined || c.roomID != roomID {
		c.log.Warn().Str("room", roomID).Msg("dropping message for room the session has not joined")
		return "", false
	}
	return c.roomID, true
}

func (c *Client) disconnect() {
	c.mu.Lock()
	joined, roomID := c.joined, c.roomID
	c.joined = false
	c.mu.Unlock()

	if joined {
		c.gateway.registry.Leave(roomID, c.sessionID)
	}
	c.gateway.limiters.Remove(c.sessionID)
	close(c.send)
	c.log.Debug().Msg("connection closed")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
