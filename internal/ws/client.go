package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/protocol"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ratelimit"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 1024 * 1024
	defaultMessageRate    = 100
	defaultMessageBurst   = 200

	sendBufferSize = 256
)

// Options tunes the WebSocket endpoint. The zero value gets sane defaults.
type Options struct {
	AllowedOrigins []string
	MaxMessageSize int64
	MessageRate    float64
	MessageBurst   int
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.MessageRate <= 0 {
		o.MessageRate = defaultMessageRate
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = defaultMessageBurst
	}
	return o
}

// Client is one live WebSocket connection. Its identifier is minted at
// upgrade time and never reused; a client that reconnects after a drop is a
// brand-new connection and must send join again.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *ratelimit.Limiter
	log     *slog.Logger

	maxMessageSize int64
	closeOnce      sync.Once
}

// Handler returns the HTTP handler that upgrades requests to WebSocket
// sessions and hands them to the hub.
func Handler(hub *Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := &Client{
			id:             uuid.NewString(),
			hub:            hub,
			conn:           conn,
			send:           make(chan []byte, sendBufferSize),
			limiter:        ratelimit.NewLimiter(opts.MessageRate, opts.MessageBurst),
			maxMessageSize: opts.MaxMessageSize,
		}
		client.log = hub.log.With("conn", client.id, "remote", r.RemoteAddr)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// originChecker allows requests with no Origin header (non-browser clients)
// and browser requests from the configured allowlist. "*" allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (c *Client) ID() string { return c.id }

// Enqueue hands a frame to the write pump without blocking. Only the hub's
// dispatch goroutine calls this, and never after closeSend.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump reads frames off the socket in order and feeds them to the hub,
// so a single sender's events are dispatched in the order it emitted them.
// Any read error, graceful or abrupt, ends the connection the same way.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", "err", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.log.Debug("rate limit exceeded, dropping event")
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("malformed frame", "err", err)
			continue
		}

		c.hub.submit(c, env)
	}
}

// writePump drains the send buffer onto the socket and keeps the connection
// alive with periodic pings.
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
