package ws

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/manpreetbhatti/inkwell/internal/protocol"
	"github.com/manpreetbhatti/inkwell/internal/ratelimit"
	"github.com/manpreetbhatti/inkwell/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	SendQueue         int
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
	EventsPerSecond   float64
	EventBurst        int
	ConnectsPerMinute int
}

func DefaultOptions() Options {
	return Options{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		SendQueue:         512,
		MaxMessageSize:    1024 * 1024,
		MessagesPerSecond: 100,
		MessageBurst:      200,
		EventsPerSecond:   20,
		EventBurst:        100,
		ConnectsPerMinute: 60,
	}
}

// Server upgrades HTTP requests and attaches the resulting clients to the hub
type Server struct {
	hub          *relay.Hub
	upgrader     websocket.Upgrader
	options      Options
	connLimiters *ratelimit.ClientLimiters
}

func NewServer(hub *relay.Hub, options Options) *Server {
	s := &Server{
		hub:     hub,
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if options.ConnectsPerMinute > 0 {
		s.connLimiters = ratelimit.NewClientLimiters(float64(options.ConnectsPerMinute)/60, options.ConnectsPerMinute)
	}
	return s
}

// Stops background cleanup of per-host limiters
func (s *Server) Close() {
	if s.connLimiters != nil {
		s.connLimiters.Stop()
	}
}

type Client struct {
	hub         *relay.Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	rateLimiter *ratelimit.Limiter

	// Guards events that change room state. These are never dropped;
	// exceeding it disconnects the client.
	eventLimiter *ratelimit.Limiter

	mu     sync.Mutex
	closed bool
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.connLimiters != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.connLimiters.Get(host).Allow() {
			log.Printf("🚫 Too many connection attempts from %s", host)
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, s.options.SendQueue),
		id:   uuid.NewString(),
	}
	if s.options.MessagesPerSecond > 0 {
		client.rateLimiter = ratelimit.NewLimiter(s.options.MessagesPerSecond, s.options.MessageBurst)
	}
	if s.options.EventsPerSecond > 0 {
		client.eventLimiter = ratelimit.NewLimiter(s.options.EventsPerSecond, s.options.EventBurst)
	}

	go client.writePump()
	go client.readPump(s.options.MaxMessageSize)
}

func (c *Client) ID() string {
	return c.id
}

// Queues a message without blocking. False once the queue is full or closed.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Closes the outbound queue; the write pump then closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(maxMessageSize int64) {
	defer func() {
		c.hub.Disconnect(c)
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		env, err := protocol.Decode(message)
		if err != nil {
			log.Printf("⚠️ Invalid message from client %s: %v", c.id, err)
			continue
		}

		// Previews over the limit are skipped; the next one supersedes them.
		if env.Type.Transient() {
			if c.rateLimiter != nil && !c.rateLimiter.Allow() {
				rateLimitWarnings++
				if rateLimitWarnings%100 == 1 {
					log.Printf("⚠️ Rate limit exceeded for client %s (warning #%d)", c.id, rateLimitWarnings)
				}
				if rateLimitWarnings > 1000 {
					log.Printf("🚫 Disconnecting client %s for excessive rate limit violations", c.id)
					return
				}
				continue
			}
		} else if c.eventLimiter != nil && !c.eventLimiter.Allow() {
			log.Printf("🚫 Disconnecting client %s: %s events over limit", c.id, env.Type)
			return
		}

		c.hub.Dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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
