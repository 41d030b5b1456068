package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBacklog  = 32
	maxClientFrame = 512
)

// StreamMessage is one frame sent to expert desk clients
type StreamMessage struct {
	Type       string                   `json:"type"` // "connected" or "escalation"
	Escalation *models.EscalationRecord `json:"escalation,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EscalationHub fans escalations out to connected websocket clients.
// Slow clients are dropped rather than blocking the broadcaster.
type EscalationHub struct {
	mu       sync.Mutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEscalationHub creates an empty hub. m may be nil.
func NewEscalationHub(m *metrics.Metrics, logger *zap.Logger) *EscalationHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationHub{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: m,
		logger:  logger.Named("hub"),
	}
}

// Broadcast queues esc for every connected client
func (h *EscalationHub) Broadcast(esc models.EscalationRecord) {
	data, err := json.Marshal(StreamMessage{Type: "escalation", Escalation: &esc, Timestamp: time.Now()})
	if err != nil {
		h.logger.Warn("failed to encode escalation", zap.String("escalation_id", esc.ID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow stream client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients
func (h *EscalationHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams escalations until the client leaves
func (h *EscalationHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, clientBacklog)}
	hello, _ := json.Marshal(StreamMessage{Type: "connected", Timestamp: time.Now()})
	c.send <- hello
	h.add(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *EscalationHub) add(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.StreamClients.Inc()
	}
}

func (h *EscalationHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *EscalationHub) removeLocked(c *streamClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.StreamClients.Dec()
	}
}

// readPump discards client frames and notices disconnects
func (h *EscalationHub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxClientFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EscalationHub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client
func (h *EscalationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
