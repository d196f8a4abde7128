package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WebSocketServer streams every published snapshot to connected clients.
// It satisfies publish.Publisher so the publish loop can drive it.
type WebSocketServer struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan *snapshot.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn          *websocket.Conn
	send          chan []byte
	server        *WebSocketServer
	subscribedAll bool
	currencies    map[string]bool
	mu            sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type       string   `json:"type"`       // "subscribe", "unsubscribe", "ping"
	Currencies []string `json:"currencies"` // currency codes, "*" for all
}

// NewWebSocketServer creates the stream handler. Call Run to start broadcasting.
func NewWebSocketServer(logger *logging.Logger) *WebSocketServer {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan *snapshot.Snapshot, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run broadcasts queued snapshots until Close is called.
func (s *WebSocketServer) Run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case snap := <-s.updates:
			s.broadcast(snap)
		}
	}
}

// Publish queues a snapshot for broadcast.
func (s *WebSocketServer) Publish(ctx context.Context, snap *snapshot.Snapshot) error {
	select {
	case s.updates <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping snapshot")
		return nil
	}
}

// Close stops broadcasting and disconnects all clients. Each client's read loop
// unregisters it once its connection drops; only unregisterClient closes send.
func (s *WebSocketServer) Close() error {
	s.cancel()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	deadline := time.Now().Add(writeWait)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		_ = client.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = client.conn.Close()
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP upgrades the connection and registers the client.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	if s.ctx.Err() != nil {
		_ = conn.Close()
		return
	}

	client := &WebSocketClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		server:        s,
		subscribedAll: true,
		currencies:    make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// broadcast sends each client the part of the snapshot it subscribed to.
func (s *WebSocketServer) broadcast(snap *snapshot.Snapshot) {
	if snap == nil {
		return
	}

	full, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("Failed to marshal snapshot", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		data := full
		if filtered, ok := client.filter(snap); ok {
			data, err = json.Marshal(filtered)
			if err != nil {
				s.logger.Error("Failed to marshal filtered snapshot", "error", err)
				continue
			}
		}
		select {
		case client.send <- data:
		default:
			s.logger.Warn("Client send buffer full, skipping update")
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
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

func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Currencies)
	case "unsubscribe":
		c.unsubscribe(msg.Currencies)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

func (c *WebSocketClient) subscribe(currencies []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(currencies) == 0 || (len(currencies) == 1 && currencies[0] == "*") {
		c.subscribedAll = true
		c.currencies = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, code := range currencies {
			c.currencies[strings.ToUpper(code)] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "currencies", currencies)
}

func (c *WebSocketClient) unsubscribe(currencies []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(currencies) == 0 || (len(currencies) == 1 && currencies[0] == "*") {
		c.subscribedAll = false
		c.currencies = make(map[string]bool)
	} else {
		for _, code := range currencies {
			delete(c.currencies, strings.ToUpper(code))
		}
	}

	c.server.logger.Debug("Client unsubscribed", "currencies", currencies)
}

// filter returns a copy of snap restricted to the subscribed currencies.
// ok is false when the client receives the full snapshot.
func (c *WebSocketClient) filter(snap *snapshot.Snapshot) (*snapshot.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return nil, false
	}

	data := make([]sources.Rate, 0, len(snap.Data))
	for _, r := range snap.Data {
		if c.currencies[r.Base] || c.currencies[r.Counter] {
			data = append(data, r)
		}
	}
	return &snapshot.Snapshot{
		Metadata:  snap.Metadata,
		Data:      data,
		CreatedAt: snap.CreatedAt,
	}, true
}

func (c *WebSocketClient) sendPong() {
	data, _ := json.Marshal(map[string]string{"type": "pong"})
	select {
	case c.send <- data:
	default:
	}
}
