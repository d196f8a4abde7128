package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/woodser/haveno-pricenode/pkg/logging"
)

// Client is a WebSocket client that reconnects until closed.
type Client struct {
	url           string
	conn          *websocket.Conn
	connMu        sync.Mutex
	reconnectWait time.Duration
	maxWait       time.Duration
	maxRetries    int
	pingInterval  time.Duration
	pongWait      time.Duration
	writeWait     time.Duration
	logger        *logging.Logger
	headers       http.Header

	done chan struct{}
	ctx  context.Context

	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func(error)

	connected bool
	stateMu   sync.RWMutex
	closeOnce sync.Once
}

// Config holds WebSocket client configuration
type Config struct {
	URL           string
	ReconnectWait time.Duration
	MaxRetries    int // 0 or less retries forever
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	Logger        *logging.Logger
	Headers       http.Header
}

// NewClient creates a new WebSocket client
func NewClient(cfg Config) *Client {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}

	return &Client{
		url:           cfg.URL,
		reconnectWait: cfg.ReconnectWait,
		maxWait:       60 * time.Second,
		maxRetries:    cfg.MaxRetries,
		pingInterval:  cfg.PingInterval,
		pongWait:      cfg.PongWait,
		writeWait:     cfg.WriteWait,
		logger:        cfg.Logger.With("url", cfg.URL),
		headers:       cfg.Headers,
		done:          make(chan struct{}),
		ctx:           context.Background(),
	}
}

// SetHandlers sets the event handlers. onConnect runs after every (re)connect.
func (c *Client) SetHandlers(onMessage func([]byte), onConnect func(), onDisconnect func(error)) {
	c.onMessage = onMessage
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
}

// Connect establishes the WebSocket connection
func (c *Client) Connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, resp, err := dialer.DialContext(ctx, c.url, c.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.ctx = ctx
	c.connMu.Unlock()

	c.setConnected(true)

	if c.onConnect != nil {
		c.onConnect()
	}

	c.logger.Info("WebSocket connected")

	go c.readPump(conn)
	go c.pingPump(conn)

	return nil
}

// ConnectWithRetry connects with exponential backoff between attempts.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	wait := c.reconnectWait
	retries := 0
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		retries++
		if c.maxRetries > 0 && retries >= c.maxRetries {
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}

		c.logger.Warn("WebSocket connection failed, retrying",
			"error", err,
			"retry", retries,
			"wait", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrConnectionLost
		case <-time.After(wait):
			wait *= 2
			if wait > c.maxWait {
				wait = c.maxWait
			}
		}
	}
}

// SendJSON writes a JSON message on the current connection.
func (c *Client) SendJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(v)
}

// Close closes the connection and stops reconnecting. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setConnected(false)
		close(c.done)

		c.connMu.Lock()
		defer c.connMu.Unlock()

		if c.conn != nil {
			err = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = c.conn.Close()
			c.conn = nil
		}
	})
	return err
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.connected = connected
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readPump reads until the connection fails, then reconnects.
func (c *Client) readPump(conn *websocket.Conn) {
	defer c.reconnect(conn)

	_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !c.closed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

// pingPump sends periodic pings on conn until it is replaced or closed.
func (c *Client) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != conn {
				c.connMu.Unlock()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()

			if err != nil {
				c.logger.Warn("WebSocket ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) reconnect(conn *websocket.Conn) {
	if c.closed() {
		return
	}

	c.connMu.Lock()
	if c.conn == conn {
		_ = conn.Close()
		c.conn = nil
	}
	ctx := c.ctx
	c.connMu.Unlock()

	c.setConnected(false)

	if c.onDisconnect != nil {
		c.onDisconnect(ErrConnectionLost)
	}

	c.logger.Warn("WebSocket disconnected, attempting to reconnect")

	if err := c.ConnectWithRetry(ctx); err != nil && !c.closed() {
		c.logger.Error("WebSocket reconnection failed", "error", err)
	}
}
