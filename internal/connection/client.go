package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a single stream socket. It knows nothing about the Alpaca
// protocol; Stream layers authentication and subscription on top.
type Client interface {
	Connect(ctx context.Context) error
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// Messages delivers every frame read from the socket, stamped with the
	// local receive time. The channel is never closed.
	Messages() <-chan Frame

	// Errors carries at most one terminal error: ErrClosedByPeer,
	// ErrStaleConnection or the underlying read error.
	Errors() <-chan error

	IsConnected() bool
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	frames chan Frame
	errs   chan error
	done   chan struct{}

	mu     sync.Mutex // guards conn, closed and all writes
	conn   *websocket.Conn
	closed bool

	connected atomic.Bool
	lastSeen  atomic.Int64 // unix nanos of the last ping or pong
	closeOnce sync.Once
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClientConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	return &client{
		cfg:    cfg,
		logger: logger.With("url", cfg.URL),
		frames: make(chan Frame, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}

	c.conn = conn
	c.touch()
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return c.control(websocket.PongMessage, []byte(data))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	c.connected.Store(true)

	go c.readLoop(conn)
	if c.cfg.PingTimeout > 0 {
		go c.heartbeatLoop()
	}

	c.logger.Debug("websocket connected")
	return nil
}

func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()

		c.connected.Store(false)
		close(c.done)

		if conn == nil {
			return
		}
		c.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = conn.Close()
	})
	return err
}

func (c *client) Send(data []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan Frame { return c.frames }

func (c *client) Errors() <-chan error { return c.errs }

func (c *client) IsConnected() bool { return c.connected.Load() }

// control writes a control frame under the write lock.
func (c *client) control(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteControl(messageType, data, time.Now().Add(c.cfg.WriteTimeout))
}

func (c *client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// fail reports err unless the client was closed locally.
func (c *client) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.errs <- err:
	default:
	}
}

// readLoop forwards frames until the socket fails. A full buffer blocks the
// reader instead of dropping frames.
func (c *client) readLoop(conn *websocket.Conn) {
	defer c.connected.Store(false)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosedByPeer
			}
			c.fail(err)
			return
		}

		select {
		case c.frames <- Frame{Data: data, ReceivedAt: time.Now()}:
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop pings every half PingTimeout and reports the socket stale
// when neither a ping nor a pong arrived within PingTimeout.
func (c *client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if err := c.control(websocket.PingMessage, []byte("keepalive")); err != nil {
			c.logger.Debug("ping failed", "error", err)
		}

		last := time.Unix(0, c.lastSeen.Load())
		if since := time.Since(last); since > c.cfg.PingTimeout {
			c.logger.Warn("connection stale",
				"silent_for", since.Round(time.Millisecond),
				"timeout", c.cfg.PingTimeout,
			)
			c.fail(ErrStaleConnection)
			return
		}
	}
}
