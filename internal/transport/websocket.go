package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPongTimeout      = 60 * time.Second
	defaultPingInterval     = 30 * time.Second

	// maxMessageSize bounds a single inbound frame.
	maxMessageSize = 1 << 20
)

// Config tunes the websocket dialer. Zero durations use the defaults; a
// negative PingInterval disables keepalive pings.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = defaultPongTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	cfg    Config
	dialer *websocket.Dialer
}

// NewDialer returns a Dialer backed by gorilla/websocket.
func NewDialer(cfg Config) *WebSocketDialer {
	cfg = cfg.withDefaults()
	return &WebSocketDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial opens a websocket to url. The returned Conn pings the peer every
// PingInterval and fails its pending read if no pong arrives within
// PongTimeout.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(ws, d.cfg), nil
}

type wsConn struct {
	conn *websocket.Conn
	cfg  Config

	writeMu   sync.Mutex // serialises all conn writes (ping, frames, close)
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, cfg Config) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{conn: ws, cfg: cfg, cancel: cancel}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		return nil
	})

	if cfg.PingInterval > 0 {
		go c.pingLoop(ctx)
	}
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Any frame from the peer proves the link is alive.
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
		c.writeMu.Unlock()
		if werr != nil && werr != websocket.ErrCloseSent {
			c.cfg.Logger.Debug("close frame not sent", "error", werr)
		}
		err = c.conn.Close()
	})
	return err
}

// pingLoop sends periodic pings until the connection is closed or a write
// fails.
func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.cfg.Logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}
