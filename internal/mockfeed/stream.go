package mockfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/XDukeHD/nex-client/internal/client"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

type outbound struct {
	data      []byte
	closeCode int
	reason    string
}

// feedClient is one authenticated stream. writePump is the only goroutine
// that writes data frames.
type feedClient struct {
	conn *websocket.Conn
	send chan outbound
	done chan struct{}
	once sync.Once
}

func newFeedClient(conn *websocket.Conn) *feedClient {
	c := &feedClient{
		conn: conn,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *feedClient) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if msg.closeCode != 0 {
				frame := websocket.FormatCloseMessage(msg.closeCode, msg.reason)
				c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeTimeout))
				c.stop()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				c.stop()
				return
			}
		}
	}
}

// enqueue drops the frame if the client cannot keep up.
func (c *feedClient) enqueue(data []byte) bool {
	select {
	case c.send <- outbound{data: data}:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *feedClient) closeWith(code int, reason string) {
	select {
	case c.send <- outbound{closeCode: code, reason: reason}:
	case <-c.done:
	default:
		c.stop()
	}
}

func (c *feedClient) stop() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", "error", err)
		return
	}

	if !s.awaitAuth(conn) {
		s.log.Info("stream auth rejected", "remote", r.RemoteAddr)
		frame := websocket.FormatCloseMessage(client.CloseAuthFailed, "authentication failed")
		conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	c := newFeedClient(conn)
	s.addClient(c)
	s.log.Info("stream client connected", "remote", r.RemoteAddr)
	defer func() {
		s.removeClient(c)
		s.log.Info("stream client disconnected", "remote", r.RemoteAddr)
	}()

	go s.readCommands(c)
	s.pump(c)
}

// awaitAuth reads the first frame, which must be an auth frame carrying an
// unused stream token.
func (s *Server) awaitAuth(conn *websocket.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	conn.SetReadDeadline(time.Time{})

	var env client.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Event == client.EventAuth && len(env.Args) == 1 && s.redeem(env.Args[0])
}

func (s *Server) readCommands(c *feedClient) {
	defer c.stop()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env client.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			s.log.Debug("ignoring malformed frame", "bytes", len(data))
			continue
		}
		s.recordCommand(env)
		if len(env.Args) > 0 {
			s.audio.apply(env.Event, env.Args[0], time.Now())
		}
		s.log.Info("command received", "event", env.Event, "args", env.Args)
	}
}

// pump sends stats every Interval and, with a SessionTTL, the expiring
// notice followed by a 4004 close.
func (s *Server) pump(c *feedClient) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var warn, expire <-chan time.Time
	if s.cfg.SessionTTL > 0 {
		warnTimer := time.NewTimer(s.cfg.SessionTTL - s.cfg.ExpiryWarning)
		expireTimer := time.NewTimer(s.cfg.SessionTTL)
		defer warnTimer.Stop()
		defer expireTimer.Stop()
		warn, expire = warnTimer.C, expireTimer.C
	}

	s.sendStats(c)
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			s.sendStats(c)
		case <-warn:
			warn = nil
			data, _ := json.Marshal(client.Envelope{Event: client.EventSessionExpiring})
			c.enqueue(data)
		case <-expire:
			expire = nil
			c.closeWith(client.CloseTokenExpired, "token expired")
		}
	}
}

func (s *Server) sendStats(c *feedClient) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()

	snap, err := s.cfg.Sampler.Sample(ctx)
	if err != nil {
		s.log.Warn("sampling failed", "error", err)
		return
	}
	snap.Audio = s.audio.players(time.Now())

	data, err := client.EncodeSnapshot(snap)
	if err != nil {
		s.log.Warn("encoding stats", "error", err)
		return
	}
	c.enqueue(data)
}
