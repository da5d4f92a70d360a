package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/transport"
)

// fakeTokens hands out "tok-1", "tok-2", ... unless fn overrides a call.
type fakeTokens struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) (client.StreamToken, error)
}

func (f *fakeTokens) FetchStreamToken(ctx context.Context, ep *client.Endpoint, creds *client.Credentials) (client.StreamToken, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		if tok, err := fn(ctx, n); err != nil || tok.Token != "" {
			return tok, err
		}
	}
	if ep == nil || creds == nil {
		return client.StreamToken{}, errors.New("fake: not configured")
	}
	return client.StreamToken{
		Token:     fmt.Sprintf("tok-%d", n),
		SocketURL: "ws://" + ep.String() + "/stream",
	}, nil
}

func (f *fakeTokens) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTokens) setFn(fn func(ctx context.Context, call int) (client.StreamToken, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

// fakeDialer returns a fresh fakeConn per Dial unless fn fails the call.
type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	fn    func(ctx context.Context, call int) error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	n := len(d.urls)
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, n); err != nil {
			return nil, err
		}
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) Conns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) setFn(fn func(ctx context.Context, call int) error) {
	d.mu.Lock()
	d.fn = fn
	d.mu.Unlock()
}

type inbound struct {
	data []byte
	err  error
}

// fakeConn is an in-memory transport.Conn. The test plays the server by
// pushing frames or a close with send and peerClose.
type fakeConn struct {
	in   chan inbound
	done chan struct{}

	mu        sync.Mutex
	written   []client.Envelope
	closed    bool
	closeCode int
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan inbound, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case m := <-c.in:
		return m.data, m.err
	case <-c.done:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var env client.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeCode = code
	close(c.done)
	return nil
}

func (c *fakeConn) send(data string) {
	c.in <- inbound{data: []byte(data)}
}

func (c *fakeConn) peerClose(code int) {
	c.in <- inbound{err: &websocket.CloseError{Code: code}}
}

func (c *fakeConn) drop(err error) {
	c.in <- inbound{err: err}
}

func (c *fakeConn) Written() []client.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]client.Envelope(nil), c.written...)
}

func (c *fakeConn) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}
