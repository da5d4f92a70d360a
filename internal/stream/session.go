// Package stream owns the lifecycle of the NEX telemetry stream: token
// exchange, dial, auth-on-open, frame dispatch, close-code handling and the
// reconnect timer.
//
// Every state change happens on one event loop goroutine. Token exchange,
// dialing, reading and timers run elsewhere and re-enter the loop as
// events tagged with the attempt that produced them, so results from an
// abandoned attempt are recognised and discarded.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/clock"
	nexerr "github.com/XDukeHD/nex-client/internal/errors"
	"github.com/XDukeHD/nex-client/internal/status"
	"github.com/XDukeHD/nex-client/internal/transport"
)

const (
	// DefaultSilentReconnectDelay follows a session-expiring notice or a
	// 4004 close.
	DefaultSilentReconnectDelay = 1 * time.Second

	// DefaultReconnectDelay follows an unexpected close.
	DefaultReconnectDelay = 5 * time.Second

	eventBuffer = 64
)

// TokenSource exchanges a bearer token for a stream token.
type TokenSource interface {
	FetchStreamToken(ctx context.Context, endpoint *client.Endpoint, creds *client.Credentials) (client.StreamToken, error)
}

// CredentialStore is the part of the credential store the session uses.
type CredentialStore interface {
	Endpoint() *client.Endpoint
	Credentials() *client.Credentials
	ClearToken() error
}

// Config wires a Session to its collaborators.
type Config struct {
	Tokens  TokenSource
	Dialer  transport.Dialer
	Store   CredentialStore
	Surface *status.Surface

	// Optional.
	Clock                clock.Clock
	Logger               *slog.Logger
	SilentReconnectDelay time.Duration
	ReconnectDelay       time.Duration

	// OnLogout runs on the event loop after credentials are purged. It
	// must not call back into the Session synchronously.
	OnLogout func()
}

type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseOpen
	phaseClosed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseConnecting:
		return "connecting"
	case phaseOpen:
		return "open"
	default:
		return "closed"
	}
}

// Session is the stream connection manager. Create one with New and
// release it with Close.
type Session struct {
	cfg    Config
	log    *slog.Logger
	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// postMu guards closed. Senders hold the read lock while handing an
	// event over so that nothing lands in events once the loop has drained it.
	postMu sync.RWMutex
	closed bool

	// Loop-owned state below.
	phase         phase
	attempt       uint64
	silent        bool
	tls           bool
	attemptCtx    context.Context
	cancelAttempt context.CancelFunc
	conn          transport.Conn
	timer         *clock.Timer
	timerSeq      uint64
}

// New validates cfg and starts the event loop. The session stays idle
// until Connect is called.
func New(cfg Config) (*Session, error) {
	switch {
	case cfg.Tokens == nil:
		return nil, errors.New("stream: token source is required")
	case cfg.Dialer == nil:
		return nil, errors.New("stream: dialer is required")
	case cfg.Store == nil:
		return nil, errors.New("stream: credential store is required")
	case cfg.Surface == nil:
		return nil, errors.New("stream: status surface is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SilentReconnectDelay <= 0 {
		cfg.SilentReconnectDelay = DefaultSilentReconnectDelay
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "stream"),
		events: make(chan event, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),

		cancelAttempt: func() {},
	}
	go s.run()
	return s, nil
}

// Connect starts a visible connection attempt using the stored endpoint
// and credentials. It does nothing if a session is already open.
func (s *Session) Connect() {
	s.post(connectEvent{reason: "start"})
}

// Reconnect is a manual, visible connection attempt. It does nothing if a
// session is already open.
func (s *Session) Reconnect() {
	s.post(connectEvent{reason: "manual"})
}

// Disconnect closes the stream with a normal closure and cancels any
// pending reconnect. It returns once the loop has applied the change.
func (s *Session) Disconnect() {
	done := make(chan struct{})
	if s.post(disconnectEvent{done: done}) {
		s.wait(done)
	}
}

// Logout disconnects, purges the bearer token and the latest snapshot, and
// notifies OnLogout. Calling it again has no further effect.
func (s *Session) Logout() {
	done := make(chan struct{})
	if s.post(logoutEvent{done: done}) {
		s.wait(done)
	}
}

// SendCommand writes {"event":event,"args":[targetID]} on the open
// stream. Without an open stream it fails with ErrNotConnected and writes
// nothing. No acknowledgement is awaited.
func (s *Session) SendCommand(event, targetID string) error {
	result := make(chan error, 1)
	if !s.post(sendEvent{env: client.Envelope{Event: event, Args: []string{targetID}}, result: result}) {
		return nexerr.NotConnected()
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return nexerr.NotConnected()
	}
}

// Close tears the session down: the stream is closed with 1000, every
// timer is cancelled and the loop exits. Safe to call more than once.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// post hands ev to the loop. It never blocks after teardown and reports
// whether the loop accepted the event.
func (s *Session) post(ev event) bool {
	s.postMu.RLock()
	defer s.postMu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// sync returns once every event posted before it has been handled.
func (s *Session) sync() {
	done := make(chan struct{})
	if s.post(syncEvent{done: done}) {
		s.wait(done)
	}
}

func (s *Session) wait(done <-chan struct{}) {
	select {
	case <-done:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			s.drain()
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case connectEvent:
		s.startAttempt(ev.reason, false)
	case timerEvent:
		if ev.seq != s.timerSeq || s.timer == nil {
			return
		}
		s.timer = nil
		s.startAttempt("retry", true)
	case tokenEvent:
		s.onToken(ev)
	case dialEvent:
		s.onDial(ev)
	case frameEvent:
		if ev.attempt != s.attempt || s.phase != phaseOpen {
			return
		}
		s.onFrame(ev.data)
	case closeEvent:
		if ev.attempt != s.attempt || s.phase != phaseOpen {
			return
		}
		s.onClosed(ev.code, ev.reason)
	case disconnectEvent:
		s.stopTimer()
		s.abandon(client.CloseNormal, "disconnect")
		s.cfg.Surface.SetStatus(status.StateDisconnected, nil)
		close(ev.done)
	case logoutEvent:
		s.logout()
		close(ev.done)
	case sendEvent:
		ev.result <- s.send(ev.env)
	case syncEvent:
		close(ev.done)
	}
}

// startAttempt moves Idle/Closed (or a superseded Connecting) into
// Connecting and kicks off the token exchange.
func (s *Session) startAttempt(reason string, silent bool) {
	if s.phase == phaseOpen {
		s.log.Debug("connect skipped, stream already open", "reason", reason)
		return
	}
	if s.phase == phaseConnecting {
		s.log.Debug("superseding in-flight attempt", "attempt", s.attempt, "reason", reason)
		s.cancelAttempt()
	}
	s.stopTimer()
	from := s.phase

	s.attempt++
	id := s.attempt
	s.phase = phaseConnecting
	s.silent = silent

	endpoint := s.cfg.Store.Endpoint()
	creds := s.cfg.Store.Credentials()
	s.tls = endpoint != nil && endpoint.TLS

	ctx, cancel := context.WithCancel(s.ctx)
	s.attemptCtx = ctx
	s.cancelAttempt = cancel

	s.cfg.Surface.SetStatus(status.StateConnecting, nil)
	s.log.Info("connecting", "attempt", id, "reason", reason, "silent", silent, "from", from)

	go func() {
		tok, err := s.cfg.Tokens.FetchStreamToken(ctx, endpoint, creds)
		s.post(tokenEvent{attempt: id, token: tok, err: err})
	}()
}

func (s *Session) onToken(ev tokenEvent) {
	if ev.attempt != s.attempt || s.phase != phaseConnecting {
		return
	}
	if ev.err != nil {
		s.attemptFailed(ev.err)
		return
	}

	url := transport.UpgradeScheme(ev.token.SocketURL, s.tls)
	id := ev.attempt
	ctx := s.attemptCtx
	token := ev.token.Token

	go func() {
		conn, err := s.cfg.Dialer.Dial(ctx, url)
		if !s.post(dialEvent{attempt: id, conn: conn, token: token, err: err}) && conn != nil {
			conn.Close(client.CloseNormal, "")
		}
	}()
}

func (s *Session) onDial(ev dialEvent) {
	if ev.attempt != s.attempt || s.phase != phaseConnecting {
		if ev.conn != nil {
			ev.conn.Close(client.CloseNormal, "superseded")
		}
		return
	}
	if ev.err != nil {
		s.log.Warn("dial failed", "attempt", ev.attempt, "error", ev.err)
		s.onClosed(client.CloseAbnormal, ev.err.Error())
		return
	}

	conn := ev.conn
	auth := client.Envelope{Event: client.EventAuth, Args: []string{ev.token}}
	if err := conn.WriteJSON(auth); err != nil {
		s.log.Warn("auth frame not sent", "attempt", ev.attempt, "error", err)
		conn.Close(client.CloseNormal, "")
		s.onClosed(client.CloseAbnormal, err.Error())
		return
	}

	s.conn = conn
	s.phase = phaseOpen
	s.cfg.Surface.SetStatus(status.StateConnected, nil)
	if !s.silent {
		s.cfg.Surface.Notify(status.LevelSuccess, "Connected to NEX server", "")
	}
	s.log.Info("stream open", "attempt", ev.attempt)

	go s.readLoop(ev.attempt, conn)
}

func (s *Session) readLoop(attempt uint64, conn transport.Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			code, reason := transport.CloseInfo(err)
			s.post(closeEvent{attempt: attempt, code: code, reason: reason})
			return
		}
		if !s.post(frameEvent{attempt: attempt, data: data}) {
			return
		}
	}
}

func (s *Session) onFrame(data []byte) {
	frame, err := client.DecodeFrame(data)
	if err != nil {
		s.log.Warn("dropping malformed frame", "error", err, "bytes", len(data))
		return
	}
	switch f := frame.(type) {
	case client.SnapshotFrame:
		s.cfg.Surface.SetSnapshot(f.Snapshot)
	case client.ExpiringFrame:
		s.log.Info("session expiring, refresh scheduled", "delay", s.cfg.SilentReconnectDelay)
		s.scheduleReconnect(s.cfg.SilentReconnectDelay)
		s.cfg.Surface.Notify(status.LevelInfo, "Session refreshing", "Maintaining connection...")
	case client.IgnoredFrame:
		s.log.Debug("ignoring event", "event", f.Event)
	}
}

// attemptFailed handles a failed token exchange.
func (s *Session) attemptFailed(err error) {
	s.cancelAttempt()
	s.phase = phaseClosed

	if nexerr.IsCode(err, nexerr.ErrUnauthorized) {
		s.log.Warn("bearer token rejected", "error", err)
		s.logout()
		s.cfg.Surface.Notify(status.LevelError, "Session expired", "Please log in again")
		return
	}

	s.log.Warn("connection attempt failed", "attempt", s.attempt, "code", nexerr.Code(err), "error", err)
	s.cfg.Surface.SetStatus(status.StateDisconnected, err)
	if !s.silent {
		s.cfg.Surface.Notify(status.LevelError, "Connection failed", summary(err))
	}
}

// onClosed applies the close-code policy to the current attempt.
func (s *Session) onClosed(code int, reason string) {
	if s.conn != nil {
		s.conn.Close(client.CloseNormal, "")
		s.conn = nil
	}
	s.cancelAttempt()
	s.phase = phaseClosed
	s.log.Info("stream closed", "attempt", s.attempt, "code", code, "reason", reason)

	switch code {
	case client.CloseNormal, client.CloseGoingAway:
		s.cfg.Surface.SetStatus(status.StateDisconnected, nil)
	case client.CloseAuthFailed:
		s.logout()
		s.cfg.Surface.Notify(status.LevelError, "Authentication failed", "Please log in again")
	case client.CloseTokenExpired:
		s.cfg.Surface.SetStatus(status.StateDisconnected, nil)
		s.scheduleReconnect(s.cfg.SilentReconnectDelay)
		s.cfg.Surface.Notify(status.LevelInfo, "Session expired, reconnecting...", "")
	default:
		s.cfg.Surface.SetStatus(status.StateDisconnected, nexerr.TransportClosed(code, reason))
		s.scheduleReconnect(s.cfg.ReconnectDelay)
		s.cfg.Surface.Notify(status.LevelError, "Connection lost", "Attempting to reconnect...")
	}
}

func (s *Session) send(env client.Envelope) error {
	if s.phase != phaseOpen || s.conn == nil {
		s.cfg.Surface.Notify(status.LevelError, "Not connected", "Unable to send command")
		return nexerr.NotConnected()
	}
	if err := s.conn.WriteJSON(env); err != nil {
		s.log.Warn("command not sent", "event", env.Event, "error", err)
		return nexerr.Unreachable(err, "Failed to send command")
	}
	s.log.Debug("command sent", "event", env.Event)
	return nil
}

// logout purges everything tied to the current credentials. It notifies
// OnLogout only when there was a token to purge.
func (s *Session) logout() {
	s.stopTimer()
	s.abandon(client.CloseNormal, "logout")

	hadToken := s.cfg.Store.Credentials() != nil
	if err := s.cfg.Store.ClearToken(); err != nil {
		s.log.Error("clearing token", "error", err)
	}
	s.cfg.Surface.ClearSnapshot()
	s.cfg.Surface.SetStatus(status.StateDisconnected, nil)

	if hadToken {
		s.log.Info("logged out")
		if s.cfg.OnLogout != nil {
			s.cfg.OnLogout()
		}
	}
}

// abandon drops the current attempt or open stream. Any late events from
// it are ignored because the attempt id moves on.
func (s *Session) abandon(code int, reason string) {
	if s.phase == phaseConnecting {
		s.cancelAttempt()
	}
	if s.conn != nil {
		s.conn.Close(code, reason)
		s.conn = nil
	}
	if s.phase == phaseConnecting || s.phase == phaseOpen {
		s.attempt++
		s.phase = phaseClosed
	}
}

func (s *Session) teardown() {
	s.stopTimer()
	s.abandon(client.CloseNormal, "")
	s.cfg.Surface.SetStatus(status.StateDisconnected, nil)
	s.log.Debug("session closed")
}

// drain stops further posts and releases anything still buffered. A dial
// result that arrived during teardown owns an open conn nobody else will
// close.
func (s *Session) drain() {
	s.postMu.Lock()
	s.closed = true
	s.postMu.Unlock()

	for {
		select {
		case ev := <-s.events:
			if d, ok := ev.(dialEvent); ok && d.conn != nil {
				d.conn.Close(client.CloseNormal, "")
			}
		default:
			return
		}
	}
}

// scheduleReconnect replaces any pending reconnect with one that fires
// after d.
func (s *Session) scheduleReconnect(d time.Duration) {
	s.stopTimer()
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.cfg.Clock.AfterFunc(d, func() {
		s.post(timerEvent{seq: seq})
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func summary(err error) string {
	var e *nexerr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
