// Package mockfeed is a local NEX server speaking the same wire protocol as
// the real one: login, stream-token exchange and an authenticated stream of
// periodic stats. It exists for demos and end-to-end tests.
package mockfeed

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/XDukeHD/nex-client/internal/client"
)

const (
	loginPath  = "/v1/login"
	tokenPath  = "/v1/websocket"
	streamPath = "/v1/stream"

	// authTimeout bounds how long a stream may stay silent before sending
	// its auth frame.
	authTimeout = 5 * time.Second

	maxBodySize = 1 << 16
)

// Config describes the mock server.
type Config struct {
	Username string
	Password string

	// Interval between stats frames. Defaults to one second.
	Interval time.Duration

	// SessionTTL closes each stream with 4004 after this long. Zero keeps
	// streams open indefinitely.
	SessionTTL time.Duration

	// ExpiryWarning is how long before SessionTTL the "session expiring "
	// notice is sent. Defaults to a fifth of SessionTTL.
	ExpiryWarning time.Duration

	// Sampler produces the system part of each snapshot. Defaults to a
	// HostSampler.
	Sampler Sampler

	// Advertise overrides the host:port written into socket URLs.
	Advertise string

	Logger *slog.Logger
}

// Server is an http.Handler serving the NEX routes.
type Server struct {
	cfg      Config
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	audio    *audioState

	mu           sync.Mutex
	bearers      map[string]bool
	streamTokens map[string]bool
	clients      map[*feedClient]bool
	commands     []client.Envelope
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.SessionTTL > 0 && (cfg.ExpiryWarning <= 0 || cfg.ExpiryWarning >= cfg.SessionTTL) {
		cfg.ExpiryWarning = cfg.SessionTTL / 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sampler == nil {
		cfg.Sampler = NewHostSampler("/", cfg.Logger)
	}

	s := &Server{
		cfg:          cfg,
		log:          cfg.Logger.With("component", "mockfeed"),
		mux:          http.NewServeMux(),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		audio:        newAudioState(),
		bearers:      make(map[string]bool),
		streamTokens: make(map[string]bool),
		clients:      make(map[*feedClient]bool),
	}
	s.mux.HandleFunc(loginPath, s.handleLogin)
	s.mux.HandleFunc(tokenPath, s.handleToken)
	s.mux.HandleFunc(streamPath, s.handleStream)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// IssueBearer registers a bearer token without a login round trip.
func (s *Server) IssueBearer(token string) {
	s.mu.Lock()
	s.bearers[token] = true
	s.mu.Unlock()
}

// RevokeBearers invalidates every bearer token; the next token exchange
// answers 401.
func (s *Server) RevokeBearers() {
	s.mu.Lock()
	s.bearers = make(map[string]bool)
	s.mu.Unlock()
}

// Commands returns every command frame received so far.
func (s *Server) Commands() []client.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.Envelope(nil), s.commands...)
}

// ClientCount returns the number of authenticated streams.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// CloseAll closes every authenticated stream with code.
func (s *Server) CloseAll(code int, reason string) {
	s.mu.Lock()
	clients := make([]*feedClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.closeWith(code, reason)
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.CloseAll(websocket.CloseGoingAway, "server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("mock feed listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req client.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !equal(req.Username, s.cfg.Username) || !equal(req.Password, s.cfg.Password) {
		s.log.Info("login rejected", "username", req.Username)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token := newToken()
	s.IssueBearer(token)
	s.log.Info("login accepted", "username", req.Username)
	writeJSON(w, http.StatusOK, client.LoginResponse{Token: token})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	token := newToken()
	s.mu.Lock()
	s.streamTokens[token] = true
	s.mu.Unlock()

	host := s.cfg.Advertise
	if host == "" {
		host = r.Host
	}

	var resp client.WebSocketTokenResponse
	resp.Object = "websocket_token"
	resp.Data.Token = token
	resp.Data.Socket = "ws://" + host + streamPath
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorize(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bearers[strings.TrimPrefix(auth, "Bearer ")]
}

// redeem consumes a stream token. Each token authorizes one stream.
func (s *Server) redeem(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streamTokens[token] {
		return false
	}
	delete(s.streamTokens, token)
	return true
}

func (s *Server) recordCommand(env client.Envelope) {
	s.mu.Lock()
	s.commands = append(s.commands, env)
	s.mu.Unlock()
}

func (s *Server) addClient(c *feedClient) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) removeClient(c *feedClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
