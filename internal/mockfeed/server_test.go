package mockfeed

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XDukeHD/nex-client/internal/client"
	nexerr "github.com/XDukeHD/nex-client/internal/errors"
	"github.com/XDukeHD/nex-client/internal/transport"
)

func staticSampler(cpu float64) Sampler {
	return SamplerFunc(func(context.Context) (client.Snapshot, error) {
		return client.Snapshot{CPUAbsolute: cpu, Uptime: 3600}, nil
	})
}

type fixture struct {
	srv  *Server
	http *httptest.Server
	ep   client.Endpoint
	api  *client.HTTPClient
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.Username == "" {
		cfg.Username, cfg.Password = "admin", "secret"
	}
	if cfg.Sampler == nil {
		cfg.Sampler = staticSampler(42)
	}
	if cfg.Interval == 0 {
		cfg.Interval = 20 * time.Millisecond
	}
	srv := New(cfg)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	host, portStr, err := net.SplitHostPort(hs.Listener.Addr().String())
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)

	return &fixture{
		srv:  srv,
		http: hs,
		ep:   client.Endpoint{Host: host, Port: port},
		api:  client.NewHTTPClient(2*time.Second, nil),
	}
}

// openStream logs in, exchanges a stream token and dials the socket
// without authenticating.
func (f *fixture) openStream(t *testing.T) (*websocket.Conn, client.StreamToken) {
	t.Helper()
	ctx := context.Background()
	creds, err := f.api.Login(ctx, f.ep, "admin", "secret")
	require.NoError(t, err)
	tok, err := f.api.FetchStreamToken(ctx, &f.ep, &creds)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(tok.SocketURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, tok
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (client.Envelope, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return client.Envelope{}, err
	}
	var env client.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env, nil
}

func sendAuth(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(client.Envelope{Event: client.EventAuth, Args: []string{token}}))
}

func TestLoginAndTokenRoutes(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.api.Login(ctx, f.ep, "admin", "wrong")
	assert.True(t, nexerr.IsCode(err, nexerr.ErrUnauthorized))

	_, err = f.api.FetchStreamToken(ctx, &f.ep, &client.Credentials{BearerToken: "forged"})
	assert.True(t, nexerr.IsCode(err, nexerr.ErrUnauthorized))

	creds, err := f.api.Login(ctx, f.ep, "admin", "secret")
	require.NoError(t, err)
	tok, err := f.api.FetchStreamToken(ctx, &f.ep, &creds)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, "ws://"+f.ep.String()+"/v1/stream", tok.SocketURL)

	assert.NoError(t, f.api.Probe(ctx, f.ep))
}

func TestStreamSendsStatsAfterAuth(t *testing.T) {
	f := newFixture(t, Config{})
	conn, tok := f.openStream(t)
	sendAuth(t, conn, tok.Token)

	env, err := readEnvelope(t, conn)
	require.NoError(t, err)
	frame, err := client.DecodeFrame(mustMarshal(t, env))
	require.NoError(t, err)
	snap := frame.(client.SnapshotFrame).Snapshot
	assert.Equal(t, 42.0, snap.CPUAbsolute)
	assert.Len(t, snap.Audio, 2)

	require.Eventually(t, func() bool { return f.srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsBadAuth(t *testing.T) {
	tests := []struct {
		name  string
		first func(t *testing.T, conn *websocket.Conn, tok client.StreamToken)
	}{
		{"wrong token", func(t *testing.T, conn *websocket.Conn, _ client.StreamToken) {
			sendAuth(t, conn, "not-a-token")
		}},
		{"command before auth", func(t *testing.T, conn *websocket.Conn, tok client.StreamToken) {
			require.NoError(t, conn.WriteJSON(client.Envelope{Event: client.CommandAudioNext, Args: []string{"vlc"}}))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			conn, tok := f.openStream(t)
			tt.first(t, conn, tok)

			_, err := readEnvelope(t, conn)
			code, _ := transport.CloseInfo(err)
			assert.Equal(t, client.CloseAuthFailed, code)
		})
	}
}

func TestStreamTokenSingleUse(t *testing.T) {
	f := newFixture(t, Config{})
	conn, tok := f.openStream(t)
	sendAuth(t, conn, tok.Token)
	_, err := readEnvelope(t, conn)
	require.NoError(t, err)

	second, _, err := websocket.DefaultDialer.Dial(tok.SocketURL, nil)
	require.NoError(t, err)
	defer second.Close()
	sendAuth(t, second, tok.Token)

	_, err = readEnvelope(t, second)
	code, _ := transport.CloseInfo(err)
	assert.Equal(t, client.CloseAuthFailed, code)
}

func TestSessionTTLWarnsThenCloses(t *testing.T) {
	f := newFixture(t, Config{
		Interval:      time.Hour,
		SessionTTL:    300 * time.Millisecond,
		ExpiryWarning: 200 * time.Millisecond,
	})
	conn, tok := f.openStream(t)
	sendAuth(t, conn, tok.Token)

	env, err := readEnvelope(t, conn)
	require.NoError(t, err)
	assert.Equal(t, client.EventStats, env.Event)

	env, err = readEnvelope(t, conn)
	require.NoError(t, err)
	assert.Equal(t, "session expiring ", env.Event)

	_, err = readEnvelope(t, conn)
	code, _ := transport.CloseInfo(err)
	assert.Equal(t, client.CloseTokenExpired, code)
}

func TestCommandsRecordedAndApplied(t *testing.T) {
	f := newFixture(t, Config{})
	conn, tok := f.openStream(t)
	sendAuth(t, conn, tok.Token)

	require.NoError(t, conn.WriteJSON(client.Envelope{Event: client.CommandAudioPlayPause, Args: []string{"spotify"}}))
	require.Eventually(t, func() bool { return len(f.srv.Commands()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, client.Envelope{Event: "audio-play-pause", Args: []string{"spotify"}}, f.srv.Commands()[0])

	// Later stats reflect the paused player.
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "spotify never reported paused")
		env, err := readEnvelope(t, conn)
		require.NoError(t, err)
		if env.Event != client.EventStats {
			continue
		}
		snap, err := client.DecodeSnapshot(env.Args[0])
		require.NoError(t, err)
		if snap.Audio[0].ID == "spotify" && !snap.Audio[0].Playing {
			break
		}
	}
}

func TestCloseAll(t *testing.T) {
	f := newFixture(t, Config{Interval: time.Hour})
	conn, tok := f.openStream(t)
	sendAuth(t, conn, tok.Token)
	_, err := readEnvelope(t, conn)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.srv.CloseAll(4500, "test")
	_, err = readEnvelope(t, conn)
	code, _ := transport.CloseInfo(err)
	assert.Equal(t, 4500, code)
	require.Eventually(t, func() bool { return f.srv.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRevokeBearers(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	creds, err := f.api.Login(ctx, f.ep, "admin", "secret")
	require.NoError(t, err)

	f.srv.RevokeBearers()
	_, err = f.api.FetchStreamToken(ctx, &f.ep, &creds)
	assert.True(t, nexerr.IsCode(err, nexerr.ErrUnauthorized))
}

func TestTokenRouteMethods(t *testing.T) {
	f := newFixture(t, Config{})
	resp, err := http.Post(f.http.URL+"/v1/websocket", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
