// Package transport opens the websocket that carries the NEX stream. It
// hides gorilla/websocket behind a small Dialer/Conn pair so the session
// can be tested against in-memory fakes.
package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/gorilla/websocket"
)

// Close codes the transport itself produces.
const (
	closeNormal   = websocket.CloseNormalClosure
	closeAbnormal = websocket.CloseAbnormalClosure
)

// Conn is one open stream connection.
//
// ReadMessage must only be called from a single goroutine. WriteJSON and
// Close may be called concurrently with ReadMessage.
type Conn interface {
	// ReadMessage blocks for the next data frame. Once the connection is
	// gone it returns an error that CloseInfo can classify.
	ReadMessage() ([]byte, error)

	// WriteJSON encodes v as one text frame.
	WriteJSON(v any) error

	// Close sends a close frame with code and reason and releases the
	// connection. Calling Close more than once is safe.
	Close(code int, reason string) error
}

// Dialer opens stream connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseInfo extracts the close code and reason from an error returned by
// Conn.ReadMessage or Dialer.Dial. Anything that is not a close frame from
// the peer is reported as 1006 (abnormal closure).
func CloseInfo(err error) (int, string) {
	if err == nil {
		return closeNormal, ""
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return closeAbnormal, err.Error()
}

// UpgradeScheme rewrites a ws:// socket URL to wss:// when the endpoint is
// served over TLS. Other URLs are returned unchanged.
func UpgradeScheme(socketURL string, tls bool) string {
	if tls && strings.HasPrefix(socketURL, "ws://") {
		return "wss://" + strings.TrimPrefix(socketURL, "ws://")
	}
	return socketURL
}
