package stream

import (
	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/transport"
)

// event is anything the loop consumes.
type event interface{}

type connectEvent struct {
	reason string
}

type timerEvent struct {
	seq uint64
}

type tokenEvent struct {
	attempt uint64
	token   client.StreamToken
	err     error
}

type dialEvent struct {
	attempt uint64
	conn    transport.Conn
	token   string
	err     error
}

type frameEvent struct {
	attempt uint64
	data    []byte
}

type closeEvent struct {
	attempt uint64
	code    int
	reason  string
}

type disconnectEvent struct {
	done chan struct{}
}

type logoutEvent struct {
	done chan struct{}
}

type sendEvent struct {
	env    client.Envelope
	result chan error
}

type syncEvent struct {
	done chan struct{}
}
