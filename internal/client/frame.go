package client

import (
	"encoding/json"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

// Frame is a decoded inbound envelope. It is exactly one of
// SnapshotFrame, ExpiringFrame or IgnoredFrame.
type Frame interface {
	frame()
}

// SnapshotFrame carries a full replacement snapshot.
type SnapshotFrame struct {
	Snapshot Snapshot
}

// ExpiringFrame is the server's notice that the stream token is about to
// lapse.
type ExpiringFrame struct{}

// IgnoredFrame is any event this client does not handle.
type IgnoredFrame struct {
	Event string
}

func (SnapshotFrame) frame() {}
func (ExpiringFrame) frame() {}
func (IgnoredFrame) frame()  {}

// inboundEnvelope keeps args undecoded until the event is known. Only
// stats requires a string in args[0].
type inboundEnvelope struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

// DecodeFrame parses one inbound message. The stats payload is itself a
// JSON document inside args[0] and is decoded a second time. Malformed
// input returns an ErrDecode error and no frame.
func DecodeFrame(data []byte) (Frame, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nexerr.Decode(err, "malformed envelope")
	}

	switch env.Event {
	case EventStats:
		if len(env.Args) == 0 {
			return nil, nexerr.Decode(nil, "stats frame without payload")
		}
		var payload string
		if err := json.Unmarshal(env.Args[0], &payload); err != nil {
			return nil, nexerr.Decode(err, "stats payload is not a string")
		}
		if payload == "" {
			return nil, nexerr.Decode(nil, "stats frame without payload")
		}
		snap, err := DecodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		return SnapshotFrame{Snapshot: snap}, nil
	case EventSessionExpiring:
		return ExpiringFrame{}, nil
	default:
		return IgnoredFrame{Event: env.Event}, nil
	}
}

// DecodeSnapshot parses the nested stats document.
func DecodeSnapshot(payload string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, nexerr.Decode(err, "malformed stats payload")
	}
	return snap, nil
}

// EncodeSnapshot produces a stats envelope for snap. Used by the mock
// feed and tests.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	inner, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: EventStats, Args: []string{string(inner)}})
}
