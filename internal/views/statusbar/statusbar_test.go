package statusbar

import (
	"strings"
	"testing"
	"time"

	"github.com/XDukeHD/nex-client/internal/status"
)

func TestViewStates(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  string
	}{
		{"disconnected", New("10.0.0.5:9384"), "Disconnected"},
		{"connected", Model{Endpoint: "x", Status: status.ConnectionStatus{State: status.StateConnected}}, "Connected"},
		{"connecting", Model{Endpoint: "x", Status: status.ConnectionStatus{State: status.StateConnecting}}, "Connecting..."},
		{"logged out", Model{Endpoint: "x", LoggedOut: true, Status: status.ConnectionStatus{State: status.StateDisconnected}}, "Logged out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := tt.model.View()
			if !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, view)
			}
		})
	}
}

func TestViewShowsEndpointAndFrameTime(t *testing.T) {
	m := New("10.0.0.5:9384")
	m.Width = 80
	m.Status.State = status.StateConnected
	m.LastFrame = time.Date(2026, 1, 2, 13, 4, 5, 0, time.Local)
	view := m.View()
	if !strings.Contains(view, "10.0.0.5:9384") {
		t.Errorf("endpoint missing:\n%s", view)
	}
	if !strings.Contains(view, "updated 13:04:05") {
		t.Errorf("frame time missing:\n%s", view)
	}
}

func TestViewShowsErrorHeadlineOnlyWhenDisconnected(t *testing.T) {
	m := New("x")
	m.Width = 120
	m.Status = status.ConnectionStatus{State: status.StateDisconnected, Err: "✗ Server did not answer\n\n  dial tcp: refused\n"}
	view := m.View()
	if !strings.Contains(view, "Server did not answer") {
		t.Errorf("error headline missing:\n%s", view)
	}
	if strings.Contains(view, "refused") {
		t.Errorf("error cause should be trimmed:\n%s", view)
	}

	m.Status.State = status.StateConnecting
	if strings.Contains(m.View(), "Server did not answer") {
		t.Error("error shown while connecting")
	}
}

func TestViewStaysOneRowAtMinimumWidth(t *testing.T) {
	frame := time.Date(2026, 1, 2, 13, 4, 5, 0, time.Local)
	tests := []struct {
		name  string
		model Model
		want  string
		drop  string
	}{
		{
			name:  "frame time dropped first",
			model: Model{Endpoint: "10.0.0.5:9384", LastFrame: frame, Status: status.ConnectionStatus{State: status.StateConnected}},
			want:  "10.0.0.5:9384",
			drop:  "13:04:05",
		},
		{
			name: "error outlives frame time",
			model: Model{Endpoint: "nex:9384", LastFrame: frame, Status: status.ConnectionStatus{
				State: status.StateDisconnected, Err: "✗ Refused",
			}},
			want: "Refused",
			drop: "13:04:05",
		},
		{
			name:  "long endpoint is cut",
			model: Model{Endpoint: strings.Repeat("very-long-host.", 8) + "local:9384", Status: status.ConnectionStatus{State: status.StateConnected}},
			want:  "Connected",
			drop:  "local:9384",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := tt.model.View()
			lines := strings.Split(view, "\n")
			if len(lines) != 3 {
				t.Fatalf("expected border, one content row, border; got %d lines:\n%s", len(lines), view)
			}
			if !strings.Contains(lines[1], tt.want) {
				t.Errorf("content row missing %q: %s", tt.want, lines[1])
			}
			if strings.Contains(view, tt.drop) {
				t.Errorf("view should have dropped %q:\n%s", tt.drop, view)
			}
		})
	}
}
