package metrics

import (
	"strings"
	"testing"

	"github.com/XDukeHD/nex-client/internal/client"
)

func sampleSnapshot() *client.Snapshot {
	return &client.Snapshot{
		MemoryBytes: 3 * 1024 * 1024 * 1024,
		CPUAbsolute: 64,
		Network:     client.NetworkStats{RxBytes: 2048, TxBytes: 512},
		Uptime:      90061,
		DiskBytes:   1536,
		Wifi:        client.WifiStatus{SSID: "home", Connected: true},
		Battery:     client.BatteryStatus{Percentage: 80},
		Volume:      40,
		Backlight:   70,
		Audio: []client.AudioPlayer{
			{ID: "spotify", Name: "Spotify", Playing: true, Artist: "Tycho", Title: "Awake", Timestamp: 65, Duration: 283},
			{ID: "vlc", Name: "VLC"},
		},
	}
}

func TestViewWaitingWithoutSnapshot(t *testing.T) {
	m := New()
	if !strings.Contains(m.View(), "Waiting for data") {
		t.Error("empty view should say it is waiting")
	}
	if m.Animating() {
		t.Error("no snapshot means nothing to animate")
	}
}

func TestViewRendersSnapshot(t *testing.T) {
	m := New()
	m.Width = 100
	m.SetSnapshot(sampleSnapshot())
	v := m.View()
	for _, want := range []string{"3.0 GiB", "1.5 KiB", "1d 1h 1m", "home", "Spotify", "Tycho - Awake", "1:05 / 4:43", "(nothing loaded)"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestGaugeSettlesOnTarget(t *testing.T) {
	m := New()
	m.SetSnapshot(sampleSnapshot())
	if !m.Animating() {
		t.Fatal("gauge should start animating towards 64")
	}
	for i := 0; i < FPS*10 && m.Animating(); i++ {
		m.Step()
	}
	if m.Animating() {
		t.Fatalf("gauge did not settle, at %.2f", m.DisplayedCPU())
	}
	if m.DisplayedCPU() != 64 {
		t.Errorf("settled at %.2f, want 64", m.DisplayedCPU())
	}
}

func TestGaugeMovesTowardsTarget(t *testing.T) {
	m := New()
	m.SetSnapshot(sampleSnapshot())
	m.Step()
	if got := m.DisplayedCPU(); got <= 0 || got >= 64 {
		t.Errorf("after one frame gauge = %.2f, want strictly between 0 and 64", got)
	}
}

func TestSelectionWrapsAndClamps(t *testing.T) {
	m := New()
	m.SelectNext() // no snapshot: no-op
	if m.Selected != 0 {
		t.Fatalf("selection moved without players")
	}

	m.SetSnapshot(sampleSnapshot())
	m.SelectNext()
	if p, _ := m.SelectedPlayer(); p.ID != "vlc" {
		t.Errorf("next selected %q, want vlc", p.ID)
	}
	m.SelectNext()
	if p, _ := m.SelectedPlayer(); p.ID != "spotify" {
		t.Errorf("next wrapped to %q, want spotify", p.ID)
	}
	m.SelectPrev()
	if p, _ := m.SelectedPlayer(); p.ID != "vlc" {
		t.Errorf("prev wrapped to %q, want vlc", p.ID)
	}

	snap := sampleSnapshot()
	snap.Audio = snap.Audio[:1]
	m.SetSnapshot(snap)
	if m.Selected != 0 {
		t.Errorf("selection not clamped, got %d", m.Selected)
	}

	m.SetSnapshot(nil)
	if _, ok := m.SelectedPlayer(); ok {
		t.Error("cleared snapshot should have no selected player")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5.0 TiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{59, "0m"},
		{3600 + 120, "1h 2m"},
		{2*86400 + 3*3600 + 4*60, "2d 3h 4m"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.in); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
