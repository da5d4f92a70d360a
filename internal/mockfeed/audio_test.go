package mockfeed

import (
	"context"
	"testing"
	"time"

	"github.com/XDukeHD/nex-client/internal/client"
)

func TestAudioCommands(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newAudioState()
	for _, p := range a.list {
		p.since = start
	}

	byID := func(now time.Time, id string) client.AudioPlayer {
		for _, p := range a.players(now) {
			if p.ID == id {
				return p
			}
		}
		t.Fatalf("player %s missing", id)
		return client.AudioPlayer{}
	}

	if got := byID(start.Add(10*time.Second), "spotify"); !got.Playing || got.Timestamp != 10 {
		t.Fatalf("spotify = %+v, want playing at 10s", got)
	}

	a.apply(client.CommandAudioPlayPause, "spotify", start.Add(10*time.Second))
	if got := byID(start.Add(30*time.Second), "spotify"); got.Playing || got.Timestamp != 10 {
		t.Errorf("after pause = %+v, want paused at 10s", got)
	}

	a.apply(client.CommandAudioPrevious, "spotify", start)
	if got := byID(start, "spotify"); got.Title != playlist[len(playlist)-1].title {
		t.Errorf("previous from first track = %q, want last track", got.Title)
	}
	a.apply(client.CommandAudioNext, "spotify", start)
	if got := byID(start, "spotify"); got.Title != playlist[0].title {
		t.Errorf("next wrapped to %q, want first track", got.Title)
	}

	a.apply(client.CommandAudioStop, "spotify", start)
	if got := byID(start, "spotify"); got.Playing || got.Timestamp != 0 {
		t.Errorf("after stop = %+v", got)
	}

	// Unknown targets and events are ignored.
	a.apply(client.CommandAudioNext, "winamp", start)
	a.apply("audio-eject", "vlc", start)
	if got := byID(start, "vlc"); got.Title != playlist[1].title {
		t.Errorf("vlc changed by unrelated commands: %+v", got)
	}
}

func TestHostSampler(t *testing.T) {
	snap, err := NewHostSampler("/", nil).Sample(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if snap.Wifi.SSID != "nex-demo" || snap.Volume != 50 {
		t.Errorf("demo fields not set: %+v", snap)
	}
	if snap.MemoryBytes < 0 || snap.CPUAbsolute < 0 {
		t.Errorf("negative metrics: %+v", snap)
	}
}
