package mockfeed

import (
	"math"
	"sync"
	"time"

	"github.com/XDukeHD/nex-client/internal/client"
)

type track struct {
	artist   string
	title    string
	album    string
	duration float64
}

var playlist = []track{
	{"Boards of Canada", "Roygbiv", "Music Has the Right to Children", 151},
	{"Aphex Twin", "Xtal", "Selected Ambient Works 85-92", 294},
	{"Tycho", "Awake", "Awake", 283},
	{"Bonobo", "Kerala", "Migration", 244},
}

type player struct {
	id      string
	name    string
	track   int
	playing bool
	offset  float64   // position when last paused or changed
	since   time.Time // when playback last resumed
}

// audioState simulates the media players the host exposes.
type audioState struct {
	mu   sync.Mutex
	list []*player
}

func newAudioState() *audioState {
	now := time.Now()
	return &audioState{list: []*player{
		{id: "spotify", name: "Spotify", track: 0, playing: true, since: now},
		{id: "vlc", name: "VLC", track: 1},
	}}
}

func (a *audioState) players(now time.Time) []client.AudioPlayer {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]client.AudioPlayer, 0, len(a.list))
	for _, p := range a.list {
		t := playlist[p.track]
		out = append(out, client.AudioPlayer{
			ID:        p.id,
			Name:      p.name,
			Playing:   p.playing,
			Artist:    t.artist,
			Title:     t.title,
			Album:     t.album,
			Timestamp: math.Mod(p.position(now), t.duration),
			Duration:  t.duration,
		})
	}
	return out
}

// apply runs an audio command against the player with the given id.
// Unknown events and ids are ignored.
func (a *audioState) apply(event, id string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var p *player
	for _, candidate := range a.list {
		if candidate.id == id {
			p = candidate
		}
	}
	if p == nil {
		return
	}

	switch event {
	case client.CommandAudioPlayPause:
		if p.playing {
			p.offset = p.position(now)
		} else {
			p.since = now
		}
		p.playing = !p.playing
	case client.CommandAudioNext:
		p.track = (p.track + 1) % len(playlist)
		p.offset, p.since = 0, now
	case client.CommandAudioPrevious:
		p.track = (p.track + len(playlist) - 1) % len(playlist)
		p.offset, p.since = 0, now
	case client.CommandAudioStop:
		p.playing = false
		p.offset = 0
	}
}

func (p *player) position(now time.Time) float64 {
	if !p.playing {
		return p.offset
	}
	return p.offset + now.Sub(p.since).Seconds()
}
