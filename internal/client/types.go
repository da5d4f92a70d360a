// Package client provides the HTTP calls and wire types for talking to a
// NEX server: login, stream-token exchange, and the JSON envelopes carried
// over the telemetry stream.
package client

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Event names on the stream.
const (
	EventAuth            = "auth"
	EventStats           = "stats"
	EventSessionExpiring = "session expiring " // trailing space is part of the wire contract
)

// Audio player commands accepted by the server.
const (
	CommandAudioPlayPause = "audio-play-pause"
	CommandAudioNext      = "audio-next"
	CommandAudioPrevious  = "audio-previous"
	CommandAudioStop      = "audio-stop"
)

// Close codes with a defined meaning.
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	CloseAbnormal     = 1006
	CloseAuthFailed   = 4001
	CloseTokenExpired = 4004
)

// DefaultPort is the port the NEX server listens on out of the box.
const DefaultPort = 9384

// Endpoint identifies a NEX server.
type Endpoint struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	TLS  bool   `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// Validate checks the host is set and the port is in range.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", e.Port)
	}
	return nil
}

// BaseURL returns the HTTP base, e.g. "http://10.0.0.5:9384".
func (e Endpoint) BaseURL() string {
	scheme := "http"
	if e.TLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials hold the bearer token issued by /v1/login.
type Credentials struct {
	BearerToken string
}

// StreamToken authorizes exactly one streaming connection.
type StreamToken struct {
	Token     string
	SocketURL string
}

// Envelope wraps every frame in both directions.
type Envelope struct {
	Event string   `json:"event"`
	Args  []string `json:"args,omitempty"`
}

// --- HTTP response types ---

// WebSocketTokenResponse is returned by GET /v1/websocket.
type WebSocketTokenResponse struct {
	Object string `json:"object"`
	Data   struct {
		Token  string `json:"token"`
		Socket string `json:"socket"`
	} `json:"data"`
}

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /v1/login.
type LoginResponse struct {
	Token string `json:"token"`
}

// --- Snapshot payload ---

// Snapshot is one full system-state report from the server.
type Snapshot struct {
	MemoryBytes float64       `json:"memory_bytes"`
	CPUAbsolute float64       `json:"cpu_absolute"`
	Network     NetworkStats  `json:"network"`
	Uptime      float64       `json:"uptime"`
	DiskBytes   float64       `json:"disk_bytes"`
	Audio       []AudioPlayer `json:"audio"`
	Wifi        WifiStatus    `json:"wifi"`
	Battery     BatteryStatus `json:"battery"`
	Volume      float64       `json:"volume"`
	Backlight   float64       `json:"backlight"`
}

// NetworkStats holds cumulative interface counters.
type NetworkStats struct {
	RxBytes float64 `json:"rx_bytes"`
	TxBytes float64 `json:"tx_bytes"`
}

// AudioPlayer is one media player known to the host.
type AudioPlayer struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Playing   bool    `json:"playing"`
	Artist    string  `json:"artist,omitempty"`
	Title     string  `json:"title,omitempty"`
	Album     string  `json:"album,omitempty"`
	ArtURL    string  `json:"art_url,omitempty"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
}

// WifiStatus describes the wireless link.
type WifiStatus struct {
	SSID      string `json:"ssid"`
	Connected bool   `json:"connected"`
}

// BatteryStatus describes the battery, if any.
type BatteryStatus struct {
	Percentage float64 `json:"percentage"`
	PluggedIn  bool    `json:"plugged_in"`
}
