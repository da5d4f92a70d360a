// Package config loads nex-client settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

const (
	appDirName = "nex-client"
	// FileName is the config file name inside the config directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g.
	// NEX_STREAM_RECONNECT_DELAY=10s.
	EnvPrefix = "NEX"
)

// Config is the full client configuration.
type Config struct {
	Stream  StreamConfig  `yaml:"stream" mapstructure:"stream"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Notices NoticesConfig `yaml:"notices" mapstructure:"notices"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StreamConfig tunes the stream session and its transport.
type StreamConfig struct {
	SilentReconnectDelay time.Duration `yaml:"silent_reconnect_delay" mapstructure:"silent_reconnect_delay"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	WriteTimeout         time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
	// PingInterval of 0 disables keepalive pings.
	PingInterval time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
}

// HTTPConfig tunes REST calls.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NoticesConfig bounds the notice history.
type NoticesConfig struct {
	History int `yaml:"history" mapstructure:"history"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			SilentReconnectDelay: 1 * time.Second,
			ReconnectDelay:       5 * time.Second,
			WriteTimeout:         10 * time.Second,
			HandshakeTimeout:     10 * time.Second,
			PingInterval:         30 * time.Second,
			PongTimeout:          60 * time.Second,
		},
		HTTP:    HTTPConfig{Timeout: 10 * time.Second},
		Notices: NoticesConfig{History: 50},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the config file at path, or the default path when path is
// empty, merged onto DefaultConfig and then NEX_* environment overrides.
// A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nexerr.WrapWithCode(err, nexerr.ErrConfig,
				"Failed to read config file",
				"Check "+path+" is valid YAML")
		}
	} else if explicit {
		return nil, nexerr.WrapWithCode(err, nexerr.ErrConfig,
			"Config file not found: "+path,
			"Check the path passed to --config")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nexerr.WrapWithCode(err, nexerr.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("stream.silent_reconnect_delay", d.Stream.SilentReconnectDelay)
	v.SetDefault("stream.reconnect_delay", d.Stream.ReconnectDelay)
	v.SetDefault("stream.write_timeout", d.Stream.WriteTimeout)
	v.SetDefault("stream.handshake_timeout", d.Stream.HandshakeTimeout)
	v.SetDefault("stream.ping_interval", d.Stream.PingInterval)
	v.SetDefault("stream.pong_timeout", d.Stream.PongTimeout)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("notices.history", d.Notices.History)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	positive := []struct {
		key string
		val time.Duration
	}{
		{"stream.silent_reconnect_delay", c.Stream.SilentReconnectDelay},
		{"stream.reconnect_delay", c.Stream.ReconnectDelay},
		{"stream.write_timeout", c.Stream.WriteTimeout},
		{"stream.handshake_timeout", c.Stream.HandshakeTimeout},
		{"stream.pong_timeout", c.Stream.PongTimeout},
		{"http.timeout", c.HTTP.Timeout},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return invalid(fmt.Sprintf("%s must be positive, got %s", p.key, p.val))
		}
	}
	if c.Stream.PingInterval < 0 {
		return invalid(fmt.Sprintf("stream.ping_interval must not be negative, got %s", c.Stream.PingInterval))
	}
	if c.Stream.PingInterval > 0 && c.Stream.PingInterval >= c.Stream.PongTimeout {
		return invalid("stream.ping_interval must be shorter than stream.pong_timeout")
	}
	if c.Notices.History < 1 {
		return invalid(fmt.Sprintf("notices.history must be at least 1, got %d", c.Notices.History))
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid(fmt.Sprintf("unsupported log.level %q", c.Log.Level))
	}
	return nil
}

func invalid(msg string) error {
	return nexerr.New(nexerr.ErrConfig, msg, "Fix the value in "+DefaultPath()+" or the matching NEX_ variable")
}

// Dir returns ~/.config/nex-client, respecting XDG_CONFIG_HOME if set.
func Dir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", appDirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName)
}

// StateDir returns ~/.local/state/nex-client, respecting XDG_STATE_HOME if
// set. Log files live here.
func StateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
