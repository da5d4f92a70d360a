package cli

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/config"
	"github.com/XDukeHD/nex-client/internal/credstore"
	nexerr "github.com/XDukeHD/nex-client/internal/errors"
	"github.com/XDukeHD/nex-client/internal/logging"
	"github.com/XDukeHD/nex-client/internal/status"
	"github.com/XDukeHD/nex-client/internal/stream"
	"github.com/XDukeHD/nex-client/internal/transport"
)

// env is everything a command needs after startup.
type env struct {
	cfg   *config.Config
	logs  *logging.Manager
	store *credstore.File
	log   *slog.Logger
}

// logTarget picks where records go for a command.
type logTarget int

const (
	// logConsole writes to stderr when --verbose is set, plus log.file.
	logConsole logTarget = iota
	// logFileOnly keeps the terminal clean for the TUI.
	logFileOnly
)

func loadEnv(cmd *cobra.Command, opts *globalOptions, target logTarget) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}

	var console io.Writer
	file := cfg.Log.File
	switch target {
	case logFileOnly:
		if file == "" {
			file = filepath.Join(config.StateDir(), logging.FileName)
		}
	default:
		if opts.verbose {
			console = cmd.ErrOrStderr()
		}
	}

	logs := logging.NewManager()
	if err := logs.Configure(level, console, file); err != nil {
		return nil, nexerr.WrapWithCode(err, nexerr.ErrConfig, "Failed to set up logging", "Check log.level and log.file")
	}

	store, err := credstore.Open("")
	if err != nil {
		_ = logs.Close()
		return nil, nexerr.WrapWithCode(err, nexerr.ErrConfig, "Failed to read saved credentials",
			"Delete the credentials file and run 'nex-client connect' again")
	}

	return &env{cfg: cfg, logs: logs, store: store, log: logs.Logger("cli")}, nil
}

func (e *env) close() {
	_ = e.logs.Close()
}

// requireEndpoint returns the saved endpoint or a NotConfigured error.
func (e *env) requireEndpoint() (client.Endpoint, error) {
	ep := e.store.Endpoint()
	if ep == nil {
		return client.Endpoint{}, nexerr.NotConfigured("Endpoint")
	}
	return *ep, nil
}

// requireLogin returns the saved endpoint once a bearer token exists too.
func (e *env) requireLogin() (client.Endpoint, error) {
	ep, err := e.requireEndpoint()
	if err != nil {
		return ep, err
	}
	if e.store.Credentials() == nil {
		return ep, nexerr.New(nexerr.ErrNotConfigured, "Not logged in", "Run 'nex-client login' first")
	}
	return ep, nil
}

func (e *env) httpClient() *client.HTTPClient {
	return client.NewHTTPClient(e.cfg.HTTP.Timeout, e.logs.Logger("http"))
}

// newSession wires a stream session from config. onLogout may be nil.
func (e *env) newSession(surface *status.Surface, onLogout func()) (*stream.Session, error) {
	sc := e.cfg.Stream
	ping := sc.PingInterval
	if ping == 0 {
		ping = -1 // config uses 0 for "off", the dialer uses a negative value
	}
	return stream.New(stream.Config{
		Tokens: e.httpClient(),
		Dialer: transport.NewDialer(transport.Config{
			HandshakeTimeout: sc.HandshakeTimeout,
			WriteTimeout:     sc.WriteTimeout,
			PingInterval:     ping,
			PongTimeout:      sc.PongTimeout,
			Logger:           e.logs.Logger("transport"),
		}),
		Store:                e.store,
		Surface:              surface,
		SilentReconnectDelay: sc.SilentReconnectDelay,
		ReconnectDelay:       sc.ReconnectDelay,
		OnLogout:             onLogout,
		Logger:               e.logs.Logger("stream"),
	})
}
