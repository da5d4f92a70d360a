package cli

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/XDukeHD/nex-client/internal/app"
	"github.com/XDukeHD/nex-client/internal/status"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard",
		Long: `Open a terminal dashboard over the telemetry stream.

The connection is kept alive across session refreshes and dropped links.
Logs go to the log file instead of the screen.

Keys: r reconnect, x disconnect, L log out, j/k select player,
space/n/p/s audio controls, d notice log, ? help, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, logFileOnly)
			if err != nil {
				return err
			}
			defer e.close()

			ep, err := e.requireLogin()
			if err != nil {
				return err
			}

			surface := status.New(e.cfg.Notices.History, nil)

			var (
				mu      sync.Mutex
				program *tea.Program
			)
			onLogout := func() {
				mu.Lock()
				p := program
				mu.Unlock()
				if p != nil {
					// Send blocks until the program reads it; the session loop must not.
					go p.Send(app.LoggedOutMsg{})
				}
			}

			sess, err := e.newSession(surface, onLogout)
			if err != nil {
				return err
			}
			defer sess.Close()

			model := app.New(sess, surface, app.Options{Endpoint: ep.String()})
			mu.Lock()
			program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			mu.Unlock()

			e.log.Info("watch started", "endpoint", ep.String())
			sess.Connect()
			_, err = program.Run()
			return err
		},
	}
}
