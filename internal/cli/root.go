// Package cli implements the nex-client command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so
// tests can run commands in isolation.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "nex-client",
		Short: "Stream live telemetry from a NEX server",
		Long: `nex-client connects to a NEX server, keeps an authenticated telemetry
stream open and shows what the host reports: CPU, memory, disk, network,
device state and media players.

Getting started:
  nex-client connect 192.168.1.20
  nex-client login
  nex-client watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/nex-client/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newConnectCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWatchCmd(opts),
		newSnapshotCmd(opts),
		newSendCmd(opts),
		newMockCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes structured errors in their own layout and prefixes
// anything else with the failure mark.
func printError(w io.Writer, err error) {
	var nexErr *nexerr.Error
	if errors.As(err, &nexErr) {
		fmt.Fprint(w, nexErr.Error())
		return
	}
	fmt.Fprintf(w, "✗ %v\n", err)
}
