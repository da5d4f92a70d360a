package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/XDukeHD/nex-client/internal/client"
	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

func newConnectCmd(opts *globalOptions) *cobra.Command {
	var (
		port  int
		tls   bool
		probe bool
	)
	cmd := &cobra.Command{
		Use:   "connect <host>",
		Short: "Save the NEX server endpoint",
		Long: `Validate and save the address of a NEX server.

Changing the endpoint forgets the saved login, since tokens are issued per
server. With --probe the server is contacted once; the endpoint is saved
even if it does not answer.

Examples:
  nex-client connect 192.168.1.20
  nex-client connect nex.local --port 443 --tls --probe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, logConsole)
			if err != nil {
				return err
			}
			defer e.close()

			ep := client.Endpoint{Host: strings.TrimSpace(args[0]), Port: port, TLS: tls}
			if err := ep.Validate(); err != nil {
				return nexerr.WrapWithCode(err, nexerr.ErrConfig, "Invalid endpoint", "Use a host name or IP and a port between 1 and 65535")
			}
			if err := e.store.SaveEndpoint(ep); err != nil {
				return nexerr.WrapWithCode(err, nexerr.ErrConfig, "Failed to save endpoint", "Check permissions on "+e.store.Path())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Saved endpoint %s\n", ep.BaseURL())

			if probe {
				if err := e.httpClient().Probe(context.Background(), ep); err != nil {
					e.log.Warn("probe failed", "endpoint", ep.String(), "error", err)
					fmt.Fprintf(out, "! %s did not answer; saved anyway\n", ep.String())
				} else {
					fmt.Fprintf(out, "✓ %s is reachable\n", ep.String())
				}
			}
			if e.store.Credentials() == nil {
				fmt.Fprintln(out, "Next: nex-client login")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", client.DefaultPort, "server port")
	cmd.Flags().BoolVar(&tls, "tls", false, "use https and wss")
	cmd.Flags().BoolVar(&probe, "probe", false, "check the server answers before finishing")
	return cmd
}
