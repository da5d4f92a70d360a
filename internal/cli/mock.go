package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/XDukeHD/nex-client/internal/mockfeed"
)

func newMockCmd(opts *globalOptions) *cobra.Command {
	var (
		addr       string
		advertise  string
		username   string
		password   string
		interval   time.Duration
		sessionTTL time.Duration
		diskPath   string
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a local demo NEX server",
		Long: `Serve the NEX wire protocol on a local port, streaming this machine's
CPU, memory, disk and network counters plus two simulated media players.

With --session-ttl each stream gets a "session expiring" notice shortly
before the TTL and is then closed with 4004, which exercises the client's
silent refresh.

Examples:
  nex-client mock
  nex-client mock --addr 127.0.0.1:9384 --session-ttl 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, logConsole)
			if err != nil {
				return err
			}
			defer e.close()

			srv := mockfeed.New(mockfeed.Config{
				Username:   username,
				Password:   password,
				Interval:   interval,
				SessionTTL: sessionTTL,
				Sampler:    mockfeed.NewHostSampler(diskPath, e.logs.Logger("sampler")),
				Advertise:  advertise,
				Logger:     e.logs.Logger("mockfeed"),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Mock NEX server on %s (user %q). Ctrl+C to stop.\n", addr, username)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:9384", "listen address")
	f.StringVar(&advertise, "advertise", "", "host:port written into socket URLs (default: the request host)")
	f.StringVar(&username, "username", "admin", "accepted username")
	f.StringVar(&password, "password", "nex", "accepted password")
	f.DurationVar(&interval, "interval", time.Second, "time between stats frames")
	f.DurationVar(&sessionTTL, "session-ttl", 0, "close streams with 4004 after this long (0 keeps them open)")
	f.StringVar(&diskPath, "disk", "/", "filesystem to report disk usage for")
	return cmd
}
