package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
	"github.com/XDukeHD/nex-client/internal/status"
	"github.com/XDukeHD/nex-client/internal/stream"
)

const defaultHeadlessTimeout = 10 * time.Second

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one snapshot as JSON",
		Long: `Connect, wait for the first stats frame, print it as JSON and disconnect.

Examples:
  nex-client snapshot
  nex-client snapshot --timeout 30s | jq .cpu_absolute`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, opts, timeout, func(s *stream.Session, surface *status.Surface) error {
				snap, _ := surface.Snapshot()
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}, untilSnapshot)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultHeadlessTimeout, "give up after this long")
	return cmd
}

func newSendCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <event> <target>",
		Short: "Send one command to the host",
		Long: `Connect, send {"event": EVENT, "args": [TARGET]} and disconnect. No
acknowledgement is awaited.

Audio events: audio-play-pause, audio-next, audio-previous, audio-stop.

Examples:
  nex-client send audio-play-pause spotify`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, target := args[0], args[1]
			return runHeadless(cmd, opts, timeout, func(s *stream.Session, _ *status.Surface) error {
				if err := s.SendCommand(event, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %s to %s\n", event, target)
				return nil
			}, untilConnected)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultHeadlessTimeout, "give up after this long")
	return cmd
}

// readiness decides when a headless command can act.
type readiness func(status.Update) bool

func untilConnected(u status.Update) bool {
	return u.Status.State == status.StateConnected
}

func untilSnapshot(u status.Update) bool {
	return u.Snapshot != nil
}

// runHeadless connects, waits until ready, runs fn and disconnects. Any
// error notice ends the wait, since there is nobody to watch retries.
func runHeadless(cmd *cobra.Command, opts *globalOptions, timeout time.Duration,
	fn func(*stream.Session, *status.Surface) error, ready readiness) error {
	e, err := loadEnv(cmd, opts, logConsole)
	if err != nil {
		return err
	}
	defer e.close()

	ep, err := e.requireLogin()
	if err != nil {
		return err
	}

	surface := status.New(e.cfg.Notices.History, nil)
	updates, unsubscribe := surface.Subscribe(64)
	defer unsubscribe()

	sess, err := e.newSession(surface, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess.Connect()
	if err := waitReady(ctx, updates, surface, ready); err != nil {
		return err
	}
	e.log.Debug("stream ready", "endpoint", ep.String())

	err = fn(sess, surface)
	sess.Disconnect()
	return err
}

func waitReady(ctx context.Context, updates <-chan status.Update, surface *status.Surface, ready readiness) error {
	for {
		select {
		case <-ctx.Done():
			return nexerr.WrapWithCode(ctx.Err(), nexerr.ErrUnreachable,
				"Timed out waiting for the stream",
				"Check the server is running or raise --timeout")
		case u, ok := <-updates:
			if !ok {
				return nexerr.New(nexerr.ErrTransportClosed, "Stream closed", "")
			}
			if ready(u) {
				return nil
			}
			if u.Notice != nil && u.Notice.Level == status.LevelError {
				if err := surface.LastError(); err != nil {
					return err
				}
				return noticeError(*u.Notice)
			}
		}
	}
}

func noticeError(n status.Notice) error {
	code := nexerr.ErrUnreachable
	switch n.Title {
	case "Session expired", "Authentication failed":
		code = nexerr.ErrUnauthorized
	}
	return nexerr.New(code, n.Title, n.Detail)
}
