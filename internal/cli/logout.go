package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved bearer token",
		Long:  `Forget the saved bearer token. The endpoint is kept, so 'nex-client login' is all that is needed to sign in again.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, logConsole)
			if err != nil {
				return err
			}
			defer e.close()

			if e.store.Credentials() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err := e.store.ClearToken(); err != nil {
				return nexerr.WrapWithCode(err, nexerr.ErrConfig, "Failed to clear token", "Check permissions on "+e.store.Path())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}
