package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	nexerr "github.com/XDukeHD/nex-client/internal/errors"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the bearer token",
		Long: `Log in to the saved NEX server and store the bearer token.

Without flags an interactive form asks for the username and password.
For scripts, pass --username and pipe the password on stdin.

Examples:
  nex-client login
  echo "$NEX_PASSWORD" | nex-client login --username admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, logConsole)
			if err != nil {
				return err
			}
			defer e.close()

			ep, err := e.requireEndpoint()
			if err != nil {
				return err
			}

			var password string
			if passwordStdin {
				if username == "" {
					return nexerr.New(nexerr.ErrConfig, "--password-stdin needs --username", "Pass the username explicitly when piping the password")
				}
				password, err = readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
			} else {
				username, password, err = promptCredentials(ep.String(), username)
				if err != nil {
					return err
				}
			}

			creds, err := e.httpClient().Login(context.Background(), ep, username, password)
			if err != nil {
				return err
			}
			if err := e.store.SaveToken(creds.BearerToken); err != nil {
				return nexerr.WrapWithCode(err, nexerr.ErrConfig, "Failed to save token", "Check permissions on "+e.store.Path())
			}
			e.log.Info("logged in", "endpoint", ep.String(), "username", username)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in to %s as %s\n", ep.String(), username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", nexerr.WrapWithCode(err, nexerr.ErrConfig, "Couldn't read the password", "Pipe the password on stdin")
		}
		return "", nexerr.New(nexerr.ErrConfig, "No password on stdin", "Pipe the password on stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if password == "" {
		return "", nexerr.New(nexerr.ErrConfig, "Empty password on stdin", "Pipe the password on stdin")
	}
	return password, nil
}

func promptCredentials(server, username string) (string, string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description("Log in to "+server).
				Value(&username).
				Validate(required("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(required("password")),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", nexerr.WrapWithCode(err, nexerr.ErrConfig,
			"Couldn't get your input",
			"Try again or use --username with --password-stdin")
	}
	return username, password, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
