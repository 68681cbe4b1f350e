// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/roster-foundation/roster/cmd/roster/cli"
	"github.com/roster-foundation/roster/lib/secret"
	"github.com/roster-foundation/roster/messaging"
)

// loginCommand obtains an access token for the assistant's Matrix
// account and writes it where the daemon's token_file config points.
// Password login happens once, here; the daemon then runs on the
// stored token and never sees the password.
func loginCommand() *cli.Command {
	var (
		homeserverURL string
		passwordFile  string
		outPath       string
	)

	return &cli.Command{
		Name:    "login",
		Summary: "Obtain and store an access token for the assistant",
		Description: `Log in to the homeserver with the assistant account's password and
save the resulting access token to a file (mode 0600).

Point the config's homeserver.token_file at the saved token and the
daemon will authenticate without ever handling the password. The
password is prompted interactively unless --password-file is given.`,
		Usage: "roster login <username> --homeserver <url> --out <path> [flags]",
		Examples: []cli.Example{
			{Command: "roster login assistant --homeserver https://matrix.example.org --out /etc/roster/token"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flags.StringVar(&homeserverURL, "homeserver", "", "Matrix homeserver URL")
			flags.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
			flags.StringVar(&outPath, "out", "", "where to write the access token")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("username is required\n\nUsage: roster login <username> --homeserver <url> --out <path>")
			}
			username := args[0]
			if homeserverURL == "" {
				return fmt.Errorf("--homeserver is required")
			}
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}

			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client, err := messaging.NewClient(messaging.ClientConfig{
				HomeserverURL: homeserverURL,
			})
			if err != nil {
				return err
			}
			session, err := client.Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			defer session.CloseIdleConnections()

			if err := os.WriteFile(outPath, []byte(session.AccessToken()+"\n"), 0o600); err != nil {
				return fmt.Errorf("writing token: %w", err)
			}

			fmt.Fprintf(os.Stdout, "logged in as %s\n", session.UserID())
			fmt.Fprintf(os.Stdout, "token written to %s\n", outPath)
			return nil
		},
	}
}

// readPassword reads the password from the given file, or prompts on
// the terminal with echo disabled when the path is empty.
func readPassword(path string) (*secret.Buffer, error) {
	if path != "" {
		return secret.ReadFromPath(path)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal; use --password-file")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		secret.Zero(raw)
		return nil, err
	}
	return buffer, nil
}
