// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/roster-foundation/roster/cmd/roster/cli"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/teamstore"
)

func managerCommand() *cli.Command {
	return &cli.Command{
		Name:    "manager",
		Summary: "Manage team managers",
		Subcommands: []*cli.Command{
			managerAddCommand(),
		},
	}
}

// managerAddCommand bootstraps an active manager directly in the
// store. Approval normally happens in chat, but the first manager of a
// team has nobody to approve them; this command breaks that cycle.
func managerAddCommand() *cli.Command {
	var (
		configPath  string
		displayName string
	)

	return &cli.Command{
		Name:    "add",
		Summary: "Register and activate a manager directly",
		Description: `Register a Matrix user as a manager and activate them immediately,
bypassing chat approval. Intended for bootstrapping: once a team has
one active manager, further managers should be approved in the staff
room where the decision is visible to the rest of the staff.`,
		Usage: "roster manager add <team-id> <user-id> --config <path> [flags]",
		Examples: []cli.Example{
			{Command: "roster manager add riverside-fc @dana:example.org --config /etc/roster/roster.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("add", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to roster.yaml (default: $ROSTER_CONFIG)")
			flags.StringVar(&displayName, "name", "", "display name to record (default: the user ID localpart)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("team ID and user ID are required\n\nUsage: roster manager add <team-id> <user-id> --config <path>")
			}
			teamID, err := ref.ParseTeamID(args[0])
			if err != nil {
				return err
			}
			userID, err := ref.ParseUserID(args[1])
			if err != nil {
				return err
			}
			if displayName == "" {
				displayName = userID.Localpart()
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := findTeam(cfg, teamID.String()); err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			code, err := store.Register(ctx, teamID, userID, identity.RoleManager, displayName)
			if err != nil {
				if errors.Is(err, teamstore.ErrAlreadyRegistered) {
					return fmt.Errorf("%s already holds a manager registration with %s", userID, teamID)
				}
				return err
			}
			// Self-approval is the point of the bootstrap path; the
			// note marks it as such in the store.
			if _, err := store.Approve(ctx, teamID, code, userID, "bootstrapped via roster CLI"); err != nil {
				return fmt.Errorf("activating manager: %w", err)
			}

			fmt.Fprintf(os.Stdout, "%s is now an active manager of %s\n", userID, teamID)
			return nil
		},
	}
}
