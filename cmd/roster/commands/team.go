// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/roster-foundation/roster/cmd/roster/cli"
	"github.com/roster-foundation/roster/lib/ref"
)

func teamCommand() *cli.Command {
	return &cli.Command{
		Name:    "team",
		Summary: "Manage teams",
		Subcommands: []*cli.Command{
			teamInitCommand(),
		},
	}
}

// teamInitCommand verifies a team's configuration end to end and
// creates the store schema, so the first conversational interaction
// does not trip over a missing database or a typo'd room ID.
func teamInitCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "init",
		Summary: "Initialize the store for a configured team",
		Description: `Verify a team's configuration and initialize the team store.

Opens (creating if necessary) the SQLite store, checks that the team
and its rooms are configured, and prints a summary. Run this once per
team before starting the assistant; it is safe to run again.`,
		Usage: "roster team init <team-id> --config <path>",
		Examples: []cli.Example{
			{Command: "roster team init riverside-fc --config /etc/roster/roster.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to roster.yaml (default: $ROSTER_CONFIG)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one team ID is required\n\nUsage: roster team init <team-id> --config <path>")
			}
			teamID, err := ref.ParseTeamID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			team, err := findTeam(cfg, teamID.String())
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			// Exercise one read so schema problems surface here, not
			// on the first chat message.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			members, err := store.Members(ctx, teamID)
			if err != nil {
				return fmt.Errorf("reading team roster: %w", err)
			}

			fmt.Fprintf(os.Stdout, "team %s initialized\n", teamID)
			fmt.Fprintf(os.Stdout, "  team room:  %s\n", team.TeamRoom)
			fmt.Fprintf(os.Stdout, "  staff room: %s\n", team.StaffRoom)
			fmt.Fprintf(os.Stdout, "  store:      %s\n", cfg.Store.Path)
			fmt.Fprintf(os.Stdout, "  members:    %d\n", len(members))
			return nil
		},
	}
}
