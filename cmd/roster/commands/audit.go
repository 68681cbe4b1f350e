// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/roster-foundation/roster/cmd/roster/cli"
	"github.com/roster-foundation/roster/lib/audit"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:    "audit",
		Summary: "Inspect the routing audit log",
		Subcommands: []*cli.Command{
			auditTailCommand(),
		},
	}
}

func auditTailCommand() *cli.Command {
	var (
		configPath string
		limit      int
		denied     bool
	)

	return &cli.Command{
		Name:    "tail",
		Summary: "Show the most recent routing decisions",
		Description: `Print the newest entries from the routing audit log, oldest first.

Each line is one inbound message: when it arrived, where from, whom
from, what command it routed to, and how it ended (completed, refused,
or aborted). Use --denied to see only refusals, the usual starting
point when someone reports "the assistant won't listen to me".`,
		Usage: "roster audit tail --config <path> [flags]",
		Examples: []cli.Example{
			{Command: "roster audit tail --config /etc/roster/roster.yaml"},
			{Command: "roster audit tail --config /etc/roster/roster.yaml --denied -n 50"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to roster.yaml (default: $ROSTER_CONFIG)")
			flags.IntVarP(&limit, "limit", "n", 20, "number of entries to show")
			flags.BoolVar(&denied, "denied", false, "show only refused requests")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			entries, err := audit.ReadAll(cfg.Audit.Path)
			if err != nil {
				return fmt.Errorf("reading audit log at %s: %w", cfg.Audit.Path, err)
			}
			if denied {
				filtered := entries[:0]
				for _, entry := range entries {
					if !entry.Allowed && entry.Destination != "" {
						filtered = append(filtered, entry)
					}
				}
				entries = filtered
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stdout, "audit log is empty")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTEAM\tSENDER\tCLASS\tCOMMAND\tMATCH\tOUTCOME\tDETAIL")
			for _, entry := range entries {
				detail := entry.DenyReason
				if detail == "" && entry.Confidence > 0 {
					detail = fmt.Sprintf("confidence %.2f", entry.Confidence)
				}
				destination := entry.Destination
				if destination == "" {
					destination = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Time.Local().Format("2006-01-02 15:04:05"),
					entry.Team,
					entry.Sender,
					entry.Class,
					destination,
					entry.Match,
					entry.Outcome,
					detail,
				)
			}
			return tw.Flush()
		},
	}
}
