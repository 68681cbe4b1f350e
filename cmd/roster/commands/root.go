// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the roster admin CLI tree. These commands
// operate directly on the team store and audit log, or against the
// homeserver; they are for operators, not for chat.
package commands

import (
	"fmt"
	"os"

	"github.com/roster-foundation/roster/cmd/roster/cli"
	"github.com/roster-foundation/roster/lib/version"
)

// Root returns the top-level "roster" command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "roster",
		Summary: "Operate a roster assistant deployment",
		Description: `roster is the operator tool for the roster assistant: direct team
store and audit log access, plus homeserver login for provisioning the
assistant's access token. Conversational operations (registration,
approval, scheduling) happen in chat; this tool covers what has to
happen before the assistant can hold that conversation, or outside it.`,
		Subcommands: []*cli.Command{
			teamCommand(),
			managerCommand(),
			auditCommand(),
			loginCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			fmt.Fprintf(os.Stdout, "roster %s\n", version.Info())
			return nil
		},
	}
}
