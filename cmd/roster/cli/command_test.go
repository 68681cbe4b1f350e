// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(ran *string) *Command {
	return &Command{
		Name:    "roster",
		Summary: "test tree",
		Subcommands: []*Command{
			{
				Name:    "team",
				Summary: "Manage teams",
				Subcommands: []*Command{
					{
						Name:    "init",
						Summary: "Initialize a team",
						Run: func(args []string) error {
							*ran = "team init " + strings.Join(args, " ")
							return nil
						},
					},
				},
			},
			{
				Name:    "version",
				Summary: "Print version",
				Run: func(args []string) error {
					*ran = "version"
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatchesNestedSubcommand(t *testing.T) {
	var ran string
	root := testTree(&ran)
	if err := root.Execute([]string{"team", "init", "riverside-fc"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran != "team init riverside-fc" {
		t.Errorf("ran = %q, want the nested leaf with its args", ran)
	}
}

func TestExecuteSuggestsOnTypo(t *testing.T) {
	var ran string
	root := testTree(&ran)
	err := root.Execute([]string{"tema"})
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), `"team"`) {
		t.Errorf("error does not suggest the close match: %v", err)
	}
	if ran != "" {
		t.Errorf("a command ran despite the typo: %q", ran)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	var ran string
	root := testTree(&ran)
	if err := root.Execute(nil); err == nil {
		t.Fatal("expected an error when a group command gets no subcommand")
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var got string
	command := &Command{
		Name: "tail",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.StringVar(&got, "config", "", "")
			return flags
		},
		Run: func(args []string) error { return nil },
	}
	if err := command.Execute([]string{"--config", "/tmp/roster.yaml"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "/tmp/roster.yaml" {
		t.Errorf("--config = %q, want /tmp/roster.yaml", got)
	}
}

func TestExecuteSuggestsFlagOnTypo(t *testing.T) {
	command := &Command{
		Name: "tail",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.String("config", "", "")
			return flags
		},
		Run: func(args []string) error { return nil },
	}
	err := command.Execute([]string{"--confg", "x"})
	if err == nil {
		t.Fatal("expected an error for an unknown flag")
	}
	if !strings.Contains(err.Error(), "--config") {
		t.Errorf("error does not suggest the close flag: %v", err)
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	var ran string
	root := testTree(&ran)
	var out strings.Builder
	root.PrintHelp(&out)
	help := out.String()
	for _, want := range []string{"team", "version", "Manage teams"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}
