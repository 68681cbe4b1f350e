// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"team", "", 4},
		{"team", "team", 0},
		{"tema", "team", 2},
		{"audit", "audi", 1},
		{"manager", "manger", 1},
		{"login", "audit", 5},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "team"},
		{Name: "manager"},
		{Name: "audit"},
	}
	if got := suggestCommand("manger", commands); got != "manager" {
		t.Errorf("suggestCommand(manger) = %q, want manager", got)
	}
	if got := suggestCommand("zzzzzzzz", commands); got != "" {
		t.Errorf("suggestCommand(zzzzzzzz) = %q, want no suggestion", got)
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.Int("limit", 0, "")

	if got := suggestFlag([]string{"--confg", "x"}, flags); got != "--config" {
		t.Errorf("suggestFlag(--confg) = %q, want --config", got)
	}
	// A defined flag earlier in args must not mask the typo after it.
	if got := suggestFlag([]string{"--config", "x", "--limt", "3"}, flags); got != "--limit" {
		t.Errorf("suggestFlag(--limt) = %q, want --limit", got)
	}
	if got := suggestFlag([]string{"positional"}, flags); got != "" {
		t.Errorf("suggestFlag(positional) = %q, want none", got)
	}
}
