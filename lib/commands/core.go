// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/identity"
)

func coreDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "help",
			Level:   catalog.LevelPublic,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassStaff, catalog.ClassDirect},
			Summary: "Show the commands available in this room.",
			Examples: []string{
				"what can you do",
				"how do I use this",
			},
			Feature: "core",
		},
		{
			Name:    "whoami",
			Level:   catalog.LevelPublic,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassStaff, catalog.ClassDirect},
			Summary: "Show how the assistant sees you: your roles and their states.",
			Examples: []string{
				"am I registered",
				"do you know who I am",
			},
			Feature: "core",
		},
	}
}

func coreHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"help":   dispatch.HandlerFunc(helpHandler(deps)),
		"whoami": dispatch.HandlerFunc(whoamiHandler()),
	}
}

// helpHandler lists the commands visible in the current conversation
// class. System-level commands are never listed; beyond that, help
// does not filter by the sender's roles — seeing a command's name is
// not the same as being allowed to run it, and hiding commands only
// generates "why doesn't /approve exist" questions.
func helpHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		visible := deps.Catalog.VisibleIn(ec.Class)

		var b strings.Builder
		fmt.Fprintf(&b, "Commands available in %s:\n\n", ec.Class.Describe())
		for _, definition := range visible {
			fmt.Fprintf(&b, "- `%s` — %s\n", definition.Usage(), definition.Summary)
		}
		b.WriteString("\nYou can also just ask in plain words and I'll do my best to match a command.")
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

// whoamiHandler reports the sender's resolved roles. It reads only the
// execution context: by the time a handler runs, identity has already
// been resolved once for this request, and asking the store again
// could answer differently.
func whoamiHandler() func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s** (`%s`) with team `%s`:\n\n", ec.SenderDisplayName, ec.Sender, ec.Team)
		for _, role := range identity.Roles {
			fmt.Fprintf(&b, "- %s: %s\n", role, describeState(ec.Identity.StateOf(role)))
		}
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func describeState(state identity.State) string {
	switch state {
	case identity.Active:
		return "active"
	case identity.Pending:
		return "pending approval"
	default:
		return "not registered"
	}
}
