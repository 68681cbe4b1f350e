// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/teamstore"
)

func playersDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "list",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Summary: "List the team's active players.",
			Examples: []string{
				"who is on the team",
				"can you show me the players",
			},
			Feature: "players",
		},
		{
			Name:    "profile",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Args:    []catalog.Arg{{Name: "position"}},
			Summary: "Show your profile, or set your position.",
			Examples: []string{
				"what's my profile",
				"set my position to keeper",
			},
			Feature: "players",
		},
		{
			Name:    "available",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Args:    []catalog.Arg{{Name: "note", Required: true}},
			Summary: "Record when you're available to play.",
			Examples: []string{
				"I can only make weekends",
				"mark me available tuesdays",
			},
			Feature: "players",
		},
	}
}

func playersHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"list":      dispatch.HandlerFunc(listHandler(deps)),
		"profile":   dispatch.HandlerFunc(profileHandler(deps)),
		"available": dispatch.HandlerFunc(availableHandler(deps)),
	}
}

func listHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		members, err := deps.Store.Members(ctx, ec.Team)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("listing members: %w", err)
		}
		if len(members) == 0 {
			return reply("No active players yet. `/register` starts a registration.")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%d active player(s):**\n\n", len(members))
		for _, member := range members {
			fmt.Fprintf(&b, "- **%s**", member.DisplayName)
			if member.Position != "" {
				fmt.Fprintf(&b, " — %s", member.Position)
			}
			if member.Squad != "" {
				fmt.Fprintf(&b, " (%s squad)", member.Squad)
			}
			b.WriteString("\n")
		}
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func profileHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		if len(ec.Args) > 0 {
			position := strings.Join(ec.Args, " ")
			if err := deps.Store.SetPosition(ctx, ec.Team, ec.Sender, position); err != nil {
				if errors.Is(err, teamstore.ErrNotFound) {
					return reply("You don't have a player profile yet — it is created when your registration is approved.")
				}
				return dispatch.HandlerResult{}, fmt.Errorf("setting position: %w", err)
			}
			return reply("Position set to **%s**.", position)
		}

		member, err := deps.Store.Member(ctx, ec.Team, ec.Sender)
		if err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("You don't have a player profile yet — it is created when your registration is approved.")
			}
			return dispatch.HandlerResult{}, fmt.Errorf("reading profile: %w", err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%s**\n\n", member.DisplayName)
		fmt.Fprintf(&b, "- position: %s\n", orUnset(member.Position))
		fmt.Fprintf(&b, "- availability: %s\n", orUnset(member.Availability))
		fmt.Fprintf(&b, "- squad: %s\n", orUnset(member.Squad))
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func availableHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		note := strings.Join(ec.Args, " ")
		if err := deps.Store.SetAvailability(ctx, ec.Team, ec.Sender, note); err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("You don't have a player profile yet — it is created when your registration is approved.")
			}
			return dispatch.HandlerResult{}, fmt.Errorf("setting availability: %w", err)
		}
		return reply("Availability noted: %s", note)
	}
}

func orUnset(value string) string {
	if value == "" {
		return "_not set_"
	}
	return value
}
