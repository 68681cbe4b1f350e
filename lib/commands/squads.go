// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/teamstore"
)

func squadsDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "squad",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Summary: "Show the squad lineups.",
			Examples: []string{
				"what squad am I in",
				"show the lineups",
			},
			Feature: "squads",
		},
		{
			Name:    "assign",
			Level:   catalog.LevelStaff,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "user", Required: true}, {Name: "squad", Required: true}},
			Summary: "Place a player in a squad.",
			Examples: []string{
				"put casey in the first squad",
			},
			Feature: "squads",
		},
		{
			Name:    "unassign",
			Level:   catalog.LevelStaff,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "user", Required: true}},
			Summary: "Remove a player from their squad.",
			Examples: []string{
				"take casey out of the squad",
			},
			Feature: "squads",
		},
	}
}

func squadsHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"squad":    dispatch.HandlerFunc(squadHandler(deps)),
		"assign":   dispatch.HandlerFunc(assignHandler(deps)),
		"unassign": dispatch.HandlerFunc(unassignHandler(deps)),
	}
}

func squadHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		members, err := deps.Store.Members(ctx, ec.Team)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("listing members: %w", err)
		}

		squads := map[string][]teamstore.Member{}
		for _, member := range members {
			if member.Squad == "" {
				continue
			}
			squads[member.Squad] = append(squads[member.Squad], member)
		}
		if len(squads) == 0 {
			return reply("No squad assignments yet.")
		}

		names := make([]string, 0, len(squads))
		for name := range squads {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		for _, name := range names {
			fmt.Fprintf(&b, "**%s squad:**\n", name)
			for _, member := range squads[name] {
				fmt.Fprintf(&b, "- %s\n", member.DisplayName)
			}
			b.WriteString("\n")
		}
		return dispatch.HandlerResult{Text: strings.TrimRight(b.String(), "\n")}, nil
	}
}

func assignHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		user, errText, ok := parseUserArg(ec.Args[0])
		if !ok {
			return reply("%s", errText)
		}
		squad := strings.Join(ec.Args[1:], " ")

		if err := deps.Store.AssignSquad(ctx, ec.Team, user, squad); err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("`%s` is not an active player.", user)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("assigning squad: %w", err)
		}
		return reply("Assigned `%s` to the **%s** squad.", user, squad)
	}
}

func unassignHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		user, errText, ok := parseUserArg(ec.Args[0])
		if !ok {
			return reply("%s", errText)
		}
		if err := deps.Store.AssignSquad(ctx, ec.Team, user, ""); err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("`%s` is not an active player.", user)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("clearing squad: %w", err)
		}
		return reply("Removed `%s` from their squad.", user)
	}
}
