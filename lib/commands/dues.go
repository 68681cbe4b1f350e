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

func duesDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "dues",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Args:    []catalog.Arg{{Name: "period"}},
			Summary: "Show who has paid dues for the period (default: this month).",
			Examples: []string{
				"who still owes dues",
				"did I pay this month",
			},
			Feature: "dues",
		},
		{
			Name:    "paid",
			Level:   catalog.LevelManager,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "user", Required: true}, {Name: "period"}},
			Summary: "Mark a player's dues as paid.",
			Examples: []string{
				"casey paid their dues",
			},
			Feature: "dues",
		},
	}
}

func duesHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"dues": dispatch.HandlerFunc(duesHandler(deps)),
		"paid": dispatch.HandlerFunc(paidHandler(deps)),
	}
}

func duesHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		period := currentPeriod(deps.Clock.Now())
		if len(ec.Args) > 0 {
			period = ec.Args[0]
		}

		statuses, err := deps.Store.Dues(ctx, ec.Team, period)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("reading dues: %w", err)
		}
		if len(statuses) == 0 {
			return reply("No active players to collect from.")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**Dues for %s:**\n\n", period)
		for _, status := range statuses {
			if status.Paid {
				fmt.Fprintf(&b, "- %s — paid %s\n", status.DisplayName, status.PaidAt.Format("Jan 2"))
			} else {
				fmt.Fprintf(&b, "- %s — **outstanding**\n", status.DisplayName)
			}
		}
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func paidHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		user, errText, ok := parseUserArg(ec.Args[0])
		if !ok {
			return reply("%s", errText)
		}
		period := currentPeriod(deps.Clock.Now())
		if len(ec.Args) > 1 {
			period = ec.Args[1]
		}

		if err := deps.Store.MarkPaid(ctx, ec.Team, user, period, ec.Sender); err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("`%s` is not an active player.", user)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("marking dues paid: %w", err)
		}
		return reply("Marked `%s` as paid for %s.", user, period)
	}
}
