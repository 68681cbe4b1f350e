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
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/teamstore"
)

func registrationDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "register",
			Level:   catalog.LevelPublic,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Args:    []catalog.Arg{{Name: "role"}},
			Summary: "Request to join the team as a player (default) or manager.",
			Examples: []string{
				"I want to join the team",
				"sign me up as a player",
			},
			Feature: "registration",
		},
		{
			Name:    "pending",
			Level:   catalog.LevelStaff,
			Classes: []catalog.Class{catalog.ClassStaff},
			Summary: "List registrations waiting for approval.",
			Examples: []string{
				"who is waiting to be approved",
				"any new signups",
			},
			Feature: "registration",
		},
		{
			Name:    "approve",
			Level:   catalog.LevelManager,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "code", Required: true}, {Name: "note"}},
			Summary: "Approve a pending registration by its code.",
			Examples: []string{
				"approve casey's registration",
			},
			Feature: "registration",
		},
		{
			Name:    "remove",
			Level:   catalog.LevelManager,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "user", Required: true}, {Name: "role"}},
			Summary: "Remove a player or manager from the team.",
			Examples: []string{
				"take casey off the roster",
			},
			Feature: "registration",
		},
		{
			Name:    "sweep",
			Level:   catalog.LevelSystem,
			Classes: []catalog.Class{catalog.ClassDirect},
			Summary: "Expire pending registrations past their deadline.",
			Feature: "registration",
		},
	}
}

func registrationHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"register": dispatch.HandlerFunc(registerHandler(deps)),
		"pending":  dispatch.HandlerFunc(pendingHandler(deps)),
		"approve":  dispatch.HandlerFunc(approveHandler(deps)),
		"remove":   dispatch.HandlerFunc(removeHandler(deps)),
		"sweep":    dispatch.HandlerFunc(sweepHandler(deps)),
	}
}

// parseRole maps a role argument. Empty input defaults to player.
func parseRole(raw string) (identity.Role, bool) {
	switch strings.ToLower(raw) {
	case "", "player":
		return identity.RolePlayer, true
	case "manager":
		return identity.RoleManager, true
	default:
		return identity.RolePlayer, false
	}
}

func registerHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		roleArg := ""
		if len(ec.Args) > 0 {
			roleArg = ec.Args[0]
		}
		role, ok := parseRole(roleArg)
		if !ok {
			return reply("I can register you as a `player` or a `manager`, not `%s`.", roleArg)
		}
		if ec.Identity.StateOf(role) != identity.Unregistered {
			return reply("You already have a %s registration with `%s` (%s).",
				role, ec.Team, describeState(ec.Identity.StateOf(role)))
		}

		code, err := deps.Store.Register(ctx, ec.Team, ec.Sender, role, ec.SenderDisplayName)
		if err != nil {
			if errors.Is(err, teamstore.ErrAlreadyRegistered) {
				// Identity was resolved moments ago, but registration
				// may have raced another message from the same sender.
				return reply("You already have a %s registration with `%s`.", role, ec.Team)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("registering %s: %w", ec.Sender, err)
		}

		return reply("Registration received. A manager can approve you with `/approve %s`.", code)
	}
}

func pendingHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		pending, err := deps.Store.Pending(ctx, ec.Team)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("listing pending registrations: %w", err)
		}
		if len(pending) == 0 {
			return reply("No registrations waiting for approval.")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%d pending registration(s):**\n\n", len(pending))
		for _, registration := range pending {
			fmt.Fprintf(&b, "- %s (`%s`) as %s since %s — approve with `/approve %s`\n",
				registration.DisplayName, registration.User, registration.Role,
				registration.RequestedAt.Format("Jan 2"), registration.Code)
		}
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func approveHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		code := ec.Args[0]
		note := strings.Join(ec.Args[1:], " ")

		approved, err := deps.Store.Approve(ctx, ec.Team, code, ec.Sender, note)
		if err != nil {
			if errors.Is(err, teamstore.ErrCodeNotFound) {
				return reply("No pending registration has the code `%s`. `/pending` lists the open ones.", code)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("approving code %s: %w", code, err)
		}

		return reply("**%s** (`%s`) is now an active %s.",
			approved.DisplayName, approved.User, approved.Role)
	}
}

func removeHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		user, errText, ok := parseUserArg(ec.Args[0])
		if !ok {
			return reply("%s", errText)
		}
		roleArg := ""
		if len(ec.Args) > 1 {
			roleArg = ec.Args[1]
		}
		role, ok := parseRole(roleArg)
		if !ok {
			return reply("The role must be `player` or `manager`, not `%s`.", roleArg)
		}

		if err := deps.Store.Remove(ctx, ec.Team, user, role); err != nil {
			if errors.Is(err, teamstore.ErrNotFound) {
				return reply("`%s` has no %s registration with `%s`.", user, role, ec.Team)
			}
			return dispatch.HandlerResult{}, fmt.Errorf("removing %s: %w", user, err)
		}

		return reply("Removed `%s` as %s.", user, role)
	}
}

// sweepHandler expires stale pending registrations. The sweep command
// is registered so every catalog entry has a handler, but it is
// unreachable from chat; the daemon's maintenance loop sweeps the
// store directly on its own schedule.
func sweepHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		removed, err := deps.Store.SweepStale(ctx, deps.PendingTTL)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("sweeping registrations: %w", err)
		}
		return reply("Swept %d stale registration(s).", removed)
	}
}
