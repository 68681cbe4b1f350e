// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/teamstore"
)

// sessionTimeLayouts are the accepted forms of the announce time
// argument, tried in order.
var sessionTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02",
}

func scheduleDefinitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Name:    "schedule",
			Level:   catalog.LevelPlayer,
			Classes: []catalog.Class{catalog.ClassTeam, catalog.ClassDirect},
			Summary: "Show upcoming sessions.",
			Examples: []string{
				"when is the next training",
				"what's coming up this week",
			},
			Feature: "schedule",
		},
		{
			Name:    "announce",
			Level:   catalog.LevelStaff,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "when", Required: true}, {Name: "title", Required: true}},
			Summary: "Schedule a session and announce it in the team room.",
			Examples: []string{
				"announce training for tuesday evening",
			},
			Feature: "schedule",
		},
		{
			Name:    "cancel",
			Level:   catalog.LevelManager,
			Classes: []catalog.Class{catalog.ClassStaff},
			Args:    []catalog.Arg{{Name: "session", Required: true}},
			Summary: "Cancel a scheduled session by its number.",
			Examples: []string{
				"cancel tuesday's training",
			},
			Feature: "schedule",
		},
	}
}

func scheduleHandlers(deps Deps) map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"schedule": dispatch.HandlerFunc(scheduleHandler(deps)),
		"announce": dispatch.HandlerFunc(announceHandler(deps)),
		"cancel":   dispatch.HandlerFunc(cancelHandler(deps)),
	}
}

func scheduleHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		sessions, err := deps.Store.UpcomingSessions(ctx, ec.Team)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			return reply("Nothing scheduled.")
		}

		var b strings.Builder
		b.WriteString("**Upcoming sessions:**\n\n")
		for _, session := range sessions {
			fmt.Fprintf(&b, "- #%d **%s** — %s\n",
				session.ID, session.Title, session.StartsAt.Format("Mon Jan 2, 15:04 MST"))
		}
		return dispatch.HandlerResult{Text: b.String()}, nil
	}
}

func parseSessionTime(raw string) (time.Time, bool) {
	for _, layout := range sessionTimeLayouts {
		if when, err := time.Parse(layout, raw); err == nil {
			return when.UTC(), true
		}
	}
	return time.Time{}, false
}

func announceHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		when, ok := parseSessionTime(ec.Args[0])
		if !ok {
			return reply("I couldn't read `%s` as a time — use `2026-03-14T18:00` or `2026-03-14`.", ec.Args[0])
		}
		if when.Before(deps.Clock.Now()) {
			return reply("`%s` is in the past.", ec.Args[0])
		}
		title := strings.Join(ec.Args[1:], " ")

		session, err := deps.Store.ScheduleSession(ctx, ec.Team, title, when, ec.Sender)
		if err != nil {
			return dispatch.HandlerResult{}, fmt.Errorf("scheduling session: %w", err)
		}

		announcement := fmt.Sprintf("**%s** — %s. Session #%d.",
			session.Title, session.StartsAt.Format("Mon Jan 2, 15:04 MST"), session.ID)
		if deps.Announcer != nil {
			if err := deps.Announcer.Announce(ctx, ec.Team, announcement); err != nil {
				return dispatch.HandlerResult{}, fmt.Errorf("announcing session %d: %w", session.ID, err)
			}
		}

		return reply("Scheduled and announced: %s", announcement)
	}
}

func cancelHandler(deps Deps) func(context.Context, dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
	return func(ctx context.Context, ec dispatch.ExecutionContext) (dispatch.HandlerResult, error) {
		raw := strings.TrimPrefix(ec.Args[0], "#")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reply("`%s` is not a session number — `/schedule` shows them.", ec.Args[0])
		}

		session, err := deps.Store.CancelSession(ctx, ec.Team, id)
		if err != nil {
			switch {
			case errors.Is(err, teamstore.ErrNotFound):
				return reply("No session #%d.", id)
			case errors.Is(err, teamstore.ErrSessionCancelled):
				return reply("Session #%d is already cancelled.", id)
			default:
				return dispatch.HandlerResult{}, fmt.Errorf("cancelling session %d: %w", id, err)
			}
		}

		notice := fmt.Sprintf("**Cancelled:** %s (%s).",
			session.Title, session.StartsAt.Format("Mon Jan 2, 15:04 MST"))
		if deps.Announcer != nil {
			if err := deps.Announcer.Announce(ctx, ec.Team, notice); err != nil {
				return dispatch.HandlerResult{}, fmt.Errorf("announcing cancellation of session %d: %w", id, err)
			}
		}
		return reply("%s", notice)
	}
}
