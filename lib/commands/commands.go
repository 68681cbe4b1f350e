// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands declares the assistant's command set and implements
// the handlers behind it. Each feature contributes a declaration list
// (consumed by the catalog) and a group of handlers (consumed by the
// dispatcher); the split lets the catalog exist before the handlers'
// collaborators do, which the help command needs.
//
// Handlers receive fully authorized execution contexts and respond
// with Markdown. Expected business outcomes (unknown approval code,
// malformed user ID) are reply text; only infrastructure failures are
// returned as errors, which the dispatcher escalates as aborts.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/teamstore"
)

// Announcer posts a message to a team's main room, regardless of
// where the triggering command arrived. The daemon implements it over
// the Matrix session; tests substitute a recorder.
type Announcer interface {
	Announce(ctx context.Context, team ref.TeamID, text string) error
}

// Deps holds the collaborators the handlers share.
type Deps struct {
	// Store is the team state. Required.
	Store *teamstore.Store

	// Catalog is the built command catalog, used by help. Required.
	Catalog *catalog.Catalog

	// Announcer posts session announcements to the team room.
	// Optional; without it, announce only replies in place.
	Announcer Announcer

	// PendingTTL is how long a pending registration lives before
	// sweep removes it. Defaults to 14 days.
	PendingTTL time.Duration

	// Clock supplies time. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives handler-level traces. Defaults to no-op.
	Logger *slog.Logger
}

// Definitions returns every feature's command declarations, ready to
// hand to catalog.New.
func Definitions() [][]catalog.Definition {
	return [][]catalog.Definition{
		coreDefinitions(),
		registrationDefinitions(),
		playersDefinitions(),
		squadsDefinitions(),
		scheduleDefinitions(),
		duesDefinitions(),
	}
}

// Handlers builds the handler registry for every declared command.
func Handlers(deps Deps) (map[string]dispatch.Handler, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("commands: Store is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("commands: Catalog is required")
	}
	if deps.PendingTTL <= 0 {
		deps.PendingTTL = 14 * 24 * time.Hour
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	registry := map[string]dispatch.Handler{}
	for name, handler := range coreHandlers(deps) {
		registry[name] = handler
	}
	for name, handler := range registrationHandlers(deps) {
		registry[name] = handler
	}
	for name, handler := range playersHandlers(deps) {
		registry[name] = handler
	}
	for name, handler := range squadsHandlers(deps) {
		registry[name] = handler
	}
	for name, handler := range scheduleHandlers(deps) {
		registry[name] = handler
	}
	for name, handler := range duesHandlers(deps) {
		registry[name] = handler
	}
	return registry, nil
}

// reply is shorthand for a plain text result.
func reply(format string, args ...any) (dispatch.HandlerResult, error) {
	return dispatch.HandlerResult{Text: fmt.Sprintf(format, args...)}, nil
}

// parseUserArg parses a user-ID argument, returning reply text for
// malformed input. The bool reports success.
func parseUserArg(raw string) (ref.UserID, string, bool) {
	user, err := ref.ParseUserID(raw)
	if err != nil {
		return ref.UserID{}, fmt.Sprintf("`%s` is not a valid user ID — expected something like `@name:server`.", raw), false
	}
	return user, "", true
}

// currentPeriod is the dues period for a point in time ("2026-03").
func currentPeriod(now time.Time) string {
	return now.UTC().Format("2006-01")
}
