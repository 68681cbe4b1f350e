// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/render"
	"github.com/roster-foundation/roster/messaging"
)

// announcer posts announcements to a team's team room. It backs the
// schedule commands: an announced session shows up where the whole
// team reads, regardless of which room the command came from.
type announcer struct {
	session   *messaging.Session
	teamRooms map[ref.TeamID]ref.RoomID
	logger    *slog.Logger
}

func (a *announcer) Announce(ctx context.Context, team ref.TeamID, text string) error {
	room, ok := a.teamRooms[team]
	if !ok {
		return fmt.Errorf("team %s has no configured team room", team)
	}
	var message messaging.MessageContent
	if html, err := render.HTML(text); err == nil {
		message = messaging.NewFormattedMessage(text, html)
	} else {
		a.logger.Warn("markdown rendering failed", "error", err)
		message = messaging.NewTextMessage(text)
	}
	if _, err := a.session.SendMessage(ctx, room, message); err != nil {
		return fmt.Errorf("announcing to %s: %w", room, err)
	}
	return nil
}
