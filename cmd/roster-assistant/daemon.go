// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/config"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/render"
	"github.com/roster-foundation/roster/lib/teamstore"
	"github.com/roster-foundation/roster/messaging"
)

// assistant owns the /sync loop: it turns sync responses into dispatch
// envelopes, posts the threaded replies, and handles direct-message
// invites. One instance runs per process.
type assistant struct {
	session    *messaging.Session
	dispatcher *dispatch.Dispatcher
	rooms      *dispatch.RoomTable
	store      *teamstore.Store
	teams      []config.TeamConfig
	pendingTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

// syncLoop long-polls the homeserver until the context is cancelled.
// A stream error other than cancellation is fatal: the stream has
// already retried transient failures internally, so whatever reaches
// here needs operator attention.
func (a *assistant) syncLoop(ctx context.Context) error {
	stream, err := messaging.OpenStream(ctx, a.session, a.logger.With("component", "stream"))
	if err != nil {
		return fmt.Errorf("opening sync stream: %w", err)
	}

	for {
		response, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.logger.Info("sync loop stopped")
				return nil
			}
			return fmt.Errorf("sync stream failed: %w", err)
		}
		a.process(ctx, response)
	}
}

// process handles one sync response: invites first, so a DM room is
// bound before any message from it can arrive in a later batch.
func (a *assistant) process(ctx context.Context, response *messaging.SyncResponse) {
	for roomID := range response.Rooms.Invite {
		a.handleInvite(ctx, roomID)
	}
	for roomID, room := range response.Rooms.Join {
		for _, event := range room.Timeline.Events {
			a.handleEvent(ctx, roomID, event)
		}
	}
}

// handleEvent routes one timeline event through the dispatcher and
// posts the reply as a threaded message.
func (a *assistant) handleEvent(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	if event.Sender == a.session.UserID() {
		return
	}
	msgtype, body := event.MessageBody()
	if msgtype != "m.text" || body == "" {
		return
	}
	if _, bound := a.rooms.Classify(roomID); !bound {
		// Messages from rooms the assistant happens to be in but that
		// no team claims. Stay silent rather than refuse.
		a.logger.Debug("ignoring message from unbound room", "room", roomID.String())
		return
	}

	envelope := dispatch.Envelope{
		Room:   roomID,
		Event:  event.EventID,
		Sender: event.Sender,
		Body:   body,
	}
	if name, err := a.session.DisplayName(ctx, event.Sender); err == nil {
		envelope.SenderDisplayName = name
	}

	response, _ := a.dispatcher.Dispatch(ctx, envelope)
	if response.Text == "" {
		return
	}
	a.reply(ctx, roomID, event.ThreadRoot(), response.Text)
}

// reply posts a threaded reply with an HTML rendering of the Markdown
// text. Rendering failures degrade to plain text; send failures are
// logged and dropped, since there is nowhere else to surface them.
func (a *assistant) reply(ctx context.Context, roomID ref.RoomID, threadRoot ref.EventID, text string) {
	var message messaging.MessageContent
	if html, err := render.HTML(text); err == nil {
		message = messaging.NewFormattedThreadReply(threadRoot, text, html)
	} else {
		a.logger.Warn("markdown rendering failed", "error", err)
		message = messaging.NewThreadReply(threadRoot, text)
	}
	if _, err := a.session.SendMessage(ctx, roomID, message); err != nil {
		a.logger.Error("sending reply failed",
			"room", roomID.String(),
			"error", err,
		)
	}
}

// handleInvite accepts a direct-message invite and binds the room to
// the inviter's team. Rooms that turn out not to be two-member DMs are
// left, and a peer who shares no team room with the assistant stays
// unbound (their messages are ignored until they do).
func (a *assistant) handleInvite(ctx context.Context, roomID ref.RoomID) {
	if _, bound := a.rooms.Classify(roomID); bound {
		// Re-invited to a room already bound (e.g. a configured team
		// room); joining is all that is needed.
		if _, err := a.session.JoinRoom(ctx, roomID); err != nil {
			a.logger.Error("joining room failed", "room", roomID.String(), "error", err)
		}
		return
	}

	if _, err := a.session.JoinRoom(ctx, roomID); err != nil {
		a.logger.Error("joining invited room failed", "room", roomID.String(), "error", err)
		return
	}

	members, err := a.session.RoomMembers(ctx, roomID)
	if err != nil {
		a.logger.Error("listing room members failed", "room", roomID.String(), "error", err)
		return
	}
	var peer ref.UserID
	for _, member := range members {
		if member.UserID != a.session.UserID() {
			peer = member.UserID
		}
	}
	if len(members) != 2 || peer.IsZero() {
		a.logger.Warn("declining non-DM invite",
			"room", roomID.String(),
			"members", len(members),
		)
		if err := a.session.LeaveRoom(ctx, roomID); err != nil {
			a.logger.Error("leaving room failed", "room", roomID.String(), "error", err)
		}
		return
	}

	team, err := a.teamOf(ctx, peer)
	if err != nil {
		a.logger.Warn("cannot attribute DM to a team",
			"room", roomID.String(),
			"peer", peer.String(),
			"error", err,
		)
		return
	}
	if err := a.rooms.BindDirect(roomID, team); err != nil {
		a.logger.Error("binding DM room failed", "room", roomID.String(), "error", err)
		return
	}
	a.logger.Info("bound direct-message room",
		"room", roomID.String(),
		"peer", peer.String(),
		"team", team.String(),
	)
}

// teamOf attributes a user to a team by membership in the configured
// team rooms, probing in config order. A single-team deployment skips
// the probe entirely: every DM belongs to the one team.
func (a *assistant) teamOf(ctx context.Context, user ref.UserID) (ref.TeamID, error) {
	if len(a.teams) == 1 {
		return ref.ParseTeamID(a.teams[0].ID)
	}
	for _, team := range a.teams {
		teamRoom, err := ref.ParseRoomID(team.TeamRoom)
		if err != nil {
			continue
		}
		members, err := a.session.RoomMembers(ctx, teamRoom)
		if err != nil {
			return ref.TeamID{}, fmt.Errorf("listing %s members: %w", team.ID, err)
		}
		for _, member := range members {
			if member.UserID == user {
				return ref.ParseTeamID(team.ID)
			}
		}
	}
	return ref.TeamID{}, fmt.Errorf("user %s is in no configured team room", user)
}

// sweepLoop periodically removes pending registrations older than the
// configured TTL.
func (a *assistant) sweepLoop(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(interval):
			removed, err := a.store.SweepStale(ctx, a.pendingTTL)
			if err != nil {
				a.logger.Error("pending sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				a.logger.Info("swept stale pending registrations", "removed", removed)
			}
		}
	}
}
