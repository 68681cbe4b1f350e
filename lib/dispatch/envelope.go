// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"sync"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/ref"
)

// Envelope is one inbound chat message as the transport hands it over:
// where it arrived, who sent it, and the raw text. Nothing in the
// envelope is trusted beyond what the homeserver asserts — in
// particular the body plays no part in deciding the conversation
// class.
type Envelope struct {
	// Room is the room the message arrived in.
	Room ref.RoomID

	// Event is the timeline event ID, used to thread the reply.
	Event ref.EventID

	// Sender is the transport-level sender.
	Sender ref.UserID

	// SenderDisplayName is the sender's display name, possibly empty;
	// the dispatcher falls back to the localpart.
	SenderDisplayName string

	// Body is the raw message text.
	Body string
}

// Binding ties a room to the team it belongs to and the conversation
// class messages in it carry.
type Binding struct {
	Team  ref.TeamID
	Class catalog.Class
}

// RoomTable maps room IDs to bindings. Team and staff rooms come from
// per-team configuration at startup; direct-message rooms are bound at
// runtime when the assistant joins them. Classification consults
// nothing but the room ID — this is what makes the conversation class
// unspoofable by message content.
//
// RoomTable is safe for concurrent use.
type RoomTable struct {
	mu       sync.RWMutex
	bindings map[ref.RoomID]Binding
}

// NewRoomTable builds a table from the configured bindings. Returns an
// error if any binding has a zero team or room.
func NewRoomTable(bindings map[ref.RoomID]Binding) (*RoomTable, error) {
	table := &RoomTable{bindings: make(map[ref.RoomID]Binding, len(bindings))}
	for room, binding := range bindings {
		if room.IsZero() {
			return nil, fmt.Errorf("dispatch: room table has zero room ID")
		}
		if binding.Team.IsZero() {
			return nil, fmt.Errorf("dispatch: room %s bound to zero team", room)
		}
		table.bindings[room] = binding
	}
	return table, nil
}

// Classify returns the binding for a room. The boolean is false for
// rooms the assistant has no binding for; the transport layer should
// not feed such rooms to the dispatcher.
func (t *RoomTable) Classify(room ref.RoomID) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	binding, ok := t.bindings[room]
	return binding, ok
}

// BindDirect registers a direct-message room for a team. Called when
// the assistant accepts a DM invite. Re-binding an already-bound room
// is an error — a room's class never changes.
func (t *RoomTable) BindDirect(room ref.RoomID, team ref.TeamID) error {
	if room.IsZero() || team.IsZero() {
		return fmt.Errorf("dispatch: BindDirect with zero room or team")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, bound := t.bindings[room]; bound {
		return fmt.Errorf("dispatch: room %s already bound as %s for team %s",
			room, existing.Class, existing.Team)
	}
	t.bindings[room] = Binding{Team: team, Class: catalog.ClassDirect}
	return nil
}
