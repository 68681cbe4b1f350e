// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves a transport-level sender into the entity
// roles they hold for a team.
//
// A single real-world person may simultaneously be a player and a
// manager of the same team, each role independently unregistered,
// pending, or active. The resolver always checks both roles — never
// short-circuiting — because permission evaluation needs the full
// picture, and the conversation class (not message content) decides
// which role is authoritative for a request.
//
// Store failures are system failures. A resolver that cannot reach the
// store reports the error to its caller; it never substitutes
// "unregistered", because that would let an unverified sender proceed
// as if the answer had actually been looked up.
package identity

import (
	"context"
	"fmt"

	"github.com/roster-foundation/roster/lib/ref"
)

// Role is one of the independent identity facets a sender may hold
// for a team.
type Role int

const (
	// RolePlayer is an ordinary team participant.
	RolePlayer Role = iota

	// RoleManager is a privileged team administrator.
	RoleManager
)

// Roles lists every role, in the order the resolver checks them.
var Roles = []Role{RolePlayer, RoleManager}

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleManager:
		return "manager"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// State is the registration state of one role.
type State int

const (
	// Unregistered means the store has no record of this sender in
	// this role.
	Unregistered State = iota

	// Pending means the sender has started registration but has not
	// been approved. Pending never grants manager-level access; it
	// changes denial messages and may unlock a narrow policy-defined
	// staff subset.
	Pending

	// Active means the registration is complete and approved.
	Active
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Pending:
		return "pending"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolved is the per-request picture of who a sender is for a team.
// It is created fresh for every inbound message and discarded when the
// request completes; nothing in the core caches it.
type Resolved struct {
	// Sender is the transport-level user the message came from.
	Sender ref.UserID

	// Team scopes the resolution. Roles held for one team say nothing
	// about any other team.
	Team ref.TeamID

	// Roles maps each role to its registration state. Both roles are
	// always present.
	Roles map[Role]State
}

// StateOf returns the registration state for a role. Missing entries
// read as Unregistered, though the resolver always populates both.
func (r Resolved) StateOf(role Role) State {
	return r.Roles[role]
}

// Store is the identity-store collaborator. Implementations answer
// "what is this sender's registration state in this role for this
// team?", returning an error — never Unregistered — when the answer
// cannot be determined (store unreachable, corrupt row, timeout).
type Store interface {
	RoleState(ctx context.Context, team ref.TeamID, sender ref.UserID, role Role) (State, error)
}
