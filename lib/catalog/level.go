// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import "fmt"

// Level is the permission level a command requires. Levels are not a
// simple hierarchy: LevelPlayer and LevelStaff gate on different
// conversation classes rather than one being a superset of the other.
// The authorize package holds the decision table; this type is just
// the vocabulary.
type Level int

const (
	// LevelPublic commands run for anyone, anywhere the assistant
	// listens. Help and registration entry points live here.
	LevelPublic Level = iota

	// LevelPlayer commands require an active player registration for
	// the team. Usable in the team room and in direct messages.
	LevelPlayer

	// LevelStaff commands require manager standing and are only
	// usable in the staff room. A pending manager may be granted a
	// narrow subset via policy.
	LevelStaff

	// LevelManager commands require a fully active manager and are
	// only usable in the staff room. Pending never qualifies.
	LevelManager

	// LevelSystem commands are internal maintenance entry points.
	// They are never executable from chat, regardless of sender.
	LevelSystem
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelPublic:
		return "public"
	case LevelPlayer:
		return "player"
	case LevelStaff:
		return "staff"
	case LevelManager:
		return "manager"
	case LevelSystem:
		return "system"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Class is the conversation class of the room a message arrived in.
// It is a property of where the message arrived, never of what it
// says: the classifier maps room IDs to classes from per-team
// configuration and ignores message content entirely.
type Class int

const (
	// ClassTeam is the open team room where players and supporters
	// chat.
	ClassTeam Class = iota

	// ClassStaff is the restricted staff room where managers run
	// administrative commands.
	ClassStaff

	// ClassDirect is a one-to-one conversation between a sender and
	// the assistant.
	ClassDirect
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassTeam:
		return "team"
	case ClassStaff:
		return "staff"
	case ClassDirect:
		return "direct"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Describe returns a human-readable room description for user-facing
// guidance messages ("this command works in the staff room").
func (c Class) Describe() string {
	switch c {
	case ClassTeam:
		return "the team room"
	case ClassStaff:
		return "the staff room"
	case ClassDirect:
		return "a direct message"
	default:
		return c.String()
	}
}
