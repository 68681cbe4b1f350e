// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/ref"
)

// MatchKind records how an inbound message was mapped to a command.
type MatchKind int

const (
	// MatchNone means no command matched (unknown command outcome).
	MatchNone MatchKind = iota

	// MatchLiteral means the message was a recognized /command.
	MatchLiteral

	// MatchInferred means the intent classifier mapped free text to
	// the command; Confidence carries the model's score.
	MatchInferred
)

// String returns the lowercase match kind name.
func (k MatchKind) String() string {
	switch k {
	case MatchLiteral:
		return "literal"
	case MatchInferred:
		return "inferred"
	default:
		return "none"
	}
}

// Outcome is the terminal state of a dispatch. Exactly one of the
// three applies to every inbound message; there is no catch-all path
// that quietly converts one into another.
type Outcome int

const (
	// OutcomeCompleted means a handler ran and produced a result.
	OutcomeCompleted Outcome = iota

	// OutcomeRefused covers the expected negatives: unknown command,
	// denied permission, validation failure. The sender gets a
	// helpful message.
	OutcomeRefused

	// OutcomeAborted covers system failures: a required collaborator
	// was unreachable or an internal invariant broke. The sender gets
	// a generic message; the detail goes to the log at error level.
	OutcomeAborted
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRefused:
		return "refused"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RoutingDecision is the audit record of one dispatch: constructed
// once per inbound message, immutable after the dispatcher returns,
// recorded and then discarded. It never holds message content — only
// routing metadata.
type RoutingDecision struct {
	// Time is when the message entered the pipeline.
	Time time.Time `json:"time"`

	// Team, Room, Sender locate the request.
	Team   ref.TeamID `json:"team"`
	Room   ref.RoomID `json:"room"`
	Sender ref.UserID `json:"sender"`

	// Class is the conversation class the room classified to.
	Class catalog.Class `json:"class"`

	// Destination is the command name the message routed to; empty
	// when no command matched.
	Destination string `json:"destination,omitempty"`

	// Match records how the destination was found.
	Match MatchKind `json:"match"`

	// Confidence is the classifier's score for inferred matches;
	// zero for literal ones.
	Confidence float64 `json:"confidence,omitempty"`

	// Allowed is the permission decision. False covers both explicit
	// denials and requests that never reached evaluation.
	Allowed bool `json:"allowed"`

	// DenyReason is the machine-readable denial reason, empty when
	// allowed.
	DenyReason string `json:"deny_reason,omitempty"`

	// Outcome is the terminal pipeline state.
	Outcome Outcome `json:"outcome"`

	// Elapsed is the total pipeline duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Auditor records routing decisions. The dispatcher calls Record
// exactly once per inbound message, after the decision is final.
// Implementations must not block for long — recording happens on the
// request path.
type Auditor interface {
	Record(decision RoutingDecision)
}
