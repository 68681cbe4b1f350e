// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"strings"

	"github.com/roster-foundation/roster/lib/authorize"
	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/identity"
)

// Status is the outbound response status.
type Status string

const (
	// StatusOK means a handler produced the reply.
	StatusOK Status = "ok"

	// StatusDenied means the request was refused for an expected
	// reason; Text explains what to do instead.
	StatusDenied Status = "denied"

	// StatusError means the request aborted on a system failure; Text
	// is deliberately generic and the detail lives in the logs.
	StatusError Status = "error"
)

// Response is the outbound reply for one inbound message.
type Response struct {
	// Status is ok, denied, or error.
	Status Status

	// Text is the user-facing reply in Markdown.
	Text string

	// Data carries optional structured payload from the handler.
	Data map[string]any
}

// systemErrorText is the only text an aborted request ever shows the
// sender. Collaborator internals never leak into chat.
const systemErrorText = "Sorry, I'm temporarily unavailable. Please try again in a moment."

// refusal is the internal sum of expected negative outcomes. It
// carries everything needed to phrase the user-facing message; the
// dispatcher converts it into a StatusDenied response.
type refusal struct {
	kind refusalKind
	text string
}

type refusalKind int

const (
	refusalUnknown refusalKind = iota
	refusalWrongClass
	refusalDenied
	refusalValidation
)

// String returns the machine-readable refusal kind for logs and audit.
func (k refusalKind) String() string {
	switch k {
	case refusalUnknown:
		return "unknown_command"
	case refusalWrongClass:
		return "wrong_class"
	case refusalDenied:
		return "permission_denied"
	case refusalValidation:
		return "validation_failure"
	default:
		return "unknown"
	}
}

// unknownCommandRefusal points the sender at /help.
func unknownCommandRefusal() refusal {
	return refusal{
		kind: refusalUnknown,
		text: "I don't recognize that. Send `/help` to see what I can do here.",
	}
}

// wrongClassRefusal names the rooms where the command actually works.
func wrongClassRefusal(definition catalog.Definition) refusal {
	places := make([]string, len(definition.Classes))
	for i, class := range definition.Classes {
		places[i] = class.Describe()
	}
	return refusal{
		kind: refusalWrongClass,
		text: fmt.Sprintf("`/%s` works in %s, not here.", definition.Name, strings.Join(places, " or ")),
	}
}

// validationRefusal shows the usage string.
func validationRefusal(definition catalog.Definition) refusal {
	return refusal{
		kind: refusalValidation,
		text: fmt.Sprintf("That's not quite right. Usage: `%s`", definition.Usage()),
	}
}

// deniedRefusal phrases a permission denial. The message tells the
// sender only things they already know about themselves: their own
// registration state and which room a command belongs in.
func deniedRefusal(result authorize.Result, definition catalog.Definition) refusal {
	var text string
	switch result.Reason {
	case authorize.ReasonNotRegistered:
		if result.Role == identity.RoleManager {
			text = "You need to be a registered manager to do that. Ask an existing manager to add you."
		} else {
			text = "You're not registered as a player yet. Send `/register` to get started."
		}
	case authorize.ReasonPendingApproval:
		if result.Role == identity.RoleManager {
			text = "Your manager registration is still awaiting approval."
		} else {
			text = "Your registration is still awaiting approval — hang tight."
		}
	case authorize.ReasonWrongClass:
		return wrongClassRefusal(definition)
	case authorize.ReasonNotTriggerable:
		text = "That's not something I can do from chat."
	default:
		text = "You're not allowed to do that here."
	}
	return refusal{kind: refusalDenied, text: text}
}
