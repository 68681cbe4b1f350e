// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/ref"
)

// ExecutionContext is the envelope handed to a handler: everything it
// needs to act, fully resolved and authorized. Handlers may rely on
// every field being populated — the dispatcher refuses to invoke a
// handler with an incomplete context, so handlers never re-validate
// tenant or sender identity and never fall back to zero-value
// assumptions.
type ExecutionContext struct {
	// Team is the tenant the request is scoped to.
	Team ref.TeamID

	// Sender is the authenticated transport sender.
	Sender ref.UserID

	// SenderDisplayName is never empty; the dispatcher substitutes
	// the localpart when the transport has no display name.
	SenderDisplayName string

	// Class is the conversation class of the originating room.
	Class catalog.Class

	// Identity is the per-request resolution of the sender's roles.
	Identity identity.Resolved

	// Command is the catalog definition being executed.
	Command catalog.Definition

	// Args are the positional arguments, validated against the
	// command's arg spec.
	Args []string
}

// validate checks that every required field is populated. The
// dispatcher calls this immediately before handler invocation; a
// failure is an internal invariant violation, never a user error.
func (ec ExecutionContext) validate() error {
	if ec.Team.IsZero() {
		return fmt.Errorf("execution context: zero team")
	}
	if ec.Sender.IsZero() {
		return fmt.Errorf("execution context: zero sender")
	}
	if ec.SenderDisplayName == "" {
		return fmt.Errorf("execution context: empty sender display name")
	}
	if ec.Command.Name == "" {
		return fmt.Errorf("execution context: empty command")
	}
	if ec.Identity.Sender.IsZero() || ec.Identity.Team.IsZero() {
		return fmt.Errorf("execution context: unresolved identity")
	}
	if ec.Identity.Sender != ec.Sender || ec.Identity.Team != ec.Team {
		return fmt.Errorf("execution context: identity resolved for %s/%s, context is %s/%s",
			ec.Identity.Team, ec.Identity.Sender, ec.Team, ec.Sender)
	}
	for _, role := range identity.Roles {
		if _, present := ec.Identity.Roles[role]; !present {
			return fmt.Errorf("execution context: identity missing %s role state", role)
		}
	}
	return nil
}

// HandlerResult is what a handler returns on success: reply text in
// Markdown, plus optional structured data carried through to the
// response.
type HandlerResult struct {
	// Text is the reply body, rendered as Markdown by the transport
	// layer.
	Text string

	// Data carries machine-readable payload for callers that want
	// more than text (tests, future API surfaces). May be nil.
	Data map[string]any
}

// Handler fulfills one authorized command. Handlers are external
// collaborators from the router's point of view: the dispatcher
// guarantees a complete, authorized ExecutionContext and treats any
// returned error as a system failure, not a user-facing refusal.
// Handlers signal user-visible problems in their result text instead.
type Handler interface {
	Execute(ctx context.Context, ec ExecutionContext) (HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ec ExecutionContext) (HandlerResult, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, ec ExecutionContext) (HandlerResult, error) {
	return f(ctx, ec)
}
