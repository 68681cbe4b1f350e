// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorize decides whether a resolved sender may execute a
// command in the conversation class the message arrived in.
//
// Evaluation is a decision table over (required level, conversation
// class, role states), not an if/else chain, so the full rule set is
// auditable in one place and testable row by row:
//
//	level    | team room            | staff room                 | direct
//	---------+----------------------+----------------------------+--------------------
//	public   | allow                | allow                      | allow
//	player   | active player        | deny                       | active player
//	staff    | deny                 | active manager, or pending | deny
//	         |                      | manager via policy list    |
//	manager  | deny                 | active manager             | deny
//	system   | deny                 | deny                       | deny
//
// Roles are never inherited across conversation classes: an active
// manager with no player registration is denied player commands in the
// team room. The conversation class picks which role is authoritative;
// nothing about the message text does.
package authorize

import (
	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/identity"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	// Deny means the command must not execute.
	Deny Decision = iota

	// Allow means the command may execute.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a permission check was denied. The reason
// selects the user-facing message: registration prompts for
// unregistered senders, approval reminders for pending ones, room
// guidance for class mismatches. Internal role details beyond what the
// sender already knows about themselves are never exposed.
type DenyReason int

const (
	// ReasonNotRegistered means the authoritative role for this
	// conversation class has no registration at all.
	ReasonNotRegistered DenyReason = iota

	// ReasonPendingApproval means the authoritative role is
	// registered but awaiting approval.
	ReasonPendingApproval

	// ReasonWrongClass means the required level can never be
	// exercised in this conversation class, regardless of who asks.
	ReasonWrongClass

	// ReasonNotTriggerable means the level is internal (system) and
	// no chat message can ever reach it.
	ReasonNotTriggerable
)

// String returns a short machine-readable reason name for logging.
func (r DenyReason) String() string {
	switch r {
	case ReasonNotRegistered:
		return "not_registered"
	case ReasonPendingApproval:
		return "pending_approval"
	case ReasonWrongClass:
		return "wrong_class"
	case ReasonNotTriggerable:
		return "not_triggerable"
	default:
		return "unknown"
	}
}

// Result is the outcome of Evaluate: the decision plus, when denied,
// the reason and the role the rule evaluated.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason is meaningful only when Decision is Deny.
	Reason DenyReason

	// Role is the entity role the decisive rule consulted. Zero value
	// (player) for rows that consult no role, such as system denials.
	Role identity.Role
}

// Policy holds the configurable knobs of the decision table.
type Policy struct {
	// PendingStaffCommands lists command names a PENDING manager may
	// run at the staff level. Empty means pending grants nothing.
	// This never applies to manager-level commands.
	PendingStaffCommands []string
}

// allowsPending reports whether the policy grants a pending manager
// the named staff-level command.
func (p Policy) allowsPending(commandName string) bool {
	for _, name := range p.PendingStaffCommands {
		if name == commandName {
			return true
		}
	}
	return false
}

// Evaluate applies the decision table. commandName is consulted only
// for the pending-manager staff override; everything else depends on
// the required level, the conversation class, and the resolved role
// states.
func Evaluate(policy Policy, required catalog.Level, resolved identity.Resolved, class catalog.Class, commandName string) Result {
	switch required {
	case catalog.LevelPublic:
		return Result{Decision: Allow}

	case catalog.LevelPlayer:
		if class == catalog.ClassStaff {
			return Result{Decision: Deny, Reason: ReasonWrongClass, Role: identity.RolePlayer}
		}
		return playerRule(resolved)

	case catalog.LevelStaff:
		if class != catalog.ClassStaff {
			return Result{Decision: Deny, Reason: ReasonWrongClass, Role: identity.RoleManager}
		}
		return staffRule(policy, resolved, commandName)

	case catalog.LevelManager:
		if class != catalog.ClassStaff {
			return Result{Decision: Deny, Reason: ReasonWrongClass, Role: identity.RoleManager}
		}
		return managerRule(resolved)

	case catalog.LevelSystem:
		return Result{Decision: Deny, Reason: ReasonNotTriggerable}

	default:
		// Unknown levels deny closed. A catalog that produced one is
		// misconfigured, and the dispatcher escalates separately.
		return Result{Decision: Deny, Reason: ReasonNotTriggerable}
	}
}

// playerRule: player commands need an active player registration. The
// manager role is deliberately not consulted — no role inheritance.
func playerRule(resolved identity.Resolved) Result {
	switch resolved.StateOf(identity.RolePlayer) {
	case identity.Active:
		return Result{Decision: Allow, Role: identity.RolePlayer}
	case identity.Pending:
		return Result{Decision: Deny, Reason: ReasonPendingApproval, Role: identity.RolePlayer}
	default:
		return Result{Decision: Deny, Reason: ReasonNotRegistered, Role: identity.RolePlayer}
	}
}

// staffRule: staff commands need an active manager, or a pending
// manager when the policy lists the command.
func staffRule(policy Policy, resolved identity.Resolved, commandName string) Result {
	switch resolved.StateOf(identity.RoleManager) {
	case identity.Active:
		return Result{Decision: Allow, Role: identity.RoleManager}
	case identity.Pending:
		if policy.allowsPending(commandName) {
			return Result{Decision: Allow, Role: identity.RoleManager}
		}
		return Result{Decision: Deny, Reason: ReasonPendingApproval, Role: identity.RoleManager}
	default:
		return Result{Decision: Deny, Reason: ReasonNotRegistered, Role: identity.RoleManager}
	}
}

// managerRule: manager commands need an active manager. Pending only
// changes the denial message.
func managerRule(resolved identity.Resolved) Result {
	switch resolved.StateOf(identity.RoleManager) {
	case identity.Active:
		return Result{Decision: Allow, Role: identity.RoleManager}
	case identity.Pending:
		return Result{Decision: Deny, Reason: ReasonPendingApproval, Role: identity.RoleManager}
	default:
		return Result{Decision: Deny, Reason: ReasonNotRegistered, Role: identity.RoleManager}
	}
}
