// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roster-foundation/roster/lib/authorize"
	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/intent"
	"github.com/roster-foundation/roster/lib/ref"
)

// commandMarker prefixes literal commands. Anything else is free text
// for the intent classifier.
const commandMarker = "/"

// IdentityResolver is the identity collaborator the dispatcher
// depends on. lib/identity.Resolver satisfies it.
type IdentityResolver interface {
	Resolve(ctx context.Context, team ref.TeamID, sender ref.UserID) (identity.Resolved, error)
}

// IntentClassifier is the free-text collaborator. lib/intent.Classifier
// satisfies it. A nil classifier disables free-text routing entirely;
// free text then refuses as unknown.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, redacted identity.Redacted, class catalog.Class) ([]intent.Candidate, error)
}

// Config holds the dispatcher's collaborators and knobs.
type Config struct {
	// Catalog is the immutable command catalog. Required.
	Catalog *catalog.Catalog

	// Rooms maps rooms to teams and conversation classes. Required.
	Rooms *RoomTable

	// Resolver resolves sender identities. Required.
	Resolver IdentityResolver

	// Handlers maps every catalog command name to its handler.
	// Required; a catalog command without a handler fails New.
	Handlers map[string]Handler

	// Policy configures the permission decision table.
	Policy authorize.Policy

	// Intents classifies free text. Optional; nil disables free-text
	// routing.
	Intents IntentClassifier

	// Redactor digests sender identities before they reach the
	// classifier prompt. Required when Intents is set.
	Redactor *identity.Redactor

	// Auditor records routing decisions. Optional.
	Auditor Auditor

	// Timeout bounds the whole pipeline per request. Defaults to 30s.
	Timeout time.Duration

	// Clock supplies time. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives pipeline traces. Defaults to no-op.
	Logger *slog.Logger
}

// Dispatcher runs the routing pipeline for inbound messages. It holds
// no per-request state; all per-request values live on the stack of
// Dispatch, so concurrent calls are independent.
type Dispatcher struct {
	catalog  *catalog.Catalog
	rooms    *RoomTable
	resolver IdentityResolver
	handlers map[string]Handler
	policy   authorize.Policy
	intents  IntentClassifier
	redactor *identity.Redactor
	auditor  Auditor
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// New validates the configuration and builds a Dispatcher. Every
// command in the catalog must have a handler — a missing handler is a
// configuration error that prevents startup, mirroring the catalog's
// own duplicate-name check.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("dispatch: Catalog is required")
	}
	if cfg.Rooms == nil {
		return nil, fmt.Errorf("dispatch: Rooms is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("dispatch: Resolver is required")
	}
	for _, name := range cfg.Catalog.Names() {
		if _, ok := cfg.Handlers[name]; !ok {
			return nil, fmt.Errorf("dispatch: command %q has no handler", name)
		}
	}
	for name := range cfg.Handlers {
		if _, ok := cfg.Catalog.Get(name); !ok {
			return nil, fmt.Errorf("dispatch: handler %q has no catalog entry", name)
		}
	}
	if cfg.Intents != nil && cfg.Redactor == nil {
		return nil, fmt.Errorf("dispatch: Redactor is required when Intents is set")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Dispatcher{
		catalog:  cfg.Catalog,
		rooms:    cfg.Rooms,
		resolver: cfg.Resolver,
		handlers: cfg.Handlers,
		policy:   cfg.Policy,
		intents:  cfg.Intents,
		redactor: cfg.Redactor,
		auditor:  cfg.Auditor,
		timeout:  timeout,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Dispatch runs one inbound message through the pipeline and returns
// the outbound response alongside the routing decision. It never
// returns an error: system failures become StatusError responses with
// the detail logged at error level, and the decision records which of
// the three outcomes occurred.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope Envelope) (Response, RoutingDecision) {
	start := d.clock.Now()
	decision := RoutingDecision{
		Time:   start,
		Room:   envelope.Room,
		Sender: envelope.Sender,
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	response, err := d.run(ctx, envelope, &decision)
	if err != nil {
		// System failure: the one place expected and unexpected paths
		// part ways. Never downgraded into a refusal.
		decision.Outcome = OutcomeAborted
		d.logger.Error("dispatch aborted",
			"room", envelope.Room.String(),
			"sender", envelope.Sender.String(),
			"destination", decision.Destination,
			"error", err,
		)
		response = Response{Status: StatusError, Text: systemErrorText}
	}

	decision.Elapsed = d.clock.Now().Sub(start)
	if d.auditor != nil {
		d.auditor.Record(decision)
	}

	d.logger.Info("dispatch finished",
		"room", envelope.Room.String(),
		"sender", envelope.Sender.String(),
		"class", decision.Class.String(),
		"destination", decision.Destination,
		"match", decision.Match.String(),
		"outcome", decision.Outcome.String(),
		"elapsed", decision.Elapsed,
	)
	return response, decision
}

// run is the pipeline proper. A returned error means ABORT; a refusal
// converts into a denied response right here. The two paths never
// cross: there is no branch that turns an error into a refusal.
func (d *Dispatcher) run(ctx context.Context, envelope Envelope, decision *RoutingDecision) (Response, error) {
	if envelope.Room.IsZero() || envelope.Sender.IsZero() {
		return Response{}, fmt.Errorf("envelope missing room or sender")
	}

	// Classify: room metadata only.
	binding, bound := d.rooms.Classify(envelope.Room)
	if !bound {
		// The transport must only feed bound rooms; an unbound room
		// reaching the pipeline is a wiring bug, not a user mistake.
		return Response{}, fmt.Errorf("room %s has no binding", envelope.Room)
	}
	decision.Team = binding.Team
	decision.Class = binding.Class

	// Identify: both roles, always, before anything message-derived.
	resolved, err := d.resolver.Resolve(ctx, binding.Team, envelope.Sender)
	if err != nil {
		return Response{}, fmt.Errorf("resolving identity: %w", err)
	}

	// Match: literal command or inferred intent.
	definition, args, matchRefusal, err := d.match(ctx, envelope.Body, resolved, binding.Class, decision)
	if err != nil {
		return Response{}, err
	}
	if matchRefusal != nil {
		return d.refuse(*matchRefusal, decision), nil
	}

	// Authorize: the decision table.
	result := authorize.Evaluate(d.policy, definition.Level, resolved, binding.Class, definition.Name)
	decision.Allowed = result.Decision == authorize.Allow
	if result.Decision != authorize.Allow {
		decision.DenyReason = result.Reason.String()
		return d.refuse(deniedRefusal(result, definition), decision), nil
	}

	// Validate arguments only after the sender proved they may run
	// the command at all.
	if len(args) < definition.RequiredArgs() {
		return d.refuse(validationRefusal(definition), decision), nil
	}

	displayName := envelope.SenderDisplayName
	if displayName == "" {
		displayName = envelope.Sender.Localpart()
	}

	executionContext := ExecutionContext{
		Team:              binding.Team,
		Sender:            envelope.Sender,
		SenderDisplayName: displayName,
		Class:             binding.Class,
		Identity:          resolved,
		Command:           definition,
		Args:              args,
	}
	if err := executionContext.validate(); err != nil {
		return Response{}, fmt.Errorf("refusing dispatch: %w", err)
	}

	handler, registered := d.handlers[definition.Name]
	if !registered {
		// New() guarantees this; reaching it means the registry was
		// mutated after startup.
		return Response{}, fmt.Errorf("no handler registered for %q", definition.Name)
	}

	handled, err := handler.Execute(ctx, executionContext)
	if err != nil {
		return Response{}, fmt.Errorf("handler %q: %w", definition.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("pipeline deadline: %w", err)
	}

	decision.Outcome = OutcomeCompleted
	return Response{Status: StatusOK, Text: handled.Text, Data: handled.Data}, nil
}

// match maps the message body to a catalog definition. Returns exactly
// one of: a definition (with args), a refusal, or an error. Literal
// commands that miss the catalog fall through to the intent
// classifier, so "/aprove" and "approve my player please" share one
// path to either an inferred command or an unknown-command refusal.
func (d *Dispatcher) match(ctx context.Context, body string, resolved identity.Resolved, class catalog.Class, decision *RoutingDecision) (catalog.Definition, []string, *refusal, error) {
	trimmed := strings.TrimSpace(body)

	if name, args, isLiteral := parseCommand(trimmed); isLiteral {
		definition, status := d.catalog.Lookup(name, class)
		switch status {
		case catalog.Found:
			decision.Destination = definition.Name
			decision.Match = MatchLiteral
			return definition, args, nil, nil
		case catalog.WrongClass:
			decision.Destination = definition.Name
			decision.Match = MatchLiteral
			decision.DenyReason = authorize.ReasonWrongClass.String()
			r := wrongClassRefusal(definition)
			return catalog.Definition{}, nil, &r, nil
		}
		// NotFound: fall through to intent.
	}

	if d.intents == nil || trimmed == "" {
		r := unknownCommandRefusal()
		return catalog.Definition{}, nil, &r, nil
	}

	candidates, err := d.intents.Classify(ctx, trimmed, d.redactor.Redact(resolved), class)
	if err != nil {
		// A broken or slow model degrades free text to "unrecognized"
		// instead of taking the router down. This is the one
		// collaborator failure that is not escalated; identity-store
		// and handler failures always abort.
		d.logger.Warn("intent classification failed",
			"class", class.String(),
			"error", err,
		)
		r := unknownCommandRefusal()
		return catalog.Definition{}, nil, &r, nil
	}

	for _, candidate := range candidates {
		definition, known := d.catalog.Get(candidate.Command)
		if !known {
			continue
		}
		if !definition.AllowedIn(class) {
			decision.Destination = definition.Name
			decision.Match = MatchInferred
			decision.Confidence = candidate.Confidence
			decision.DenyReason = authorize.ReasonWrongClass.String()
			r := wrongClassRefusal(definition)
			return catalog.Definition{}, nil, &r, nil
		}
		decision.Destination = definition.Name
		decision.Match = MatchInferred
		decision.Confidence = candidate.Confidence
		// Inferred commands carry no parsed arguments; commands that
		// require them surface usage via required-arg validation.
		return definition, nil, nil, nil
	}

	r := unknownCommandRefusal()
	return catalog.Definition{}, nil, &r, nil
}

// refuse finalizes a refusal into a denied response.
func (d *Dispatcher) refuse(r refusal, decision *RoutingDecision) Response {
	decision.Outcome = OutcomeRefused
	if decision.DenyReason == "" {
		decision.DenyReason = r.kind.String()
	}
	return Response{Status: StatusDenied, Text: r.text}
}

// parseCommand splits "/name arg1 arg2" into name and args. Returns
// isLiteral=false for anything that does not start with the marker.
func parseCommand(body string) (name string, args []string, isLiteral bool) {
	if !strings.HasPrefix(body, commandMarker) {
		return "", nil, false
	}
	fields := strings.Fields(body[len(commandMarker):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
