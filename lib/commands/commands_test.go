// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/teamstore"
)

var (
	team  = ref.MustParseTeamID("tigers")
	casey = ref.MustParseUserID("@casey:roster.example")
	boss  = ref.MustParseUserID("@boss:roster.example")
)

type announcerRecorder struct {
	messages []string
}

func (a *announcerRecorder) Announce(ctx context.Context, team ref.TeamID, text string) error {
	a.messages = append(a.messages, text)
	return nil
}

type fixture struct {
	catalog   *catalog.Catalog
	handlers  map[string]dispatch.Handler
	store     *teamstore.Store
	clock     *clock.FakeClock
	announcer *announcerRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := teamstore.Open(teamstore.Config{
		Path:     "file::memory:?mode=memory&cache=shared",
		PoolSize: 1,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("teamstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c, err := catalog.New(Definitions()...)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	announcer := &announcerRecorder{}
	handlers, err := Handlers(Deps{
		Store:     store,
		Catalog:   c,
		Announcer: announcer,
		Clock:     fake,
	})
	if err != nil {
		t.Fatalf("Handlers: %v", err)
	}

	return &fixture{
		catalog:   c,
		handlers:  handlers,
		store:     store,
		clock:     fake,
		announcer: announcer,
	}
}

// run executes a handler with a synthetic authorized context.
func (f *fixture) run(t *testing.T, sender ref.UserID, command string, args ...string) dispatch.HandlerResult {
	t.Helper()
	definition, ok := f.catalog.Get(command)
	if !ok {
		t.Fatalf("no catalog entry for %q", command)
	}
	handler, ok := f.handlers[command]
	if !ok {
		t.Fatalf("no handler for %q", command)
	}

	roles := map[identity.Role]identity.State{
		identity.RolePlayer:  identity.Unregistered,
		identity.RoleManager: identity.Unregistered,
	}
	for _, role := range identity.Roles {
		state, err := f.store.RoleState(context.Background(), team, sender, role)
		if err != nil {
			t.Fatalf("RoleState: %v", err)
		}
		roles[role] = state
	}

	result, err := handler.Execute(context.Background(), dispatch.ExecutionContext{
		Team:              team,
		Sender:            sender,
		SenderDisplayName: sender.Localpart(),
		Class:             definition.Classes[0],
		Identity:          identity.Resolved{Sender: sender, Team: team, Roles: roles},
		Command:           definition,
		Args:              args,
	})
	if err != nil {
		t.Fatalf("%s handler: %v", command, err)
	}
	return result
}

func TestEveryCommandHasAHandler(t *testing.T) {
	f := newFixture(t)
	for _, name := range f.catalog.Names() {
		if _, ok := f.handlers[name]; !ok {
			t.Errorf("command %q has no handler", name)
		}
	}
	for name := range f.handlers {
		if _, ok := f.catalog.Get(name); !ok {
			t.Errorf("handler %q has no catalog entry", name)
		}
	}
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, casey, "register")
	if !strings.Contains(result.Text, "/approve rc-") {
		t.Fatalf("register reply %q does not carry an approval code", result.Text)
	}
	code := result.Text[strings.Index(result.Text, "rc-"):]
	code = strings.TrimSuffix(strings.Fields(code)[0], "`.")

	result = f.run(t, boss, "pending")
	if !strings.Contains(result.Text, "casey") || !strings.Contains(result.Text, code) {
		t.Errorf("pending reply %q missing casey or code %s", result.Text, code)
	}

	result = f.run(t, boss, "approve", code, "welcome", "aboard")
	if !strings.Contains(result.Text, "active player") {
		t.Errorf("approve reply: %q", result.Text)
	}

	result = f.run(t, casey, "list")
	if !strings.Contains(result.Text, "casey") {
		t.Errorf("list reply %q missing the new player", result.Text)
	}

	// Double registration is a polite reply, not an error.
	result = f.run(t, casey, "register")
	if !strings.Contains(result.Text, "already") {
		t.Errorf("re-register reply: %q", result.Text)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, casey, "register", "mascot")
	if !strings.Contains(result.Text, "mascot") {
		t.Errorf("reply %q does not name the bad role", result.Text)
	}
}

func TestApproveUnknownCodeIsReplyNotError(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, boss, "approve", "rc-ffffff")
	if !strings.Contains(result.Text, "rc-ffffff") {
		t.Errorf("reply %q does not name the unknown code", result.Text)
	}
}

func TestWhoami(t *testing.T) {
	f := newFixture(t)
	registerAndApprove(t, f, casey, "player")

	result := f.run(t, casey, "whoami")
	if !strings.Contains(result.Text, "player: active") {
		t.Errorf("whoami reply %q missing active player state", result.Text)
	}
	if !strings.Contains(result.Text, "manager: not registered") {
		t.Errorf("whoami reply %q missing manager state", result.Text)
	}
}

func TestHelpHidesSystemCommands(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, casey, "help")
	if strings.Contains(result.Text, "/sweep") {
		t.Errorf("help lists a system command:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "/help") || !strings.Contains(result.Text, "/register") {
		t.Errorf("help missing public commands:\n%s", result.Text)
	}
}

func TestProfileAndAvailability(t *testing.T) {
	f := newFixture(t)
	registerAndApprove(t, f, casey, "player")

	f.run(t, casey, "profile", "keeper")
	f.run(t, casey, "available", "weekends", "only")

	result := f.run(t, casey, "profile")
	if !strings.Contains(result.Text, "keeper") || !strings.Contains(result.Text, "weekends only") {
		t.Errorf("profile reply:\n%s", result.Text)
	}
}

func TestSquadAssignment(t *testing.T) {
	f := newFixture(t)
	registerAndApprove(t, f, casey, "player")

	result := f.run(t, boss, "assign", casey.String(), "first")
	if !strings.Contains(result.Text, "first") {
		t.Errorf("assign reply: %q", result.Text)
	}
	result = f.run(t, casey, "squad")
	if !strings.Contains(result.Text, "first squad") || !strings.Contains(result.Text, "casey") {
		t.Errorf("squad reply:\n%s", result.Text)
	}

	f.run(t, boss, "unassign", casey.String())
	result = f.run(t, casey, "squad")
	if !strings.Contains(result.Text, "No squad assignments") {
		t.Errorf("squad reply after unassign:\n%s", result.Text)
	}

	result = f.run(t, boss, "assign", "not-a-user", "first")
	if !strings.Contains(result.Text, "not a valid user ID") {
		t.Errorf("assign with bad user: %q", result.Text)
	}
}

func TestAnnounceAndCancel(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, boss, "announce", "2026-03-14T18:00", "cup", "match")
	if !strings.Contains(result.Text, "cup match") {
		t.Fatalf("announce reply: %q", result.Text)
	}
	if len(f.announcer.messages) != 1 || !strings.Contains(f.announcer.messages[0], "cup match") {
		t.Fatalf("team room announcement = %v", f.announcer.messages)
	}

	result = f.run(t, casey, "schedule")
	if !strings.Contains(result.Text, "#1") || !strings.Contains(result.Text, "cup match") {
		t.Errorf("schedule reply:\n%s", result.Text)
	}

	result = f.run(t, boss, "cancel", "#1")
	if !strings.Contains(result.Text, "Cancelled") {
		t.Errorf("cancel reply: %q", result.Text)
	}
	if len(f.announcer.messages) != 2 {
		t.Errorf("cancellation not announced: %v", f.announcer.messages)
	}

	result = f.run(t, casey, "schedule")
	if !strings.Contains(result.Text, "Nothing scheduled") {
		t.Errorf("schedule after cancel:\n%s", result.Text)
	}

	result = f.run(t, boss, "announce", "yesterday", "x")
	if !strings.Contains(result.Text, "couldn't read") {
		t.Errorf("announce with bad time: %q", result.Text)
	}
	result = f.run(t, boss, "announce", "2020-01-01", "x")
	if !strings.Contains(result.Text, "in the past") {
		t.Errorf("announce in the past: %q", result.Text)
	}
}

func TestDuesFlow(t *testing.T) {
	f := newFixture(t)
	registerAndApprove(t, f, casey, "player")

	result := f.run(t, casey, "dues")
	if !strings.Contains(result.Text, "2026-03") || !strings.Contains(result.Text, "outstanding") {
		t.Errorf("dues reply:\n%s", result.Text)
	}

	result = f.run(t, boss, "paid", casey.String())
	if !strings.Contains(result.Text, "2026-03") {
		t.Errorf("paid reply: %q", result.Text)
	}

	result = f.run(t, casey, "dues")
	if strings.Contains(result.Text, "outstanding") {
		t.Errorf("dues still outstanding after paid:\n%s", result.Text)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	f.run(t, casey, "register")
	f.clock.Advance(30 * 24 * time.Hour)

	result := f.run(t, boss, "sweep")
	if !strings.Contains(result.Text, "Swept 1") {
		t.Errorf("sweep reply: %q", result.Text)
	}
}

// registerAndApprove pushes a user through registration to active.
func registerAndApprove(t *testing.T, f *fixture, user ref.UserID, role string) {
	t.Helper()
	result := f.run(t, user, "register", role)
	index := strings.Index(result.Text, "rc-")
	if index < 0 {
		t.Fatalf("register reply %q has no code", result.Text)
	}
	code := strings.TrimSuffix(strings.Fields(result.Text[index:])[0], "`.")
	f.run(t, boss, "approve", code)
}
