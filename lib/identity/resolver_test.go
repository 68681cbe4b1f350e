// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/ref"
)

// fakeStore is a scripted Store: states per (role), an optional error,
// and a call counter for cache assertions.
type fakeStore struct {
	states map[Role]State
	err    error
	calls  int
}

func (s *fakeStore) RoleState(ctx context.Context, team ref.TeamID, sender ref.UserID, role Role) (State, error) {
	s.calls++
	if s.err != nil {
		return Unregistered, s.err
	}
	return s.states[role], nil
}

var (
	testTeam   = ref.MustParseTeamID("riverside-fc")
	testSender = ref.MustParseUserID("@dana:roster.local")
)

func TestResolveChecksBothRoles(t *testing.T) {
	store := &fakeStore{states: map[Role]State{
		RolePlayer:  Active,
		RoleManager: Pending,
	}}
	resolver, err := NewResolver(ResolverConfig{Store: store})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	resolved, err := resolver.Resolve(context.Background(), testTeam, testSender)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := resolved.StateOf(RolePlayer); got != Active {
		t.Errorf("player state = %v, want Active", got)
	}
	if got := resolved.StateOf(RoleManager); got != Pending {
		t.Errorf("manager state = %v, want Pending", got)
	}
	if store.calls != len(Roles) {
		t.Errorf("store calls = %d, want %d (both roles always checked)", store.calls, len(Roles))
	}
}

func TestResolvePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("store unreachable")
	store := &fakeStore{err: storeErr}
	resolver, err := NewResolver(ResolverConfig{Store: store})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), testTeam, testSender)
	if err == nil {
		t.Fatal("expected error, got nil — store failures must never read as unregistered")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("error %v does not wrap store error", err)
	}
}

func TestResolveRejectsZeroInputs(t *testing.T) {
	resolver, err := NewResolver(ResolverConfig{Store: &fakeStore{}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), ref.TeamID{}, testSender); err == nil {
		t.Error("expected error for zero team")
	}
	if _, err := resolver.Resolve(context.Background(), testTeam, ref.UserID{}); err == nil {
		t.Error("expected error for zero sender")
	}
}

func TestCacheHitWithinTTL(t *testing.T) {
	store := &fakeStore{states: map[Role]State{RolePlayer: Active}}
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver, err := NewResolver(ResolverConfig{
		Store:    store,
		CacheTTL: time.Minute,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx := context.Background()
	if _, err := resolver.Resolve(ctx, testTeam, testSender); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	first := store.calls

	if _, err := resolver.Resolve(ctx, testTeam, testSender); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if store.calls != first {
		t.Errorf("store calls grew from %d to %d within TTL", first, store.calls)
	}
}

func TestCacheExpiryFallsBackToStore(t *testing.T) {
	store := &fakeStore{states: map[Role]State{RolePlayer: Active}}
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver, err := NewResolver(ResolverConfig{
		Store:    store,
		CacheTTL: time.Minute,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx := context.Background()
	if _, err := resolver.Resolve(ctx, testTeam, testSender); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	first := store.calls

	fake.Advance(2 * time.Minute)

	// Registration state changed while the cache was cold.
	store.states[RolePlayer] = Pending
	resolved, err := resolver.Resolve(ctx, testTeam, testSender)
	if err != nil {
		t.Fatalf("post-expiry Resolve: %v", err)
	}
	if store.calls == first {
		t.Error("expired cache did not fall back to the store")
	}
	if got := resolved.StateOf(RolePlayer); got != Pending {
		t.Errorf("player state = %v, want Pending from live store", got)
	}
}
