// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/ref"
)

// Resolver answers "who is this sender for this team" by querying the
// store for every role. An optional read-through cache with a short
// TTL absorbs repeated lookups during bursts of chat; entries expire
// by time only, and a miss or expiry always falls back to a live store
// call.
//
// Resolver is safe for concurrent use.
type Resolver struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger

	// cacheTTL <= 0 disables the cache entirely.
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	team   ref.TeamID
	sender ref.UserID
	role   Role
}

type cacheEntry struct {
	state   State
	expires time.Time
}

// ResolverConfig holds the parameters for NewResolver. Store is
// required.
type ResolverConfig struct {
	Store Store

	// CacheTTL bounds how stale a cached role state may be. Zero or
	// negative disables caching and every resolution hits the store.
	CacheTTL time.Duration

	// Clock supplies time for cache expiry. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives debug-level cache activity. Defaults to a no-op
	// logger.
	Logger *slog.Logger
}

// NewResolver builds a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("identity: Store is required")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		store:    cfg.Store,
		clock:    c,
		logger:   logger,
		cacheTTL: cfg.CacheTTL,
		cache:    make(map[cacheKey]cacheEntry),
	}, nil
}

// Resolve looks up the sender's registration state in every role for
// the team. Both role lookups always execute; a failure of either is
// returned as an error and the partial result is discarded. Callers
// must treat a returned error as a system failure, not as "sender
// unknown".
func (r *Resolver) Resolve(ctx context.Context, team ref.TeamID, sender ref.UserID) (Resolved, error) {
	if team.IsZero() {
		return Resolved{}, fmt.Errorf("identity: resolve with zero team")
	}
	if sender.IsZero() {
		return Resolved{}, fmt.Errorf("identity: resolve with zero sender")
	}

	states := make(map[Role]State, len(Roles))
	for _, role := range Roles {
		state, err := r.roleState(ctx, team, sender, role)
		if err != nil {
			return Resolved{}, fmt.Errorf("identity: %s lookup for %s in team %s: %w",
				role, sender, team, err)
		}
		states[role] = state
	}

	return Resolved{
		Sender: sender,
		Team:   team,
		Roles:  states,
	}, nil
}

// roleState returns one role's state, consulting the cache first when
// enabled.
func (r *Resolver) roleState(ctx context.Context, team ref.TeamID, sender ref.UserID, role Role) (State, error) {
	key := cacheKey{team: team, sender: sender, role: role}

	if r.cacheTTL > 0 {
		r.mu.Lock()
		entry, hit := r.cache[key]
		r.mu.Unlock()
		if hit && r.clock.Now().Before(entry.expires) {
			return entry.state, nil
		}
	}

	state, err := r.store.RoleState(ctx, team, sender, role)
	if err != nil {
		return Unregistered, err
	}

	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{state: state, expires: r.clock.Now().Add(r.cacheTTL)}
		r.mu.Unlock()
	}

	return state, nil
}
