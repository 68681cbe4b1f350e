// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/roster-foundation/roster/lib/config"
	"github.com/roster-foundation/roster/lib/teamstore"
)

// loadConfig reads and validates the deployment config. An empty path
// falls back to ROSTER_CONFIG, matching the daemon.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the team store named by the config. The schema is
// created on first connect, so this works on a fresh deployment.
func openStore(cfg *config.Config) (*teamstore.Store, error) {
	store, err := teamstore.Open(teamstore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("opening team store at %s: %w", cfg.Store.Path, err)
	}
	return store, nil
}

// findTeam returns the config entry for the named team.
func findTeam(cfg *config.Config, teamID string) (config.TeamConfig, error) {
	for _, team := range cfg.Teams {
		if team.ID == teamID {
			return team, nil
		}
	}
	return config.TeamConfig{}, fmt.Errorf("team %q is not in the config (known teams: %d)", teamID, len(cfg.Teams))
}
