// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roster-foundation/roster/lib/ref"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the Roster assistant.
type Config struct {
	// Environment identifies the deployment type (development, staging,
	// production).
	Environment Environment `yaml:"environment"`

	// Homeserver configures the Matrix connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Teams lists the tenants the assistant serves and their room bindings.
	Teams []TeamConfig `yaml:"teams"`

	// Store configures the SQLite roster database.
	Store StoreConfig `yaml:"store"`

	// Audit configures the append-only routing decision log.
	Audit AuditConfig `yaml:"audit"`

	// Intent configures the free-text intent classifier. An empty
	// provider disables free-text routing: only slash commands work.
	Intent IntentConfig `yaml:"intent"`

	// Pipeline configures dispatch timing.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Policy configures authorization exceptions.
	Policy PolicyConfig `yaml:"policy"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Homeserver *HomeserverConfig `yaml:"homeserver,omitempty"`
	Store      *StoreConfig      `yaml:"store,omitempty"`
	Audit      *AuditConfig      `yaml:"audit,omitempty"`
	Intent     *IntentConfig     `yaml:"intent,omitempty"`
}

// HomeserverConfig configures the Matrix connection. The assistant
// authenticates either with a stored access token (UserID + TokenFile)
// or with a password login (Username + PasswordFile). Token auth wins
// when both are present.
type HomeserverConfig struct {
	// URL is the base URL of the homeserver (e.g., "http://localhost:6167").
	URL string `yaml:"url"`

	// UserID is the assistant's fully-qualified Matrix user ID for
	// token auth (e.g., "@assistant:roster.local").
	UserID string `yaml:"user_id,omitempty"`

	// TokenFile is a file containing the access token. Read into an
	// mlock-backed buffer at startup.
	TokenFile string `yaml:"token_file,omitempty"`

	// Username is the localpart for password login.
	Username string `yaml:"username,omitempty"`

	// PasswordFile is a file containing the login password.
	PasswordFile string `yaml:"password_file,omitempty"`
}

// TeamConfig binds one team's rooms. Messages in the team room run
// player-level commands; the staff room carries approval and management
// traffic. Direct-message rooms are discovered at runtime, not configured.
type TeamConfig struct {
	// ID is the team slug (e.g., "rec-united").
	ID string `yaml:"id"`

	// TeamRoom is the Matrix room ID of the all-hands room.
	TeamRoom string `yaml:"team_room"`

	// StaffRoom is the Matrix room ID of the staff-only room.
	StaffRoom string `yaml:"staff_room"`
}

// StoreConfig configures the SQLite roster database.
type StoreConfig struct {
	// Path is the database file path. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int `yaml:"pool_size"`
}

// AuditConfig configures the append-only routing decision log.
type AuditConfig struct {
	// Path is the CBOR audit log file path. Required.
	Path string `yaml:"path"`
}

// IntentConfig configures the free-text intent classifier.
type IntentConfig struct {
	// Provider selects the LLM backend: "anthropic", "openai", or ""
	// to disable free-text routing.
	Provider string `yaml:"provider"`

	// Model is the provider model name. Required when Provider is set.
	Model string `yaml:"model"`

	// APIKeyFile is a file containing the provider API key. Read into
	// an mlock-backed buffer at startup.
	APIKeyFile string `yaml:"api_key_file"`

	// RedactionKeyFile is a file of secret material keying the sender
	// digests in classifier prompts. Required when Provider is set.
	RedactionKeyFile string `yaml:"redaction_key_file"`

	// BaseURL overrides the provider endpoint. Empty uses the
	// provider's public API.
	BaseURL string `yaml:"base_url,omitempty"`

	// ConfidenceFloor rejects inferred candidates below this
	// confidence. Defaults to 0.6.
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// MaxCandidates caps how many candidates the classifier returns.
	// Defaults to 3.
	MaxCandidates int `yaml:"max_candidates"`

	// Timeout bounds the classification call. Defaults to "10s".
	Timeout string `yaml:"timeout"`
}

// PipelineConfig configures dispatch timing.
type PipelineConfig struct {
	// Timeout bounds a single dispatch end to end. Defaults to "30s".
	Timeout string `yaml:"timeout"`

	// PendingTTL is how long an unapproved registration survives
	// before the maintenance sweep removes it. Defaults to "336h"
	// (14 days).
	PendingTTL string `yaml:"pending_ttl"`

	// IdentityCacheTTL bounds how stale a cached role lookup may be.
	// "0" disables the cache. Defaults to "30s".
	IdentityCacheTTL string `yaml:"identity_cache_ttl"`

	// SweepInterval is how often the maintenance sweep runs.
	// Defaults to "1h".
	SweepInterval string `yaml:"sweep_interval"`
}

// PolicyConfig configures authorization exceptions.
type PolicyConfig struct {
	// PendingStaffCommands lists command names a pending (not yet
	// approved) manager may run in the staff room. Everything else
	// requires an active manager.
	PendingStaffCommands []string `yaml:"pending_staff_commands"`
}

// Default returns the default configuration. These defaults are a base
// for the loaded file, not a fallback — the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Path:     "${HOME}/.local/share/roster/roster.db",
			PoolSize: 4,
		},
		Audit: AuditConfig{
			Path: "${HOME}/.local/share/roster/audit.cbor",
		},
		Intent: IntentConfig{
			ConfidenceFloor: 0.6,
			MaxCandidates:   3,
			Timeout:         "10s",
		},
		Pipeline: PipelineConfig{
			Timeout:          "30s",
			PendingTTL:       "336h",
			IdentityCacheTTL: "30s",
			SweepInterval:    "1h",
		},
	}
}

// Load loads configuration from the ROSTER_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or automatic discovery — if ROSTER_CONFIG is
// not set, this fails. This ensures deterministic, auditable
// configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("ROSTER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ROSTER_CONFIG environment variable not set; " +
			"set it to the path of your roster.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Homeserver != nil {
		applyString(&c.Homeserver.URL, overrides.Homeserver.URL)
		applyString(&c.Homeserver.UserID, overrides.Homeserver.UserID)
		applyString(&c.Homeserver.TokenFile, overrides.Homeserver.TokenFile)
		applyString(&c.Homeserver.Username, overrides.Homeserver.Username)
		applyString(&c.Homeserver.PasswordFile, overrides.Homeserver.PasswordFile)
	}
	if overrides.Store != nil {
		applyString(&c.Store.Path, overrides.Store.Path)
		if overrides.Store.PoolSize > 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}
	if overrides.Audit != nil {
		applyString(&c.Audit.Path, overrides.Audit.Path)
	}
	if overrides.Intent != nil {
		applyString(&c.Intent.Provider, overrides.Intent.Provider)
		applyString(&c.Intent.Model, overrides.Intent.Model)
		applyString(&c.Intent.APIKeyFile, overrides.Intent.APIKeyFile)
		applyString(&c.Intent.RedactionKeyFile, overrides.Intent.RedactionKeyFile)
		applyString(&c.Intent.BaseURL, overrides.Intent.BaseURL)
		if overrides.Intent.ConfidenceFloor > 0 {
			c.Intent.ConfidenceFloor = overrides.Intent.ConfidenceFloor
		}
		if overrides.Intent.MaxCandidates > 0 {
			c.Intent.MaxCandidates = overrides.Intent.MaxCandidates
		}
		applyString(&c.Intent.Timeout, overrides.Intent.Timeout)
	}
}

func applyString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Audit.Path = expandVars(c.Audit.Path, vars)
	c.Homeserver.TokenFile = expandVars(c.Homeserver.TokenFile, vars)
	c.Homeserver.PasswordFile = expandVars(c.Homeserver.PasswordFile, vars)
	c.Intent.APIKeyFile = expandVars(c.Intent.APIKeyFile, vars)
	c.Intent.RedactionKeyFile = expandVars(c.Intent.RedactionKeyFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported at once via errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Homeserver.URL == "" {
		errs = append(errs, fmt.Errorf("homeserver.url is required"))
	}
	tokenAuth := c.Homeserver.UserID != "" && c.Homeserver.TokenFile != ""
	passwordAuth := c.Homeserver.Username != "" && c.Homeserver.PasswordFile != ""
	if !tokenAuth && !passwordAuth {
		errs = append(errs, fmt.Errorf("homeserver: either user_id+token_file or username+password_file is required"))
	}
	if c.Homeserver.UserID != "" {
		if _, err := ref.ParseUserID(c.Homeserver.UserID); err != nil {
			errs = append(errs, fmt.Errorf("homeserver.user_id: %w", err))
		}
	}

	if len(c.Teams) == 0 {
		errs = append(errs, fmt.Errorf("at least one team binding is required"))
	}
	seenRooms := make(map[string]string)
	for index, team := range c.Teams {
		if _, err := ref.ParseTeamID(team.ID); err != nil {
			errs = append(errs, fmt.Errorf("teams[%d].id: %w", index, err))
		}
		for _, room := range []struct {
			field string
			value string
		}{
			{"team_room", team.TeamRoom},
			{"staff_room", team.StaffRoom},
		} {
			if _, err := ref.ParseRoomID(room.value); err != nil {
				errs = append(errs, fmt.Errorf("teams[%d].%s: %w", index, room.field, err))
				continue
			}
			if owner, dup := seenRooms[room.value]; dup {
				errs = append(errs, fmt.Errorf("teams[%d].%s: room %s already bound to %s", index, room.field, room.value, owner))
			}
			seenRooms[room.value] = team.ID
		}
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("store.pool_size must be at least 1"))
	}
	if c.Audit.Path == "" {
		errs = append(errs, fmt.Errorf("audit.path is required"))
	}

	if c.Intent.Provider != "" {
		switch c.Intent.Provider {
		case "anthropic", "openai":
		default:
			errs = append(errs, fmt.Errorf("intent.provider must be \"anthropic\", \"openai\", or empty"))
		}
		if c.Intent.Model == "" {
			errs = append(errs, fmt.Errorf("intent.model is required when intent.provider is set"))
		}
		if c.Intent.APIKeyFile == "" {
			errs = append(errs, fmt.Errorf("intent.api_key_file is required when intent.provider is set"))
		}
		if c.Intent.RedactionKeyFile == "" {
			errs = append(errs, fmt.Errorf("intent.redaction_key_file is required when intent.provider is set"))
		}
		if c.Intent.ConfidenceFloor < 0 || c.Intent.ConfidenceFloor > 1 {
			errs = append(errs, fmt.Errorf("intent.confidence_floor must be in [0, 1]"))
		}
		if _, err := time.ParseDuration(c.Intent.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("intent.timeout: %w", err))
		}
	}

	for _, duration := range []struct {
		field string
		value string
	}{
		{"pipeline.timeout", c.Pipeline.Timeout},
		{"pipeline.pending_ttl", c.Pipeline.PendingTTL},
		{"pipeline.identity_cache_ttl", c.Pipeline.IdentityCacheTTL},
		{"pipeline.sweep_interval", c.Pipeline.SweepInterval},
	} {
		if _, err := time.ParseDuration(duration.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", duration.field, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Durations returns the parsed pipeline durations. Call only after
// Validate has passed; invalid durations parse as zero here.
func (c *Config) Durations() (pipelineTimeout, pendingTTL, cacheTTL, sweepInterval time.Duration) {
	pipelineTimeout, _ = time.ParseDuration(c.Pipeline.Timeout)
	pendingTTL, _ = time.ParseDuration(c.Pipeline.PendingTTL)
	cacheTTL, _ = time.ParseDuration(c.Pipeline.IdentityCacheTTL)
	sweepInterval, _ = time.ParseDuration(c.Pipeline.SweepInterval)
	return pipelineTimeout, pendingTTL, cacheTTL, sweepInterval
}

// IntentTimeout returns the parsed classifier timeout. Call only after
// Validate has passed.
func (c *Config) IntentTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Intent.Timeout)
	return timeout
}
