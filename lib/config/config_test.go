// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
environment: development
homeserver:
  url: http://localhost:6167
  user_id: "@assistant:roster.local"
  token_file: /etc/roster/assistant.token
teams:
  - id: riverside-fc
    team_room: "!team:roster.local"
    staff_room: "!staff:roster.local"
store:
  path: /var/lib/roster/roster.db
audit:
  path: /var/lib/roster/audit.cbor
`

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Homeserver.URL != "http://localhost:6167" {
		t.Errorf("homeserver URL = %q", cfg.Homeserver.URL)
	}
	if len(cfg.Teams) != 1 || cfg.Teams[0].ID != "riverside-fc" {
		t.Errorf("teams = %+v", cfg.Teams)
	}
	// Unset sections keep their defaults.
	if cfg.Store.PoolSize != 4 {
		t.Errorf("pool size default = %d", cfg.Store.PoolSize)
	}
	if cfg.Intent.ConfidenceFloor != 0.6 {
		t.Errorf("confidence floor default = %v", cfg.Intent.ConfidenceFloor)
	}
	if cfg.Pipeline.PendingTTL != "336h" {
		t.Errorf("pending TTL default = %q", cfg.Pipeline.PendingTTL)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("ROSTER_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when ROSTER_CONFIG is unset")
	}

	t.Setenv("ROSTER_CONFIG", writeConfig(t, validConfig))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Teams[0].ID != "riverside-fc" {
		t.Errorf("teams = %+v", cfg.Teams)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	overrideSection := `
production:
  store:
    path: /srv/roster/roster.db
    pool_size: 16
  intent:
    provider: anthropic
    model: claude-sonnet-4-5
    api_key_file: /etc/roster/anthropic.key
    redaction_key_file: /etc/roster/redact.key
`

	// Environment is development, so the production section is inert.
	cfg, err := LoadFile(writeConfig(t, validConfig+overrideSection))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.Path != "/var/lib/roster/roster.db" {
		t.Errorf("store path = %q, production override should not apply", cfg.Store.Path)
	}

	productionConfig := strings.Replace(validConfig,
		"environment: development", "environment: production", 1)
	cfg, err = LoadFile(writeConfig(t, productionConfig+overrideSection))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.Path != "/srv/roster/roster.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Store.PoolSize != 16 {
		t.Errorf("pool size = %d", cfg.Store.PoolSize)
	}
	if cfg.Intent.Provider != "anthropic" {
		t.Errorf("intent provider = %q", cfg.Intent.Provider)
	}
	// Override sections only replace what they set.
	if cfg.Audit.Path != "/var/lib/roster/audit.cbor" {
		t.Errorf("audit path = %q", cfg.Audit.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate after overrides: %v", err)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/assistant")
	cfg, err := LoadFile(writeConfig(t, strings.Replace(validConfig,
		"path: /var/lib/roster/roster.db",
		"path: ${HOME}/roster/roster.db", 1)))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.Path != "/home/assistant/roster/roster.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing homeserver URL",
			mutate:  func(c *Config) { c.Homeserver.URL = "" },
			wantErr: "homeserver.url",
		},
		{
			name: "no auth method",
			mutate: func(c *Config) {
				c.Homeserver.UserID = ""
				c.Homeserver.TokenFile = ""
			},
			wantErr: "token_file or username",
		},
		{
			name:    "no teams",
			mutate:  func(c *Config) { c.Teams = nil },
			wantErr: "at least one team",
		},
		{
			name:    "invalid team slug",
			mutate:  func(c *Config) { c.Teams[0].ID = "Riverside FC" },
			wantErr: "teams[0].id",
		},
		{
			name:    "invalid room ID",
			mutate:  func(c *Config) { c.Teams[0].TeamRoom = "not-a-room" },
			wantErr: "teams[0].team_room",
		},
		{
			name: "room bound twice",
			mutate: func(c *Config) {
				c.Teams = append(c.Teams, TeamConfig{
					ID:        "harbor-rovers",
					TeamRoom:  c.Teams[0].TeamRoom,
					StaffRoom: "!staff2:roster.local",
				})
			},
			wantErr: "already bound",
		},
		{
			name:    "unknown intent provider",
			mutate:  func(c *Config) { c.Intent.Provider = "bedrock" },
			wantErr: "intent.provider",
		},
		{
			name: "provider without model",
			mutate: func(c *Config) {
				c.Intent.Provider = "openai"
				c.Intent.APIKeyFile = "/etc/roster/key"
			},
			wantErr: "intent.model",
		},
		{
			name: "provider without redaction key",
			mutate: func(c *Config) {
				c.Intent.Provider = "openai"
				c.Intent.Model = "gpt-4o-mini"
				c.Intent.APIKeyFile = "/etc/roster/key"
			},
			wantErr: "intent.redaction_key_file",
		},
		{
			name:    "unparseable pipeline timeout",
			mutate:  func(c *Config) { c.Pipeline.Timeout = "soon" },
			wantErr: "pipeline.timeout",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := LoadFile(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			test.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	pipelineTimeout, pendingTTL, cacheTTL, sweepInterval := cfg.Durations()
	if pipelineTimeout != 30*time.Second {
		t.Errorf("pipeline timeout = %v", pipelineTimeout)
	}
	if pendingTTL != 14*24*time.Hour {
		t.Errorf("pending TTL = %v", pendingTTL)
	}
	if cacheTTL != 30*time.Second {
		t.Errorf("cache TTL = %v", cacheTTL)
	}
	if sweepInterval != time.Hour {
		t.Errorf("sweep interval = %v", sweepInterval)
	}
	if cfg.IntentTimeout() != 10*time.Second {
		t.Errorf("intent timeout = %v", cfg.IntentTimeout())
	}
}
