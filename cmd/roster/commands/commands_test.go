// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/ref"
	"github.com/roster-foundation/roster/lib/teamstore"
)

// writeDeployment writes a minimal valid config into a temp directory
// and returns the config path and the store path.
func writeDeployment(t *testing.T) (configPath, storePath string) {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "roster.db")
	configPath = filepath.Join(dir, "roster.yaml")
	content := fmt.Sprintf(`homeserver:
  url: https://matrix.example.org
  user_id: "@assistant:example.org"
  token_file: %s
teams:
  - id: riverside-fc
    team_room: "!team:example.org"
    staff_room: "!staff:example.org"
store:
  path: %s
audit:
  path: %s
`, filepath.Join(dir, "token"), storePath, filepath.Join(dir, "audit.cbor"))
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath, storePath
}

func TestTeamInit(t *testing.T) {
	configPath, storePath := writeDeployment(t)

	err := Root().Execute([]string{"team", "init", "riverside-fc", "--config", configPath})
	if err != nil {
		t.Fatalf("team init: %v", err)
	}
	if _, err := os.Stat(storePath); err != nil {
		t.Errorf("store file was not created: %v", err)
	}
}

func TestTeamInitUnknownTeam(t *testing.T) {
	configPath, _ := writeDeployment(t)

	err := Root().Execute([]string{"team", "init", "harbor-united", "--config", configPath})
	if err == nil {
		t.Fatal("expected an error for a team missing from the config")
	}
	if !strings.Contains(err.Error(), "harbor-united") {
		t.Errorf("error does not name the team: %v", err)
	}
}

func TestManagerAdd(t *testing.T) {
	configPath, storePath := writeDeployment(t)

	err := Root().Execute([]string{
		"manager", "add", "riverside-fc", "@dana:example.org",
		"--config", configPath, "--name", "Dana",
	})
	if err != nil {
		t.Fatalf("manager add: %v", err)
	}

	store, err := teamstore.Open(teamstore.Config{Path: storePath})
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer store.Close()

	state, err := store.RoleState(context.Background(),
		ref.MustParseTeamID("riverside-fc"),
		ref.MustParseUserID("@dana:example.org"),
		identity.RoleManager,
	)
	if err != nil {
		t.Fatalf("RoleState: %v", err)
	}
	if state != identity.Active {
		t.Errorf("manager state = %v, want Active", state)
	}
}

func TestManagerAddTwiceFails(t *testing.T) {
	configPath, _ := writeDeployment(t)

	args := []string{
		"manager", "add", "riverside-fc", "@dana:example.org",
		"--config", configPath,
	}
	if err := Root().Execute(args); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := Root().Execute(args)
	if err == nil {
		t.Fatal("expected the second add to fail")
	}
	if !strings.Contains(err.Error(), "already") {
		t.Errorf("error does not explain the conflict: %v", err)
	}
}

func TestAuditTailMissingLog(t *testing.T) {
	configPath, _ := writeDeployment(t)

	// No audit file has been written yet; tail must fail cleanly
	// rather than print garbage.
	err := Root().Execute([]string{"audit", "tail", "--config", configPath})
	if err == nil {
		t.Fatal("expected an error for a missing audit log")
	}
}
