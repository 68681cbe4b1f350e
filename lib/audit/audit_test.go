// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/dispatch"
	"github.com/roster-foundation/roster/lib/ref"
)

func sampleDecision(destination string, outcome dispatch.Outcome) dispatch.RoutingDecision {
	return dispatch.RoutingDecision{
		Time:        time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Team:        ref.MustParseTeamID("tigers"),
		Room:        ref.MustParseRoomID("!staff:roster.example"),
		Sender:      ref.MustParseUserID("@casey:roster.example"),
		Class:       catalog.ClassStaff,
		Destination: destination,
		Match:       dispatch.MatchLiteral,
		Allowed:     outcome == dispatch.OutcomeCompleted,
		Outcome:     outcome,
		Elapsed:     420 * time.Millisecond,
	}
}

func TestRecordAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.cbor")
	log, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	log.Record(sampleDecision("approve", dispatch.OutcomeCompleted))
	log.Record(sampleDecision("approve", dispatch.OutcomeRefused))
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ReadAll returned %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Team != "tigers" || first.Sender != "@casey:roster.example" {
		t.Errorf("entry identity = %s/%s, want tigers/@casey:roster.example", first.Team, first.Sender)
	}
	if first.Class != "staff" {
		t.Errorf("entry class = %q, want staff", first.Class)
	}
	if first.Outcome != dispatch.OutcomeCompleted.String() {
		t.Errorf("entry outcome = %q, want %q", first.Outcome, dispatch.OutcomeCompleted)
	}
	if entries[1].Outcome != dispatch.OutcomeRefused.String() {
		t.Errorf("second outcome = %q, want %q", entries[1].Outcome, dispatch.OutcomeRefused)
	}
	if first.ElapsedMS != 420 {
		t.Errorf("ElapsedMS = %d, want 420", first.ElapsedMS)
	}
}

func TestAppendAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.cbor")

	for i := 0; i < 2; i++ {
		log, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		log.Record(sampleDecision("list", dispatch.OutcomeCompleted))
		if err := log.Close(); err != nil {
			t.Fatalf("Close %d: %v", i, err)
		}
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ReadAll returned %d entries after reopen, want 2", len(entries))
	}
}

func TestTruncatedTailReturnsDecodedPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.cbor")
	log, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Record(sampleDecision("whoami", dispatch.OutcomeCompleted))
	log.Record(sampleDecision("whoami", dispatch.OutcomeAborted))
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Chop bytes off the final record to simulate a crash mid-write.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-5], 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadAll(path)
	if err == nil {
		t.Fatal("ReadAll accepted a truncated log without error")
	}
	if len(entries) != 1 {
		t.Fatalf("ReadAll returned %d intact entries, want 1", len(entries))
	}
}

func TestRecordAfterCloseDropsQuietly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.cbor")
	log, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Must not panic.
	log.Record(sampleDecision("list", dispatch.OutcomeCompleted))

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("closed log accepted %d records", len(entries))
	}
}
