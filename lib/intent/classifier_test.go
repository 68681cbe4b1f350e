// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/llm"
)

// scriptedProvider returns a fixed completion text or error.
type scriptedProvider struct {
	text string
	err  error

	lastRequest llm.Request
}

func (p *scriptedProvider) Complete(ctx context.Context, request llm.Request) (*llm.Response, error) {
	p.lastRequest = request
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text}, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Definition{
		{Name: "list", Level: catalog.LevelPlayer, Classes: []catalog.Class{catalog.ClassTeam}, Summary: "list players",
			Examples: []string{"can you show me the players"}, Feature: "players"},
		{Name: "schedule", Level: catalog.LevelPlayer, Classes: []catalog.Class{catalog.ClassTeam}, Summary: "upcoming sessions", Feature: "schedule"},
		{Name: "sweep", Level: catalog.LevelSystem, Classes: []catalog.Class{catalog.ClassStaff}, Summary: "internal", Feature: "registration"},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func testRedacted() identity.Redacted {
	return identity.Redacted{SenderDigest: "a1b2c3d4", PlayerState: identity.Active}
}

func newClassifier(t *testing.T, provider llm.Provider) *Classifier {
	t.Helper()
	classifier, err := New(Config{Provider: provider, Model: "test-model"}, testCatalog(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return classifier
}

func TestClassifyFiltersAndRanks(t *testing.T) {
	provider := &scriptedProvider{text: `[
		{"command":"schedule","confidence":0.7},
		{"command":"list","confidence":0.92},
		{"command":"list","confidence":0.3},
		{"command":"nonsense","confidence":0.95}
	]`}
	classifier := newClassifier(t, provider)

	candidates, err := classifier.Classify(context.Background(), "show me the players", testRedacted(), catalog.ClassTeam)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(candidates), candidates)
	}
	if candidates[0].Command != "list" || candidates[0].Confidence != 0.92 {
		t.Errorf("best candidate = %+v, want list@0.92", candidates[0])
	}
	if candidates[1].Command != "schedule" {
		t.Errorf("second candidate = %+v", candidates[1])
	}
}

func TestClassifyToleratesProse(t *testing.T) {
	provider := &scriptedProvider{text: "Sure! Here you go:\n```json\n[{\"command\":\"list\",\"confidence\":0.8}]\n```"}
	classifier := newClassifier(t, provider)

	candidates, err := classifier.Classify(context.Background(), "who's on the team", testRedacted(), catalog.ClassTeam)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Command != "list" {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestClassifyEmptyArrayMeansUnrecognized(t *testing.T) {
	provider := &scriptedProvider{text: "[]"}
	classifier := newClassifier(t, provider)

	candidates, err := classifier.Classify(context.Background(), "what's the weather", testRedacted(), catalog.ClassTeam)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("candidates = %+v, want none", candidates)
	}
}

func TestClassifyProviderErrorPropagates(t *testing.T) {
	providerErr := errors.New("model unavailable")
	classifier := newClassifier(t, &scriptedProvider{err: providerErr})

	_, err := classifier.Classify(context.Background(), "anything", testRedacted(), catalog.ClassTeam)
	if !errors.Is(err, providerErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

func TestClassifyGarbageOutputIsAnError(t *testing.T) {
	classifier := newClassifier(t, &scriptedProvider{text: "I cannot help with that."})
	if _, err := classifier.Classify(context.Background(), "anything", testRedacted(), catalog.ClassTeam); err == nil {
		t.Error("expected parse error for non-JSON output")
	}
}

func TestPromptRedactsSenderAndHidesSystemCommands(t *testing.T) {
	provider := &scriptedProvider{text: "[]"}
	classifier := newClassifier(t, provider)

	_, err := classifier.Classify(context.Background(), "hello", testRedacted(), catalog.ClassDirect)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if strings.Contains(provider.lastRequest.System, "sweep") {
		t.Error("system-level command leaked into the prompt")
	}
	user := provider.lastRequest.Messages[0].Content
	if !strings.Contains(user, "a1b2c3d4") {
		t.Error("redacted digest missing from prompt")
	}
	if strings.Contains(user, "@") {
		t.Errorf("prompt appears to contain a raw user ID: %q", user)
	}
}
