// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package intent maps free-text messages onto catalog commands.
//
// The classifier delegates to an LLM provider with a prompt built from
// the command catalog (names, summaries, example phrasings) and a
// redacted identity summary — never the raw sender ID or message
// history. Its own responsibilities are narrow: enforce a confidence
// floor, cap the candidate count, and discard candidates that name
// commands the catalog does not know. An inferred command re-enters
// the exact same permission pipeline a literal command would; nothing
// about inference bypasses authorization.
//
// The classifier reports provider failures to its caller; the
// dispatcher treats them like "no candidate cleared the floor" so a
// slow or broken model degrades the free-text surface without taking
// down command routing.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roster-foundation/roster/lib/catalog"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/llm"
)

// Candidate is one inferred command with the model's confidence.
type Candidate struct {
	// Command is a catalog command name.
	Command string `json:"command"`

	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Config holds the classifier parameters.
type Config struct {
	// Provider is the LLM backend. Required.
	Provider llm.Provider

	// Model is the provider model name. Required.
	Model string

	// ConfidenceFloor rejects candidates below this confidence.
	// Defaults to 0.6.
	ConfidenceFloor float64

	// MaxCandidates caps how many candidates survive filtering.
	// Defaults to 3.
	MaxCandidates int

	// Timeout bounds the provider call. Defaults to 10s.
	Timeout time.Duration

	// Logger receives classification traces. Defaults to no-op.
	Logger *slog.Logger
}

// Classifier turns free text into ranked catalog command candidates.
// Safe for concurrent use.
type Classifier struct {
	provider llm.Provider
	model    string
	floor    float64
	maxCands int
	timeout  time.Duration
	logger   *slog.Logger

	catalog      *catalog.Catalog
	systemPrompt string
}

// New builds a Classifier over the given catalog. The system prompt is
// assembled once here, since the catalog is immutable after startup.
func New(cfg Config, commandCatalog *catalog.Catalog) (*Classifier, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("intent: Provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("intent: Model is required")
	}
	if commandCatalog == nil {
		return nil, fmt.Errorf("intent: catalog is required")
	}

	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = 0.6
	}
	maxCands := cfg.MaxCandidates
	if maxCands <= 0 {
		maxCands = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Classifier{
		provider:     cfg.Provider,
		model:        cfg.Model,
		floor:        floor,
		maxCands:     maxCands,
		timeout:      timeout,
		logger:       logger,
		catalog:      commandCatalog,
		systemPrompt: buildSystemPrompt(commandCatalog),
	}, nil
}

// buildSystemPrompt lists every non-system command with its summary
// and example phrasings, and instructs the model to answer with a JSON
// array of candidates.
func buildSystemPrompt(commandCatalog *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You map a chat message from a sports-team assistant's room to the command the sender wants.\n")
	b.WriteString("Known commands:\n")
	for _, name := range commandCatalog.Names() {
		definition, _ := commandCatalog.Get(name)
		if definition.Level == catalog.LevelSystem {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", definition.Name, definition.Summary)
		if len(definition.Examples) > 0 {
			fmt.Fprintf(&b, " (e.g. %q)", strings.Join(definition.Examples, `", "`))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer with ONLY a JSON array of up to 3 candidates, best first, ")
	b.WriteString(`like [{"command":"list","confidence":0.92}]. `)
	b.WriteString("Use an empty array when no command fits. Confidence is in [0,1].")
	return b.String()
}

// Classify asks the model for ranked candidates for the given text.
// The returned slice is already filtered (floor, catalog membership)
// and capped, best first. An empty slice with a nil error means the
// message is legitimately unrecognized; a non-nil error means the
// provider call itself failed or produced garbage.
func (c *Classifier) Classify(ctx context.Context, text string, redacted identity.Redacted, class catalog.Class) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Conversation class: %s\nSender: %s (player %s, manager %s)\nMessage: %s",
		class, redacted.SenderDigest, redacted.PlayerState, redacted.ManagerState, text)

	response, err := c.provider.Complete(ctx, llm.Request{
		Model:     c.model,
		System:    c.systemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: userPrompt}},
		MaxTokens: 256,
	})
	if err != nil {
		return nil, fmt.Errorf("intent: provider: %w", err)
	}

	raw, err := parseCandidates(response.Text)
	if err != nil {
		return nil, fmt.Errorf("intent: parsing model output: %w", err)
	}

	candidates := c.filter(raw)
	c.logger.Debug("intent classified",
		"class", class.String(),
		"raw_candidates", len(raw),
		"candidates", len(candidates),
	)
	return candidates, nil
}

// parseCandidates extracts the JSON array from the model output.
// Models occasionally wrap the array in prose or a code fence; scan
// for the outermost brackets rather than failing on decoration.
func parseCandidates(text string) ([]Candidate, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in %q", truncate(text, 120))
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(text[start:end+1]), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// filter drops candidates below the floor, outside [0,1], or naming
// unknown commands, sorts the survivors by confidence, and caps the
// count.
func (c *Classifier) filter(raw []Candidate) []Candidate {
	var out []Candidate
	for _, candidate := range raw {
		if candidate.Confidence < c.floor || candidate.Confidence > 1 {
			continue
		}
		if _, known := c.catalog.Get(candidate.Command); !known {
			c.logger.Debug("intent candidate names unknown command", "command", candidate.Command)
			continue
		}
		out = append(out, candidate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > c.maxCands {
		out = out[:c.maxCands]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
