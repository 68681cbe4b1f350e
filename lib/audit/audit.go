// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit persists routing decisions to an append-only CBOR log.
// One record per dispatched message, written before the reply leaves
// the process, so the log answers "who asked for what, and what did
// the router decide" without trusting anyone's memory of the chat.
package audit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roster-foundation/roster/lib/codec"
	"github.com/roster-foundation/roster/lib/dispatch"
)

// Entry is the on-disk form of one routing decision. Enumerations are
// stored as their string names so the log stays readable after the
// numeric values shift between releases.
type Entry struct {
	Time        time.Time `cbor:"time"`
	Team        string    `cbor:"team"`
	Room        string    `cbor:"room"`
	Sender      string    `cbor:"sender"`
	Class       string    `cbor:"class"`
	Destination string    `cbor:"destination,omitempty"`
	Match       string    `cbor:"match"`
	Confidence  float64   `cbor:"confidence,omitempty"`
	Allowed     bool      `cbor:"allowed"`
	DenyReason  string    `cbor:"deny_reason,omitempty"`
	Outcome     string    `cbor:"outcome"`
	ElapsedMS   int64     `cbor:"elapsed_ms"`
}

func entryFromDecision(decision dispatch.RoutingDecision) Entry {
	return Entry{
		Time:        decision.Time.UTC(),
		Team:        decision.Team.String(),
		Room:        decision.Room.String(),
		Sender:      decision.Sender.String(),
		Class:       decision.Class.String(),
		Destination: decision.Destination,
		Match:       decision.Match.String(),
		Confidence:  decision.Confidence,
		Allowed:     decision.Allowed,
		DenyReason:  decision.DenyReason,
		Outcome:     decision.Outcome.String(),
		ElapsedMS:   decision.Elapsed.Milliseconds(),
	}
}

// Log is an append-only decision log backed by a single file. It
// implements dispatch.Auditor. Safe for concurrent use.
type Log struct {
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	encoder *codec.Encoder
}

// Open opens (creating if needed) the log file for appending. The file
// is a CBOR sequence: records are concatenated with no framing beyond
// CBOR's own self-delimiting, so a crash mid-write loses at most the
// final record.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Log{
		logger:  logger,
		file:    file,
		encoder: codec.NewEncoder(file),
	}, nil
}

// Record appends one decision. A write failure is logged at error
// level and otherwise swallowed: the router has already committed to
// its answer by the time Record runs, and failing the user's request
// over a full disk would punish them for an operational problem.
func (l *Log) Record(decision dispatch.RoutingDecision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		l.logger.Error("audit record dropped: log closed",
			"sender", decision.Sender.String(),
			"outcome", decision.Outcome.String(),
		)
		return
	}
	if err := l.encoder.Encode(entryFromDecision(decision)); err != nil {
		l.logger.Error("audit record dropped",
			"sender", decision.Sender.String(),
			"outcome", decision.Outcome.String(),
			"error", err,
		)
	}
}

// Close flushes and closes the underlying file. Records arriving after
// Close are dropped with an error log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.encoder = nil
	return err
}

// ReadAll decodes every entry in a log file, oldest first. A truncated
// final record (crash mid-write) is tolerated: everything decoded up
// to that point is returned alongside the error.
func ReadAll(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()

	var entries []Entry
	decoder := codec.NewDecoder(file)
	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("decoding audit entry %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}
}
