// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the immutable command catalog: every command
// the assistant understands, the permission level it requires, and the
// conversation classes it may be used in.
//
// The catalog is built exactly once at startup from the declaration
// lists of each feature package and is read-only thereafter, so
// concurrent lookups need no locking. Duplicate command names are a
// configuration error and fail the build — there is no runtime
// self-registration.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Arg describes one positional argument of a command.
type Arg struct {
	// Name appears in usage strings, e.g. "code" in "/approve <code>".
	Name string

	// Required arguments must be present; a missing required argument
	// is a validation failure, not a system error. Optional arguments
	// must follow all required ones.
	Required bool
}

// Definition declares a single command. Definitions are plain values
// assembled by feature packages and handed to New; they are immutable
// once the catalog is built.
type Definition struct {
	// Name is the command name without the leading slash, unique
	// across the whole catalog.
	Name string

	// Level is the permission level required to execute the command.
	Level Level

	// Classes lists the conversation classes the command may be used
	// in. Must be non-empty.
	Classes []Class

	// Args are the positional arguments, required first.
	Args []Arg

	// Summary is the one-line description shown by /help.
	Summary string

	// Examples are free-text phrasings that should route to this
	// command. They seed the intent classifier prompt.
	Examples []string

	// Feature names the feature package that owns the command.
	Feature string
}

// Usage returns the usage string, e.g. "/approve <code> [note]".
func (d Definition) Usage() string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(d.Name)
	for _, arg := range d.Args {
		if arg.Required {
			fmt.Fprintf(&b, " <%s>", arg.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", arg.Name)
		}
	}
	return b.String()
}

// AllowedIn reports whether the command may be used in the given
// conversation class.
func (d Definition) AllowedIn(class Class) bool {
	for _, c := range d.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// RequiredArgs returns the number of required positional arguments.
func (d Definition) RequiredArgs() int {
	count := 0
	for _, arg := range d.Args {
		if arg.Required {
			count++
		}
	}
	return count
}

// LookupStatus distinguishes the three outcomes of a catalog lookup.
// Found and WrongClass both mean the command exists; they produce
// different user-facing messages, so the distinction is preserved here
// rather than collapsed into a boolean.
type LookupStatus int

const (
	// NotFound means no command with that name exists.
	NotFound LookupStatus = iota

	// WrongClass means the command exists but is not usable in the
	// conversation class the message arrived in.
	WrongClass

	// Found means the command exists and is usable in this class.
	Found
)

// Catalog is the immutable command registry. Build one with New at
// startup and share it by reference; it is safe for concurrent reads.
type Catalog struct {
	byName map[string]Definition
	names  []string
}

// New builds a catalog from feature declaration lists. Returns an
// error if any definition is invalid or two definitions share a name —
// these are configuration errors that must prevent startup, not
// runtime conditions.
func New(featureDefinitions ...[]Definition) (*Catalog, error) {
	byName := make(map[string]Definition)
	var names []string

	for _, definitions := range featureDefinitions {
		for _, definition := range definitions {
			if err := validateDefinition(definition); err != nil {
				return nil, fmt.Errorf("catalog: command %q: %w", definition.Name, err)
			}
			if existing, duplicate := byName[definition.Name]; duplicate {
				return nil, fmt.Errorf("catalog: duplicate command name %q (features %q and %q)",
					definition.Name, existing.Feature, definition.Feature)
			}
			byName[definition.Name] = definition
			names = append(names, definition.Name)
		}
	}

	sort.Strings(names)
	return &Catalog{byName: byName, names: names}, nil
}

// validateDefinition checks the structural invariants of a definition.
func validateDefinition(definition Definition) error {
	if definition.Name == "" {
		return fmt.Errorf("empty name")
	}
	if strings.ContainsAny(definition.Name, " /") {
		return fmt.Errorf("name contains space or slash")
	}
	if definition.Feature == "" {
		return fmt.Errorf("empty feature")
	}
	if len(definition.Classes) == 0 {
		return fmt.Errorf("no allowed conversation classes")
	}
	seenOptional := false
	for _, arg := range definition.Args {
		if arg.Name == "" {
			return fmt.Errorf("argument with empty name")
		}
		if arg.Required && seenOptional {
			return fmt.Errorf("required argument %q follows an optional argument", arg.Name)
		}
		if !arg.Required {
			seenOptional = true
		}
	}
	return nil
}

// Lookup finds a command by name and reports whether it is usable in
// the given conversation class. The returned Definition is meaningful
// for both Found and WrongClass.
func (c *Catalog) Lookup(name string, class Class) (Definition, LookupStatus) {
	definition, exists := c.byName[name]
	if !exists {
		return Definition{}, NotFound
	}
	if !definition.AllowedIn(class) {
		return definition, WrongClass
	}
	return definition, Found
}

// Get returns a definition by name regardless of conversation class.
// Used by the intent classifier to map inferred candidates back into
// the same definitions literal commands use.
func (c *Catalog) Get(name string) (Definition, bool) {
	definition, exists := c.byName[name]
	return definition, exists
}

// Names returns all command names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// VisibleIn returns the definitions usable in the given class below
// the system level, sorted by name. This drives /help output: users
// only see commands they could conceivably run where they are.
func (c *Catalog) VisibleIn(class Class) []Definition {
	var out []Definition
	for _, name := range c.names {
		definition := c.byName[name]
		if definition.Level == LevelSystem {
			continue
		}
		if definition.AllowedIn(class) {
			out = append(out, definition)
		}
	}
	return out
}
