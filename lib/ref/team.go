// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxTeamIDLength bounds team IDs so they stay usable as database keys
// and log fields. Generous relative to real club names.
const maxTeamIDLength = 64

// TeamID is a validated team (tenant) identifier, e.g. "riverside-fc".
//
// Teams are the isolation boundary in Roster: every registration,
// squad, session, and conversation belongs to exactly one team, and
// identity resolution is always scoped to a team. Team IDs are
// lowercase slugs: a-z, 0-9, '-', starting with a letter, no
// consecutive or trailing hyphens. They are chosen by operators at
// team creation and never change.
//
// TeamID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type TeamID struct {
	id string
}

// ParseTeamID validates and wraps a raw team ID string.
func ParseTeamID(raw string) (TeamID, error) {
	if raw == "" {
		return TeamID{}, fmt.Errorf("empty team ID")
	}
	if len(raw) > maxTeamIDLength {
		return TeamID{}, fmt.Errorf("team ID %q is %d characters, maximum is %d", raw, len(raw), maxTeamIDLength)
	}
	if raw[0] < 'a' || raw[0] > 'z' {
		return TeamID{}, fmt.Errorf("team ID %q must start with a lowercase letter", raw)
	}
	previousHyphen := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			previousHyphen = false
		case c == '-':
			if previousHyphen {
				return TeamID{}, fmt.Errorf("team ID %q has consecutive hyphens", raw)
			}
			previousHyphen = true
		default:
			return TeamID{}, fmt.Errorf("team ID %q: invalid character %q at position %d (allowed: a-z, 0-9, -)", raw, c, i)
		}
	}
	if previousHyphen {
		return TeamID{}, fmt.Errorf("team ID %q must not end with a hyphen", raw)
	}
	return TeamID{id: raw}, nil
}

// MustParseTeamID is like ParseTeamID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseTeamID(raw string) TeamID {
	t, err := ParseTeamID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseTeamID(%q): %v", raw, err))
	}
	return t
}

// String returns the team ID string (e.g., "riverside-fc").
func (t TeamID) String() string { return t.id }

// IsZero reports whether the TeamID is the zero value (uninitialized).
func (t TeamID) IsZero() bool { return t.id == "" }

// MarshalText implements encoding.TextMarshaler for JSON, YAML, and
// other text-based serialization formats.
func (t TeamID) MarshalText() ([]byte, error) {
	if t.id == "" {
		return []byte{}, nil
	}
	return []byte(t.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// team ID format. An empty input produces the zero value.
func (t *TeamID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = TeamID{}
		return nil
	}
	parsed, err := ParseTeamID(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
