// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package teamstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roster-foundation/roster/lib/ref"
)

// Member is one active player with their profile.
type Member struct {
	User         ref.UserID
	DisplayName  string
	Position     string
	Availability string
	Squad        string
}

// Members lists the team's active players with profiles, ordered by
// display name then user ID so listings are stable.
func (s *Store) Members(ctx context.Context, team ref.TeamID) ([]Member, error) {
	var members []Member
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT r.user AS user, r.display_name AS display_name,
			        p.position AS position, p.availability AS availability, p.squad AS squad
			 FROM registrations r
			 JOIN profiles p ON p.team = r.team AND p.user = r.user
			 WHERE r.team = :team AND r.role = 'player' AND r.state = 'active'
			 ORDER BY r.display_name, r.user`,
			&sqlitex.ExecOptions{
				Named: map[string]any{":team": team.String()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					user, err := ref.ParseUserID(stmt.GetText("user"))
					if err != nil {
						return fmt.Errorf("stored user: %w", err)
					}
					members = append(members, Member{
						User:         user,
						DisplayName:  stmt.GetText("display_name"),
						Position:     stmt.GetText("position"),
						Availability: stmt.GetText("availability"),
						Squad:        stmt.GetText("squad"),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("teamstore: listing members: %w", err)
	}
	return members, nil
}

// Member returns one active player's profile. Returns ErrNotFound for
// senders without an active player registration.
func (s *Store) Member(ctx context.Context, team ref.TeamID, user ref.UserID) (Member, error) {
	var member Member
	found := false
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT r.user AS user, r.display_name AS display_name,
			        p.position AS position, p.availability AS availability, p.squad AS squad
			 FROM registrations r
			 JOIN profiles p ON p.team = r.team AND p.user = r.user
			 WHERE r.team = :team AND r.user = :user AND r.role = 'player' AND r.state = 'active'`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":user": user.String(),
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					member = Member{
						User:         user,
						DisplayName:  stmt.GetText("display_name"),
						Position:     stmt.GetText("position"),
						Availability: stmt.GetText("availability"),
						Squad:        stmt.GetText("squad"),
					}
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return Member{}, fmt.Errorf("teamstore: reading member: %w", err)
	}
	if !found {
		return Member{}, ErrNotFound
	}
	return member, nil
}

// SetPosition updates a player's position. Returns ErrNotFound when
// the player has no profile.
func (s *Store) SetPosition(ctx context.Context, team ref.TeamID, user ref.UserID, position string) error {
	return s.updateProfile(ctx, team, user, "position", position)
}

// SetAvailability updates a player's availability note. Returns
// ErrNotFound when the player has no profile.
func (s *Store) SetAvailability(ctx context.Context, team ref.TeamID, user ref.UserID, availability string) error {
	return s.updateProfile(ctx, team, user, "availability", availability)
}

// AssignSquad places a player in a squad; an empty squad clears the
// assignment. Returns ErrNotFound when the player has no profile.
func (s *Store) AssignSquad(ctx context.Context, team ref.TeamID, user ref.UserID, squad string) error {
	return s.updateProfile(ctx, team, user, "squad", squad)
}

// updateProfile sets one profile column. The column name comes from
// the fixed call sites above, never from input.
func (s *Store) updateProfile(ctx context.Context, team ref.TeamID, user ref.UserID, column, value string) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			fmt.Sprintf(`UPDATE profiles SET %s = :value WHERE team = :team AND user = :user`, column),
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":value": value,
					":team":  team.String(),
					":user":  user.String(),
				},
			})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return wrapUnlessSentinel("updating profile "+column, err)
	}
	return nil
}
