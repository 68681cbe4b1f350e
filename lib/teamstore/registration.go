// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package teamstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/ref"
)

// Registration is one (team, user, role) registration row.
type Registration struct {
	Team        ref.TeamID
	User        ref.UserID
	Role        identity.Role
	State       identity.State
	Code        string
	DisplayName string
	RequestedAt time.Time
	DecidedAt   time.Time
	ApprovedBy  string
	Note        string
}

// RoleState implements identity.Store: the registration state of one
// role for one sender. Absence of a row is Unregistered; any database
// failure is returned as an error, never mapped to Unregistered.
func (s *Store) RoleState(ctx context.Context, team ref.TeamID, sender ref.UserID, role identity.Role) (identity.State, error) {
	state := identity.Unregistered
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT state FROM registrations WHERE team = :team AND user = :user AND role = :role`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":user": sender.String(),
					":role": roleColumn(role),
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					parsed, err := parseState(stmt.GetText("state"))
					if err != nil {
						return err
					}
					state = parsed
					return nil
				},
			})
	})
	if err != nil {
		return identity.Unregistered, fmt.Errorf("teamstore: reading role state: %w", err)
	}
	return state, nil
}

// Register creates a pending registration and returns its approval
// code. Returns ErrAlreadyRegistered if the sender already holds the
// role in any state.
func (s *Store) Register(ctx context.Context, team ref.TeamID, user ref.UserID, role identity.Role, displayName string) (string, error) {
	code, err := newApprovalCode()
	if err != nil {
		return "", err
	}

	err = s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		existing := false
		err = sqlitex.Execute(conn,
			`SELECT 1 FROM registrations WHERE team = :team AND user = :user AND role = :role`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":user": user.String(),
					":role": roleColumn(role),
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					existing = true
					return nil
				},
			})
		if err != nil {
			return err
		}
		if existing {
			return ErrAlreadyRegistered
		}

		return sqlitex.Execute(conn,
			`INSERT INTO registrations (team, user, role, state, code, display_name, requested_at)
			 VALUES (:team, :user, :role, 'pending', :code, :display_name, :requested_at)`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team":         team.String(),
					":user":         user.String(),
					":role":         roleColumn(role),
					":code":         code,
					":display_name": displayName,
					":requested_at": s.clock.Now().Unix(),
				},
			})
	})
	if err != nil {
		return "", wrapUnlessSentinel("creating registration", err)
	}

	s.logger.Info("registration created",
		"team", team.String(),
		"user", user.String(),
		"role", roleColumn(role),
		"code", code,
	)
	return code, nil
}

// Pending lists pending registrations for a team, oldest first.
func (s *Store) Pending(ctx context.Context, team ref.TeamID) ([]Registration, error) {
	var pending []Registration
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT user, role, code, display_name, requested_at
			 FROM registrations
			 WHERE team = :team AND state = 'pending'
			 ORDER BY requested_at, user`,
			&sqlitex.ExecOptions{
				Named: map[string]any{":team": team.String()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					registration, err := scanRegistration(stmt, team)
					if err != nil {
						return err
					}
					registration.State = identity.Pending
					pending = append(pending, registration)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("teamstore: listing pending registrations: %w", err)
	}
	return pending, nil
}

// Approve activates the pending registration matching the approval
// code. Returns ErrCodeNotFound when no pending registration carries
// the code.
func (s *Store) Approve(ctx context.Context, team ref.TeamID, code string, approvedBy ref.UserID, note string) (Registration, error) {
	var approved Registration
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		found := false
		err = sqlitex.Execute(conn,
			`SELECT user, role, code, display_name, requested_at
			 FROM registrations
			 WHERE team = :team AND code = :code AND state = 'pending'`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":code": code,
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					registration, err := scanRegistration(stmt, team)
					if err != nil {
						return err
					}
					approved = registration
					found = true
					return nil
				},
			})
		if err != nil {
			return err
		}
		if !found {
			return ErrCodeNotFound
		}

		now := s.clock.Now()
		err = sqlitex.Execute(conn,
			`UPDATE registrations
			 SET state = 'active', decided_at = :decided_at, approved_by = :approved_by, note = :note
			 WHERE team = :team AND code = :code`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team":        team.String(),
					":code":        code,
					":decided_at":  now.Unix(),
					":approved_by": approvedBy.String(),
					":note":        note,
				},
			})
		if err != nil {
			return err
		}

		approved.State = identity.Active
		approved.DecidedAt = now
		approved.ApprovedBy = approvedBy.String()
		approved.Note = note

		// Players get a profile row the moment they become active so
		// roster listings never have to left-join against absence.
		if approved.Role == identity.RolePlayer {
			return sqlitex.Execute(conn,
				`INSERT INTO profiles (team, user) VALUES (:team, :user)
				 ON CONFLICT (team, user) DO NOTHING`,
				&sqlitex.ExecOptions{
					Named: map[string]any{
						":team": team.String(),
						":user": approved.User.String(),
					},
				})
		}
		return nil
	})
	if err != nil {
		return Registration{}, wrapUnlessSentinel("approving registration", err)
	}

	s.logger.Info("registration approved",
		"team", team.String(),
		"user", approved.User.String(),
		"role", roleColumn(approved.Role),
		"approved_by", approvedBy.String(),
	)
	return approved, nil
}

// Remove deletes a registration (and the player profile when the role
// is player). Returns ErrNotFound when no row matches.
func (s *Store) Remove(ctx context.Context, team ref.TeamID, user ref.UserID, role identity.Role) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		err = sqlitex.Execute(conn,
			`DELETE FROM registrations WHERE team = :team AND user = :user AND role = :role`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":user": user.String(),
					":role": roleColumn(role),
				},
			})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}

		if role == identity.RolePlayer {
			return sqlitex.Execute(conn,
				`DELETE FROM profiles WHERE team = :team AND user = :user`,
				&sqlitex.ExecOptions{
					Named: map[string]any{
						":team": team.String(),
						":user": user.String(),
					},
				})
		}
		return nil
	})
	if err != nil {
		return wrapUnlessSentinel("removing registration", err)
	}

	s.logger.Info("registration removed",
		"team", team.String(),
		"user", user.String(),
		"role", roleColumn(role),
	)
	return nil
}

// SweepStale deletes pending registrations requested before the
// cutoff, across all teams, and returns how many were removed.
func (s *Store) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan).Unix()
	removed := 0
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`DELETE FROM registrations WHERE state = 'pending' AND requested_at < :cutoff`,
			&sqlitex.ExecOptions{
				Named: map[string]any{":cutoff": cutoff},
			})
		if err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("teamstore: sweeping stale registrations: %w", err)
	}
	if removed > 0 {
		s.logger.Info("stale registrations swept", "removed", removed)
	}
	return removed, nil
}

// scanRegistration reads the common registration columns.
func scanRegistration(stmt *sqlite.Stmt, team ref.TeamID) (Registration, error) {
	user, err := ref.ParseUserID(stmt.GetText("user"))
	if err != nil {
		return Registration{}, fmt.Errorf("stored user: %w", err)
	}
	role := identity.RolePlayer
	if stmt.GetText("role") == "manager" {
		role = identity.RoleManager
	}
	return Registration{
		Team:        team,
		User:        user,
		Role:        role,
		Code:        stmt.GetText("code"),
		DisplayName: stmt.GetText("display_name"),
		RequestedAt: time.Unix(stmt.GetInt64("requested_at"), 0).UTC(),
	}, nil
}
