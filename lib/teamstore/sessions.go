// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package teamstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roster-foundation/roster/lib/ref"
)

// Session is one scheduled team event (training, match, meeting).
type Session struct {
	ID        int64
	Team      ref.TeamID
	Title     string
	StartsAt  time.Time
	CreatedBy string
	Cancelled bool
}

// ScheduleSession creates a session and returns it with its assigned
// ID.
func (s *Store) ScheduleSession(ctx context.Context, team ref.TeamID, title string, startsAt time.Time, createdBy ref.UserID) (Session, error) {
	session := Session{
		Team:      team,
		Title:     title,
		StartsAt:  startsAt.UTC(),
		CreatedBy: createdBy.String(),
	}
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO sessions (team, title, starts_at, created_by)
			 VALUES (:team, :title, :starts_at, :created_by)`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team":       team.String(),
					":title":      title,
					":starts_at":  startsAt.Unix(),
					":created_by": createdBy.String(),
				},
			})
		if err != nil {
			return err
		}
		session.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("teamstore: scheduling session: %w", err)
	}

	s.logger.Info("session scheduled",
		"team", team.String(),
		"session", session.ID,
		"starts_at", session.StartsAt,
	)
	return session, nil
}

// UpcomingSessions lists the team's non-cancelled sessions starting at
// or after now, soonest first.
func (s *Store) UpcomingSessions(ctx context.Context, team ref.TeamID) ([]Session, error) {
	now := s.clock.Now().Unix()
	var sessions []Session
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, title, starts_at, created_by
			 FROM sessions
			 WHERE team = :team AND cancelled = 0 AND starts_at >= :now
			 ORDER BY starts_at`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":now":  now,
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sessions = append(sessions, Session{
						ID:        stmt.GetInt64("id"),
						Team:      team,
						Title:     stmt.GetText("title"),
						StartsAt:  time.Unix(stmt.GetInt64("starts_at"), 0).UTC(),
						CreatedBy: stmt.GetText("created_by"),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("teamstore: listing sessions: %w", err)
	}
	return sessions, nil
}

// CancelSession marks a session cancelled. Returns ErrNotFound for an
// unknown ID and ErrSessionCancelled when it was already cancelled.
func (s *Store) CancelSession(ctx context.Context, team ref.TeamID, id int64) (Session, error) {
	var session Session
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		found := false
		err = sqlitex.Execute(conn,
			`SELECT id, title, starts_at, created_by, cancelled
			 FROM sessions WHERE team = :team AND id = :id`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":id":   id,
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					session = Session{
						ID:        stmt.GetInt64("id"),
						Team:      team,
						Title:     stmt.GetText("title"),
						StartsAt:  time.Unix(stmt.GetInt64("starts_at"), 0).UTC(),
						CreatedBy: stmt.GetText("created_by"),
						Cancelled: stmt.GetInt64("cancelled") != 0,
					}
					found = true
					return nil
				},
			})
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if session.Cancelled {
			return ErrSessionCancelled
		}

		err = sqlitex.Execute(conn,
			`UPDATE sessions SET cancelled = 1 WHERE team = :team AND id = :id`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":id":   id,
				},
			})
		if err != nil {
			return err
		}
		session.Cancelled = true
		return nil
	})
	if err != nil {
		return Session{}, wrapUnlessSentinel("cancelling session", err)
	}

	s.logger.Info("session cancelled",
		"team", team.String(),
		"session", id,
	)
	return session, nil
}
