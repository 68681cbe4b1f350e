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

// DuesStatus is one active player's payment standing for a period.
type DuesStatus struct {
	User        ref.UserID
	DisplayName string
	Paid        bool
	PaidAt      time.Time
}

// MarkPaid records that a player paid their dues for a period (e.g.
// "2026-03"). Marking twice is idempotent; the first payment
// timestamp wins. Returns ErrNotFound when the user is not an active
// player.
func (s *Store) MarkPaid(ctx context.Context, team ref.TeamID, user ref.UserID, period string, markedBy ref.UserID) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		active := false
		err = sqlitex.Execute(conn,
			`SELECT 1 FROM registrations
			 WHERE team = :team AND user = :user AND role = 'player' AND state = 'active'`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team": team.String(),
					":user": user.String(),
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					active = true
					return nil
				},
			})
		if err != nil {
			return err
		}
		if !active {
			return ErrNotFound
		}

		return sqlitex.Execute(conn,
			`INSERT INTO dues (team, user, period, paid_at, marked_by)
			 VALUES (:team, :user, :period, :paid_at, :marked_by)
			 ON CONFLICT (team, user, period) DO NOTHING`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team":      team.String(),
					":user":      user.String(),
					":period":    period,
					":paid_at":   s.clock.Now().Unix(),
					":marked_by": markedBy.String(),
				},
			})
	})
	if err != nil {
		return wrapUnlessSentinel("marking dues paid", err)
	}

	s.logger.Info("dues marked paid",
		"team", team.String(),
		"user", user.String(),
		"period", period,
	)
	return nil
}

// Dues reports every active player's standing for a period, unpaid
// players first so the reply surfaces who to chase.
func (s *Store) Dues(ctx context.Context, team ref.TeamID, period string) ([]DuesStatus, error) {
	var statuses []DuesStatus
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT r.user AS user, r.display_name AS display_name, d.paid_at AS paid_at
			 FROM registrations r
			 LEFT JOIN dues d ON d.team = r.team AND d.user = r.user AND d.period = :period
			 WHERE r.team = :team AND r.role = 'player' AND r.state = 'active'
			 ORDER BY (d.paid_at IS NOT NULL), r.display_name, r.user`,
			&sqlitex.ExecOptions{
				Named: map[string]any{
					":team":   team.String(),
					":period": period,
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					user, err := ref.ParseUserID(stmt.GetText("user"))
					if err != nil {
						return fmt.Errorf("stored user: %w", err)
					}
					status := DuesStatus{
						User:        user,
						DisplayName: stmt.GetText("display_name"),
					}
					if paidAt := stmt.GetInt64("paid_at"); paidAt != 0 {
						status.Paid = true
						status.PaidAt = time.Unix(paidAt, 0).UTC()
					}
					statuses = append(statuses, status)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("teamstore: reading dues: %w", err)
	}
	return statuses, nil
}
